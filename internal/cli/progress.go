package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const progressBarWidth = 30

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

type progressMsg struct{ done, total int }

type progressDoneMsg struct{}

// progressModel is the bubbletea model of the render progress line.
type progressModel struct {
	label    string
	done     int
	total    int
	start    time.Time
	finished bool
}

func newProgressModel(label string, total int) progressModel {
	return progressModel{label: label, total: total, start: time.Now()}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.done, m.total = msg.done, msg.total
	case progressDoneMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}
	frac := 0.0
	if m.total > 0 {
		frac = float64(m.done) / float64(m.total)
	}
	full := int(frac * progressBarWidth)
	bar := barFullStyle.Render(strings.Repeat("█", full)) +
		barEmptyStyle.Render(strings.Repeat("░", progressBarWidth-full))

	return fmt.Sprintf("%s %s %s %s\n",
		StyleDim.Render(m.label),
		bar,
		StyleNumber.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
		StyleDim.Render(time.Since(m.start).Round(time.Second).String()))
}

// progressView shows a progress bar on a terminal. On anything else it does
// nothing.
type progressView struct {
	prog *tea.Program
	ran  chan struct{}
	step int
}

// newProgressView starts a progress bar on w if w is a terminal, and
// returns nil otherwise.
func newProgressView(ctx context.Context, w io.Writer, label string, total int) *progressView {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}
	p := tea.NewProgram(newProgressModel(label, total),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler())
	v := &progressView{prog: p, ran: make(chan struct{}), step: max(1, total/200)}
	go func() {
		defer close(v.ran)
		_, _ = p.Run()
	}()
	return v
}

// update reports progress. Updates are thinned out so a large run does not
// flood the event loop.
func (v *progressView) update(done, total int) {
	if v == nil || (done%v.step != 0 && done != total) {
		return
	}
	v.prog.Send(progressMsg{done: done, total: total})
}

// stop removes the bar and waits for the program to exit.
func (v *progressView) stop() {
	if v == nil {
		return
	}
	v.prog.Send(progressDoneMsg{})
	<-v.ran
}
