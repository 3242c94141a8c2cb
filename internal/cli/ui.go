package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/pipeline"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached  = lipgloss.NewStyle().Foreground(colorGreen)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Run Summary
// =============================================================================

// summaryFailures bounds how many failures the summary lists.
const summaryFailures = 10

// printSummary prints the outcome of a generate run.
func printSummary(r *pipeline.Result, dir string, elapsed time.Duration) {
	if r.OK() {
		printSuccess("Wrote %s notes in %s", StyleNumber.Render(strconv.Itoa(r.Written)), elapsed.Round(time.Millisecond))
	} else {
		printWarning("Wrote %d of %d notes in %s", r.Written, r.Packages, elapsed.Round(time.Millisecond))
	}
	printFile(dir)
	fmt.Println()

	printKeyValue("Packages", strconv.Itoa(r.Packages))
	printKeyValue("Maintainers", strconv.Itoa(r.Stats.TotalMaintainers))
	printKeyValue("Licenses", strconv.Itoa(r.Stats.TotalLicenses))
	printKeyValue("Edges", fmt.Sprintf("%d (%d external)", r.Graph.EdgeCount(), r.Unresolved))
	if len(r.Collisions) > 0 {
		printKeyValue("Renamed", strconv.Itoa(len(r.Collisions)))
	}
	fmt.Println()

	if top := stats.Top(r.Stats.Maintainers, 5); len(top) > 0 {
		fmt.Println(countTable("Maintainer", top))
	}

	if len(r.Malformed) > 0 {
		printWarning("Skipped %d malformed records", len(r.Malformed))
		for _, m := range r.Malformed[:min(len(r.Malformed), summaryFailures)] {
			printDetail("%s", m.Error())
		}
	}
	if len(r.Failures) > 0 {
		printWarning("%d notes failed", len(r.Failures))
		for _, f := range r.Failures[:min(len(r.Failures), summaryFailures)] {
			printDetail("%s", f.Error())
		}
	}
	printNextStep("Browse", "nixpkgs-vault serve -o "+dir)
}

func countTable(heading string, counts []stats.Count) string {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Token, strconv.Itoa(c.Packages)}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(heading, "Packages").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
		}).
		String()
}
