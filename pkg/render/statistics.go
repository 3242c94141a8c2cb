package render

import (
	"bytes"
	"fmt"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
)

// StatisticsPath is the vault-relative path of the statistics note.
const StatisticsPath = "Statistics.md"

// TopMaintainers is how many maintainers the statistics note ranks.
const TopMaintainers = 25

// StatisticsNote renders s as markdown. Full tables are ordered by token;
// the maintainer ranking uses [stats.Top].
func StatisticsNote(s *stats.Statistics) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Statistics\n\n")

	fmt.Fprintf(&buf, "| | |\n|---|---:|\n")
	fmt.Fprintf(&buf, "| Packages | %d |\n", s.TotalPackages)
	fmt.Fprintf(&buf, "| Maintainers | %d |\n", s.TotalMaintainers)
	fmt.Fprintf(&buf, "| Licenses | %d |\n", s.TotalLicenses)
	fmt.Fprintf(&buf, "| Output kinds | %d |\n", s.TotalOutputs)
	fmt.Fprintf(&buf, "| Packages without maintainer | %d |\n", s.Unmaintained)
	fmt.Fprintf(&buf, "| Packages without license | %d |\n\n", s.Unlicensed)

	section(&buf, "Most active maintainers")
	table(&buf, "Maintainer", stats.Top(s.Maintainers, TopMaintainers), func(c stats.Count) string {
		return MaintainerLink(c.Token)
	})

	section(&buf, "Licenses")
	table(&buf, "License", s.Licenses, func(c stats.Count) string {
		return fmt.Sprintf("%s #%s", c.Token, Tag("license", c.Token))
	})

	section(&buf, "Outputs")
	table(&buf, "Output", s.Outputs, func(c stats.Count) string {
		return fmt.Sprintf("`%s`", c.Token)
	})

	section(&buf, "Maintainers")
	table(&buf, "Maintainer", s.Maintainers, func(c stats.Count) string {
		return MaintainerLink(c.Token)
	})

	return append(bytes.TrimRight(buf.Bytes(), "\n"), '\n')
}

func table(buf *bytes.Buffer, heading string, counts []stats.Count, label func(stats.Count) string) {
	if len(counts) == 0 {
		buf.WriteString("_None_\n\n")
		return
	}
	fmt.Fprintf(buf, "| %s | Packages |\n|---|---:|\n", heading)
	for _, c := range counts {
		fmt.Fprintf(buf, "| %s | %d |\n", cell(label(c)), c.Packages)
	}
	buf.WriteString("\n")
}

// cell escapes the pipe that separates table columns. Wiki link aliases
// inside tables need the same escape.
func cell(s string) string {
	return string(bytes.ReplaceAll([]byte(s), []byte("|"), []byte(`\|`)))
}
