package render

import (
	"slices"
	"strings"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

// Tag builds an Obsidian tag "<kind>/<value>" with value lowercased and
// every character outside [a-z0-9_-] replaced by '-'.
func Tag(kind, value string) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('/')
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Tags returns the sorted, deduplicated tags derived from a package's
// licenses, maintainers and outputs.
func Tags(p *nixpkgs.Package) []string {
	tags := make([]string, 0, len(p.Licenses)+len(p.Maintainers)+len(p.Outputs))
	for _, l := range p.Licenses {
		tags = append(tags, Tag("license", l))
	}
	for _, m := range p.Maintainers {
		tags = append(tags, Tag("maintainer", m))
	}
	for _, o := range p.Outputs {
		tags = append(tags, Tag("output", o))
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}
