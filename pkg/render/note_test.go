package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
)

func build(t *testing.T, pkgs []nixpkgs.Package, ids ...string) *graph.Graph {
	t.Helper()
	g, err := graph.Build(pkgs, ids)
	require.NoError(t, err)
	return g
}

func refs(keys ...string) []nixpkgs.DependencyRef {
	out := make([]nixpkgs.DependencyRef, len(keys))
	for i, k := range keys {
		out[i] = nixpkgs.DependencyRef{Key: k, Kind: nixpkgs.KindGeneric}
	}
	return out
}

// sectionBody returns the body of a "## title" section.
func sectionBody(t *testing.T, doc []byte, title string) string {
	t.Helper()
	s := string(doc)
	start := strings.Index(s, "## "+title+"\n")
	require.GreaterOrEqual(t, start, 0, "missing section %s", title)
	s = s[start+len("## "+title+"\n"):]
	if end := strings.Index(s, "\n## "); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func TestNoteCrossLinks(t *testing.T) {
	g := build(t, []nixpkgs.Package{
		{Name: "a", Version: "1", DependencyRefs: refs("b")},
		{Name: "b", Version: "1", DependencyRefs: refs()},
	}, "id-a", "id-b")

	a, err := Note(g, "id-a")
	require.NoError(t, err)
	assert.Equal(t, "packages/id-a.md", a.Path)
	assert.Equal(t, "- [[id-b|b]]", sectionBody(t, a.Body, "Dependencies"))
	assert.Equal(t, "_None_", sectionBody(t, a.Body, "Required by"))

	b, err := Note(g, "id-b")
	require.NoError(t, err)
	assert.Equal(t, "_None_", sectionBody(t, b.Body, "Dependencies"))
	assert.Equal(t, "- [[id-a|a]]", sectionBody(t, b.Body, "Required by"))
}

func TestNoteExternalDependency(t *testing.T) {
	g := build(t, []nixpkgs.Package{
		{Name: "a", DependencyRefs: []nixpkgs.DependencyRef{
			{Key: "missing", Kind: nixpkgs.KindGeneric},
			{Key: "cmake", Kind: nixpkgs.KindNative},
		}},
	}, "id-a")

	doc, err := Note(g, "id-a")
	require.NoError(t, err)
	deps := sectionBody(t, doc.Body, "Dependencies")
	assert.Equal(t, "- `missing` (external)\n- `cmake` (external) _native_", deps)
	assert.NotContains(t, deps, "[[")
}

func TestNoteCycle(t *testing.T) {
	g := build(t, []nixpkgs.Package{
		{Name: "a", DependencyRefs: refs("b")},
		{Name: "b", DependencyRefs: refs("a")},
	}, "id-a", "id-b")

	a, err := Note(g, "id-a")
	require.NoError(t, err)
	b, err := Note(g, "id-b")
	require.NoError(t, err)
	assert.Equal(t, "- [[id-b|b]]", sectionBody(t, a.Body, "Dependencies"))
	assert.Equal(t, "- [[id-a|a]]", sectionBody(t, b.Body, "Dependencies"))
}

func TestNoteAllSections(t *testing.T) {
	g := build(t, []nixpkgs.Package{{
		Name:             "hello",
		Version:          "2.12.1",
		AttrPath:         "hello",
		ShortDescription: "Friendly greeting",
		LongDescription:  "GNU Hello prints a greeting.",
		Licenses:         []string{"GPL-3.0-or-later"},
		Maintainers:      []string{"eelco"},
		Outputs:          []string{"man", "out"},
		Homepages:        []string{"https://www.gnu.org/software/hello/"},
		DrvPath:          "/nix/store/x-hello.drv",
		Position:         &nixpkgs.Position{File: "pkgs/hello.nix", Line: 3},
	}}, "abc-hello-2.12.1")

	doc, err := Note(g, "abc-hello-2.12.1")
	require.NoError(t, err)

	assert.Contains(t, string(doc.Body), "# hello\n\n> Friendly greeting\n")
	assert.Equal(t, "`2.12.1`", sectionBody(t, doc.Body, "Version"))
	assert.Equal(t, "- `man` #output/man\n- `out` #output/out", sectionBody(t, doc.Body, "Availability"))
	assert.Equal(t, "- GPL-3.0-or-later #license/gpl-3-0-or-later", sectionBody(t, doc.Body, "License"))
	assert.Equal(t, "GNU Hello prints a greeting.", sectionBody(t, doc.Body, "Description"))
	assert.Equal(t, "- [[maintainers/eelco|eelco]]", sectionBody(t, doc.Body, "Maintainers"))
	assert.Equal(t, "`/nix/store/x-hello.drv`", sectionBody(t, doc.Body, "Derivation"))
	assert.Equal(t, "- Attribute: `hello`\n- Position: `pkgs/hello.nix:3`\n- Homepage: https://www.gnu.org/software/hello/",
		sectionBody(t, doc.Body, "Source"))
	assert.True(t, bytes.HasSuffix(doc.Body, []byte("\n")))
	assert.False(t, bytes.HasSuffix(doc.Body, []byte("\n\n")))
}

func TestNoteFrontmatter(t *testing.T) {
	g := build(t, []nixpkgs.Package{{
		Name:        "x",
		Licenses:    []string{"MIT"},
		Maintainers: []string{"Alice Smith"},
		Outputs:     []string{"out"},
	}}, "id-x")

	doc, err := Note(g, "id-x")
	require.NoError(t, err)

	parts := strings.SplitN(string(doc.Body), "---\n", 3)
	require.Len(t, parts, 3)

	var fm frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "id-x", fm.Identifier)
	assert.Equal(t, []string{"license/mit", "maintainer/alice-smith", "output/out"}, fm.Tags)
	assert.Equal(t, "", fm.Version)
}

func TestNoteDeterministic(t *testing.T) {
	pkgs := []nixpkgs.Package{
		{Name: "a", Maintainers: []string{"z", "y"}, DependencyRefs: refs("b", "c", "b")},
		{Name: "b"},
	}
	first, err := Note(build(t, pkgs, "a", "b"), "a")
	require.NoError(t, err)
	for range 10 {
		again, err := Note(build(t, pkgs, "a", "b"), "a")
		require.NoError(t, err)
		assert.Equal(t, first.Body, again.Body)
	}
}

func TestNoteInvalidUTF8(t *testing.T) {
	g := build(t, []nixpkgs.Package{{Name: "bad", LongDescription: "caf\xe9"}}, "id-bad")

	_, err := Note(g, "id-bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRenderFailed))
	assert.Contains(t, err.Error(), "long_description")
	assert.False(t, errors.IsFatal(err))
}

func TestNoteUnknownPackage(t *testing.T) {
	_, err := Note(build(t, nil), "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeRenderFailed))
}

func TestTag(t *testing.T) {
	tests := []struct{ kind, value, want string }{
		{"license", "MIT", "license/mit"},
		{"license", "GPL-2.0+", "license/gpl-2-0-"},
		{"maintainer", "some_one", "maintainer/some_one"},
		{"output", "dev", "output/dev"},
	}
	for _, tt := range tests {
		if got := Tag(tt.kind, tt.value); got != tt.want {
			t.Errorf("Tag(%q, %q) = %q, want %q", tt.kind, tt.value, got, tt.want)
		}
	}
}

func TestLinkLabelStripsSyntax(t *testing.T) {
	assert.Equal(t, "[[id|a-b]]", Link("id", "a|[b]"))
	assert.Equal(t, "[[maintainers/x-y|x-y]]", MaintainerLink("x|y"))
}

func TestStatisticsNote(t *testing.T) {
	s := &stats.Statistics{
		TotalPackages:    3,
		TotalMaintainers: 2,
		TotalLicenses:    1,
		TotalOutputs:     1,
		Maintainers: []stats.Count{
			{Token: "alice", Packages: 1, FirstSeen: "b"},
			{Token: "bob", Packages: 2, FirstSeen: "a"},
		},
		Licenses: []stats.Count{{Token: "MIT", Packages: 3, FirstSeen: "a"}},
		Outputs:  []stats.Count{{Token: "out", Packages: 3, FirstSeen: "a"}},
	}

	note := StatisticsNote(s)
	assert.Contains(t, string(note), "| Packages | 3 |")
	assert.Equal(t,
		"| Maintainer | Packages |\n|---|---:|\n| [[maintainers/bob\\|bob]] | 2 |\n| [[maintainers/alice\\|alice]] | 1 |",
		sectionBody(t, note, "Most active maintainers"))
	assert.Equal(t,
		"| Maintainer | Packages |\n|---|---:|\n| [[maintainers/alice\\|alice]] | 1 |\n| [[maintainers/bob\\|bob]] | 2 |",
		sectionBody(t, note, "Maintainers"))
}

func TestStatisticsNoteEmpty(t *testing.T) {
	note := StatisticsNote(&stats.Statistics{})
	assert.Equal(t, "_None_", sectionBody(t, note, "Licenses"))
}
