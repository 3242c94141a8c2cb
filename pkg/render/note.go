package render

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

// PackagesDir is the vault folder holding one note per package.
const PackagesDir = "packages"

// Document is a rendered note and the vault-relative path it belongs at.
type Document struct {
	Identifier string
	Path       string
	Body       []byte
}

// NotePath returns the vault-relative path of the note for id.
func NotePath(id string) string {
	return path.Join(PackagesDir, id+".md")
}

type frontmatter struct {
	Identifier  string   `yaml:"identifier"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	AttrPath    string   `yaml:"attr_path"`
	Licenses    []string `yaml:"licenses"`
	Maintainers []string `yaml:"maintainers"`
	Outputs     []string `yaml:"outputs"`
	Homepages   []string `yaml:"homepages"`
	Position    string   `yaml:"position"`
	Tags        []string `yaml:"tags"`
}

// Note renders the package id of g. It fails with
// [errors.ErrCodeRenderFailed] when the package is unknown or a text field
// is not valid UTF-8.
func Note(g *graph.Graph, id string) (*Document, error) {
	p, ok := g.Node(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeRenderFailed, "package %s not in graph", id)
	}
	if field, ok := invalidText(p); ok {
		return nil, errors.New(errors.ErrCodeRenderFailed, "package %s: invalid UTF-8 in %s", id, field)
	}

	var buf bytes.Buffer
	if err := writeFrontmatter(&buf, p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "package %s: frontmatter", id)
	}

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if p.ShortDescription != "" {
		fmt.Fprintf(&buf, "> %s\n\n", oneLine(p.ShortDescription))
	}

	section(&buf, "Version")
	if p.Version != "" {
		fmt.Fprintf(&buf, "`%s`\n\n", p.Version)
	} else {
		buf.WriteString("_unknown_\n\n")
	}

	section(&buf, "Availability")
	list(&buf, p.Outputs, func(o string) string {
		return fmt.Sprintf("`%s` #%s", o, Tag("output", o))
	})

	section(&buf, "License")
	list(&buf, p.Licenses, func(l string) string {
		return fmt.Sprintf("%s #%s", l, Tag("license", l))
	})

	section(&buf, "Description")
	if p.LongDescription != "" {
		buf.WriteString(strings.TrimSpace(p.LongDescription))
		buf.WriteString("\n\n")
	} else {
		buf.WriteString("_None_\n\n")
	}

	section(&buf, "Maintainers")
	list(&buf, p.Maintainers, MaintainerLink)

	section(&buf, "Derivation")
	if p.DrvPath != "" {
		fmt.Fprintf(&buf, "`%s`\n\n", p.DrvPath)
	} else {
		buf.WriteString("_None_\n\n")
	}

	section(&buf, "Source")
	var src []string
	if p.AttrPath != "" {
		src = append(src, fmt.Sprintf("Attribute: `%s`", p.AttrPath))
	}
	if p.Position != nil {
		src = append(src, fmt.Sprintf("Position: `%s`", p.Position))
	}
	for _, h := range p.Homepages {
		src = append(src, "Homepage: "+h)
	}
	list(&buf, src, func(s string) string { return s })

	section(&buf, "Dependencies")
	list(&buf, g.Dependencies(id), func(e graph.Edge) string {
		return dependencyLine(g, e)
	})

	section(&buf, "Required by")
	list(&buf, g.DependentIDs(id), func(from string) string {
		dep, _ := g.Node(from)
		return Link(from, dep.Name)
	})

	return &Document{
		Identifier: id,
		Path:       NotePath(id),
		Body:       append(bytes.TrimRight(buf.Bytes(), "\n"), '\n'),
	}, nil
}

func writeFrontmatter(buf *bytes.Buffer, p *nixpkgs.Package) error {
	fm := frontmatter{
		Identifier:  p.Identifier,
		Name:        p.Name,
		Version:     p.Version,
		AttrPath:    p.AttrPath,
		Licenses:    p.Licenses,
		Maintainers: p.Maintainers,
		Outputs:     p.Outputs,
		Homepages:   p.Homepages,
		Position:    p.Position.String(),
		Tags:        Tags(p),
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return err
	}
	buf.WriteString("---\n")
	buf.Write(data)
	buf.WriteString("---\n\n")
	return nil
}

func dependencyLine(g *graph.Graph, e graph.Edge) string {
	var line string
	if e.IsExternal() {
		line = fmt.Sprintf("`%s` (external)", e.Key)
	} else {
		dep, _ := g.Node(e.To)
		line = Link(e.To, dep.Name)
	}
	if e.Kind != "" && e.Kind != nixpkgs.KindGeneric {
		line += fmt.Sprintf(" _%s_", e.Kind)
	}
	return line
}

// Link returns a wiki link to the note of id, labelled with name.
func Link(id, name string) string {
	return "[[" + id + "|" + linkLabel(name) + "]]"
}

// MaintainerLink returns a wiki link to the maintainer's note.
func MaintainerLink(handle string) string {
	label := linkLabel(handle)
	return "[[maintainers/" + label + "|" + label + "]]"
}

func linkLabel(s string) string {
	return strings.NewReplacer("[", "", "]", "", "|", "-", "\n", " ").Replace(s)
}

func section(buf *bytes.Buffer, title string) {
	fmt.Fprintf(buf, "## %s\n\n", title)
}

// list writes one bullet per item, or "_None_" when items is empty.
func list[T any](buf *bytes.Buffer, items []T, line func(T) string) {
	if len(items) == 0 {
		buf.WriteString("_None_\n\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(buf, "- %s\n", line(it))
	}
	buf.WriteString("\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// invalidText returns the name of the first text field that is not valid
// UTF-8.
func invalidText(p *nixpkgs.Package) (string, bool) {
	fields := []struct {
		name   string
		values []string
	}{
		{"name", []string{p.Name}},
		{"version", []string{p.Version}},
		{"attr_path", []string{p.AttrPath}},
		{"short_description", []string{p.ShortDescription}},
		{"long_description", []string{p.LongDescription}},
		{"drv_path", []string{p.DrvPath}},
		{"position", []string{p.Position.String()}},
		{"licenses", p.Licenses},
		{"maintainers", p.Maintainers},
		{"homepages", p.Homepages},
		{"outputs", p.Outputs},
	}
	for _, f := range fields {
		for _, v := range f.values {
			if !utf8.ValidString(v) {
				return f.name, true
			}
		}
	}
	for _, ref := range p.DependencyRefs {
		if !utf8.ValidString(ref.Key) {
			return "dependency_refs", true
		}
	}
	return "", false
}
