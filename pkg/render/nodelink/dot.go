package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the version and licenses to node labels.
	// When false, only the package name is shown.
	Detailed bool

	// HideExternal omits unresolved references and their edges.
	HideExternal bool
}

// ToDOT converts a package graph to Graphviz DOT format. Nodes are the
// package identifiers in sorted order and edges follow [graph.Graph.Edges],
// so the same graph always produces the same text.
//
// External references are drawn as dashed plaintext nodes named "ext:<key>",
// one per distinct key.
func ToDOT(g *graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, p := range g.Packages() {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", p.Identifier, fmtLabel(p, opts.Detailed))
	}

	edges := g.Edges()
	if !opts.HideExternal {
		var external []string
		for _, e := range edges {
			if e.IsExternal() {
				external = append(external, e.Key)
			}
		}
		slices.Sort(external)
		external = slices.Compact(external)
		if len(external) > 0 {
			buf.WriteString("\n")
		}
		for _, k := range external {
			fmt.Fprintf(&buf, "  %q [label=%q, shape=plaintext, style=dashed, fontcolor=grey40];\n", externalID(k), k)
		}
	}

	buf.WriteString("\n")
	for _, e := range edges {
		switch {
		case e.IsExternal() && opts.HideExternal:
			continue
		case e.IsExternal():
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=grey60];\n", e.From, externalID(e.Key))
		default:
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", e.From, e.To, fmtEdgeAttrs(e.Kind))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func externalID(key string) string { return "ext:" + key }

func fmtLabel(p *nixpkgs.Package, detailed bool) string {
	if !detailed {
		return p.Name
	}
	parts := []string{p.Name}
	if p.Version != "" {
		parts = append(parts, "version: "+p.Version)
	}
	if len(p.Licenses) > 0 {
		parts = append(parts, "license: "+strings.Join(p.Licenses, ", "))
	}
	return strings.Join(parts, "\n")
}

func fmtEdgeAttrs(kind nixpkgs.DependencyKind) string {
	switch kind {
	case nixpkgs.KindNative:
		return " [style=dotted]"
	case nixpkgs.KindPropagated:
		return " [style=bold]"
	default:
		return ""
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
