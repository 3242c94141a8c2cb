// Package nodelink renders the package graph as a node-link diagram.
//
// # Usage
//
// Convert a graph to DOT, then optionally render it to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # DOT Format
//
// The generated DOT uses a left-to-right layout with rounded box nodes.
// Native inputs are drawn dotted and propagated inputs bold. Unresolved
// references appear as dashed plaintext nodes unless
// [Options.HideExternal] is set.
//
// For the full nixpkgs set the SVG is very large; graph.dot is always
// written, graph.svg only on request.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
