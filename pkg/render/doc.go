// Package render turns graph nodes into Obsidian-style markdown notes.
//
// # Package Notes
//
// [Note] renders one package as a markdown document with YAML frontmatter.
// Dependencies that resolve inside the graph become wiki links to the
// target's note ([[identifier|name]]); external references are written as
// inline code followed by "(external)", never as links.
//
// Rendering only reads the package and its one-hop neighbours, so any
// number of goroutines may render from the same graph at once.
//
// # Statistics
//
// [StatisticsNote] renders the aggregate counts from package stats.
//
// # Graph Diagrams
//
// The [nodelink] subpackage exports the whole dependency graph as Graphviz
// DOT and, optionally, SVG.
package render
