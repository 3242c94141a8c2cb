// Package graph links normalized packages into a dependency multigraph.
//
// # Overview
//
// A [Graph] holds every package of a run, keyed by the identifier assigned
// by package ident, plus the full edge set. It is built once by [Build] and
// never modified afterwards, so any number of goroutines may read it
// concurrently without synchronization.
//
// # Resolution
//
// Each dependency reference is resolved through a lookup table keyed by the
// names nix uses for packages:
//
//	attrPath          python3Packages.requests
//	name              requests
//	name@version      requests@2.31.0
//	name-version      requests-2.31.0
//
// When several packages register the same key, the first in
// [nixpkgs.Compare] order wins. A reference that resolves to nothing becomes
// an external edge: it is kept, with an empty To, and rendered as plain text.
//
// # Shape
//
// The graph is a general directed multigraph. Cycles, self-loops and
// repeated edges between the same pair are legal in nixpkgs and are
// preserved exactly as declared. Nothing in this package recurses over
// edges; [Graph.HasCycle] is iterative.
package graph
