// Package pkg provides the libraries behind nixpkgs-vault, which turns a
// nixpkgs package set into an Obsidian vault of linked markdown notes.
//
// # Architecture
//
// A vault build flows through these packages:
//
//	nix evaluation (or a JSON dump)
//	         ↓
//	    [nixpkgs/source] fetch and evaluate a revision, cached
//	         ↓
//	    [nixpkgs] decode and normalize raw records
//	         ↓
//	    [ident] allocate stable identifiers
//	         ↓
//	    [graph] link dependency references into edges
//	         ↓
//	    [stats] count maintainers, licenses and outputs
//	         ↓
//	    [render] markdown notes, [render/nodelink] graph.dot and graph.svg
//	         ↓
//	    [vault] write notes to a directory (and optionally MongoDB)
//
// [pipeline] runs the stages in order with a bounded render pool and is the
// only entry point the CLI uses.
//
// # Supporting Packages
//
// [cache] stores evaluation output in files or Redis. [errors] carries the
// error codes that decide whether a failure aborts a run. [observability]
// exposes stage, cache and sink hooks with a Prometheus implementation.
// [io] reads and writes the packages.json dump.
//
// # Quick Start
//
//	recs, malformed, err := nixpkgs.ReadRecordsFile("packages.json")
//	if err != nil {
//	    return err
//	}
//	v, err := vault.New("out")
//	if err != nil {
//	    return err
//	}
//	result, err := pipeline.NewRunner(v, nil).Execute(ctx, recs, pipeline.Options{})
//
// [nixpkgs/source]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs/source
// [nixpkgs]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs
// [ident]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/ident
// [graph]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph
// [stats]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats
// [render]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/render/nodelink
// [vault]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/vault
// [pipeline]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/cache
// [errors]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors
// [observability]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability
// [io]: https://pkg.go.dev/github.com/nixpkgs-vault/nixpkgs-vault/pkg/io
package pkg
