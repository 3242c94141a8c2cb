// Package vault writes rendered notes and run artifacts.
//
// A [Sink] receives one [render.Document] per package, possibly from many
// goroutines at once, plus a handful of whole-run artifacts (packages.json,
// stats.json, Statistics.md, graph.dot). [Vault] writes them to a directory
// that can be opened as an Obsidian vault; [MongoSink] mirrors them into
// MongoDB; [Memory] keeps them in memory; [Tee] fans out to several sinks.
package vault

import (
	"context"
	stderrors "errors"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
)

// Artifact names, relative to the vault root.
const (
	PackagesFile   = "packages.json"
	StatsFile      = "stats.json"
	StatisticsNote = render.StatisticsPath
	GraphDOTFile   = "graph.dot"
	GraphSVGFile   = "graph.svg"
)

// Sink is the destination of a run. WriteDocument must be safe for
// concurrent calls with distinct documents.
type Sink interface {
	WriteDocument(ctx context.Context, doc *render.Document) error
	WriteArtifact(ctx context.Context, name string, data []byte) error
	Close(ctx context.Context) error
}

// Tee writes to every sink in order. A failure in one sink does not stop
// the others; the errors are joined.
type Tee []Sink

func (t Tee) WriteDocument(ctx context.Context, doc *render.Document) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.WriteDocument(ctx, doc))
	}
	return stderrors.Join(errs...)
}

func (t Tee) WriteArtifact(ctx context.Context, name string, data []byte) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.WriteArtifact(ctx, name, data))
	}
	return stderrors.Join(errs...)
}

func (t Tee) Close(ctx context.Context) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close(ctx))
	}
	return stderrors.Join(errs...)
}
