// Package pipeline turns evaluated nixpkgs records into a vault.
//
// A run has six stages, each finished before the next starts:
//
//  1. Normalize: decode raw records into packages, in parallel
//  2. Allocate: assign every package its identifier
//  3. Graph: keep the first Limit packages by identifier and link them
//  4. Stats: aggregate per-worker tallies into global statistics
//  5. Render: render and write one note per package on a bounded pool
//  6. Dump: write packages.json, stats.json, Statistics.md and graph.dot
//
// The graph is complete and read-only before rendering starts, so workers
// share it without locking. Per-package failures (malformed records,
// render and write failures) are collected in the [Result]; only a failure
// of the whole input or a cancelled context aborts a run.
//
// # Usage
//
//	sink, err := vault.New("nixpkgs-vault")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(sink, logger)
//	result, err := runner.ExecuteJSON(ctx, f, pipeline.Options{Threads: 8})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Rendered, "notes")
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/ident"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
)

// Failure stages.
const (
	StageRender   = "render"
	StageWrite    = "write"
	StageArtifact = "artifact"
)

// Options configures one run.
type Options struct {
	// Threads bounds the worker pools. 0 uses one worker per CPU.
	Threads int `json:"threads"`

	// Limit keeps only the first Limit packages by identifier. 0 keeps all.
	Limit int `json:"limit"`

	// RunID identifies the run. Empty means a new random ID.
	RunID string `json:"run_id,omitempty"`

	// GraphSVG also renders graph.svg with graphviz.
	GraphSVG bool `json:"graph_svg,omitempty"`

	// Progress, if set, is called after each package is rendered and
	// written. Calls are serialized.
	Progress func(done, total int) `json:"-"`

	Logger *log.Logger `json:"-"`
}

// Validate rejects negative counts and applies defaults.
func (o *Options) Validate() error {
	if o.Threads < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "threads must not be negative, got %d", o.Threads)
	}
	if o.Limit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "limit must not be negative, got %d", o.Limit)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Failure is a package, or a run artifact, that could not be rendered or
// written.
type Failure struct {
	Identifier string
	Stage      string
	Err        error
}

func (f Failure) Error() string {
	return f.Stage + " " + f.Identifier + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error { return f.Err }

// Result describes a finished run.
type Result struct {
	// RunID identifies the run in logs and mirrored documents.
	RunID string

	// Graph holds the packages of the run, after Limit.
	Graph *graph.Graph

	Stats *stats.Statistics

	Records  int // raw records received
	Packages int // packages in the graph
	Rendered int // notes rendered
	Written  int // notes written

	Malformed  []*nixpkgs.MalformedRecordError
	Failures   []Failure
	Collisions []ident.Collision
	Unresolved int

	Timings Timings
}

// Timings holds the duration of each stage.
type Timings struct {
	Normalize time.Duration
	Allocate  time.Duration
	Graph     time.Duration
	Stats     time.Duration
	Render    time.Duration
	Dump      time.Duration
}

// Total is the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Normalize + t.Allocate + t.Graph + t.Stats + t.Render + t.Dump
}

// Identifiers returns the identifiers of every package of the run, sorted.
func (r *Result) Identifiers() []string {
	if r.Graph == nil {
		return nil
	}
	return r.Graph.IDs()
}

// OK reports whether every package was rendered and written.
func (r *Result) OK() bool {
	return len(r.Malformed) == 0 && len(r.Failures) == 0
}
