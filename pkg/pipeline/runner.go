package pipeline

import (
	"bytes"
	"cmp"
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/ident"
	vaultio "github.com/nixpkgs-vault/nixpkgs-vault/pkg/io"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render/nodelink"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/vault"
)

// Runner executes runs against one sink.
//
// The Runner holds no per-run state, so one Runner may execute several
// runs, but runs sharing a sink must not overlap.
type Runner struct {
	Sink   vault.Sink
	Logger *log.Logger
}

// NewRunner creates a runner writing to sink.
// If sink is nil, an in-memory sink is used.
// If logger is nil, the default logger is used.
func NewRunner(sink vault.Sink, logger *log.Logger) *Runner {
	if sink == nil {
		sink = vault.NewMemory()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Sink: sink, Logger: logger}
}

// ExecuteJSON decodes evaluator output from r and executes a run over it.
// Records that cannot be decoded at all are reported as malformed.
func (r *Runner) ExecuteJSON(ctx context.Context, in io.Reader, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	recs, malformed, err := nixpkgs.ReadRecords(in)
	if err != nil {
		return nil, err
	}
	return r.executeDecoded(ctx, recs, malformed, opts)
}

// ExecuteFile is [Runner.ExecuteJSON] over the evaluator output stored at
// path, such as a saved nix-env dump.
func (r *Runner) ExecuteFile(ctx context.Context, path string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	recs, malformed, err := nixpkgs.ReadRecordsFile(path)
	if err != nil {
		return nil, err
	}
	return r.executeDecoded(ctx, recs, malformed, opts)
}

// executeDecoded runs recs and reports the entries that failed decoding
// ahead of the normalization failures.
func (r *Runner) executeDecoded(ctx context.Context, recs []nixpkgs.RawRecord, malformed []*nixpkgs.MalformedRecordError, opts Options) (*Result, error) {
	if len(recs) == 0 {
		return nil, errors.New(errors.ErrCodeIngestion, "none of %d package records is decodable", len(malformed))
	}
	result, err := r.Execute(ctx, recs, opts)
	if err != nil {
		return nil, err
	}
	result.Records += len(malformed)
	result.Malformed = append(malformed, result.Malformed...)
	return result, nil
}

// Execute runs the complete normalize → allocate → graph → stats → render
// → dump pipeline over recs.
//
// It returns an error only when the options are invalid, no record can be
// normalized, or ctx is cancelled. Every other failure is recorded in the
// result.
func (r *Runner) Execute(ctx context.Context, recs []nixpkgs.RawRecord, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	result := &Result{RunID: opts.RunID, Records: len(recs)}
	logger = logger.With("run", shortID(opts.RunID))

	if len(recs) == 0 {
		return nil, errors.New(errors.ErrCodeIngestion, "no package records")
	}

	// Stage 1: Normalize
	var pkgs []nixpkgs.Package
	err := r.stage(ctx, observability.StageNormalize, len(recs), &result.Timings.Normalize, func() error {
		var err error
		pkgs, result.Malformed, err = nixpkgs.NormalizeAll(ctx, recs, opts.Threads)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, m := range result.Malformed {
		observability.Pipeline().OnPackage(ctx, observability.OutcomeMalformed)
		logger.Warn("skipping malformed record", "record", m.Index, "key", m.Key, "field", m.Field, "reason", m.Reason)
	}
	if len(pkgs) == 0 {
		return nil, errors.New(errors.ErrCodeIngestion, "none of %d package records is valid", len(recs))
	}
	logger.Info("normalized records",
		"packages", len(pkgs),
		"malformed", len(result.Malformed),
		"duration", result.Timings.Normalize)

	// Stage 2: Allocate
	var ids []string
	_ = r.stage(ctx, observability.StageAllocate, len(pkgs), &result.Timings.Allocate, func() error {
		ids, result.Collisions = ident.Allocate(pkgs)
		return nil
	})
	for _, c := range result.Collisions {
		logger.Debug("disambiguated identifier", "candidate", c.Candidate, "identifier", c.Identifier, "name", c.Name, "version", c.Version)
	}

	// Stage 3: Graph
	pkgs, ids = selectFirst(pkgs, ids, opts.Limit)
	var g *graph.Graph
	err = r.stage(ctx, observability.StageGraph, len(pkgs), &result.Timings.Graph, func() error {
		var err error
		g, err = graph.Build(pkgs, ids)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "build graph")
		}
		if err := g.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "validate graph")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Graph = g
	result.Packages = g.NodeCount()
	result.Unresolved = g.ExternalCount()
	if logger.GetLevel() <= log.DebugLevel {
		for _, e := range g.Edges() {
			if e.IsExternal() {
				logger.Debug("unresolved dependency", "from", e.From, "key", e.Key, "kind", e.Kind)
			}
		}
	}
	logger.Info("built graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"external", g.ExternalCount(),
		"duration", result.Timings.Graph)
	if logger.GetLevel() <= log.DebugLevel && g.HasCycle() {
		logger.Debug("dependency graph contains cycles")
	}

	// Stage 4: Stats
	err = r.stage(ctx, observability.StageStats, g.NodeCount(), &result.Timings.Stats, func() error {
		var err error
		result.Stats, err = stats.Compute(ctx, g, opts.Threads)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("computed statistics",
		"maintainers", result.Stats.TotalMaintainers,
		"licenses", result.Stats.TotalLicenses,
		"maintainer_pairs", result.Stats.MaintainerPairs(),
		"duration", result.Timings.Stats)

	// Stage 5: Render
	err = r.stage(ctx, observability.StageRender, g.NodeCount(), &result.Timings.Render, func() error {
		return r.renderAll(ctx, g, opts, result)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("rendered notes",
		"rendered", result.Rendered,
		"written", result.Written,
		"failed", len(result.Failures),
		"duration", result.Timings.Render)

	// Stage 6: Dump
	err = r.stage(ctx, observability.StageDump, 0, &result.Timings.Dump, func() error {
		return r.dump(ctx, g, opts, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (r *Runner) stage(ctx context.Context, name string, items int, d *time.Duration, fn func() error) error {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name, items)
	start := time.Now()
	err := fn()
	*d = time.Since(start)
	hooks.OnStageComplete(ctx, name, items, *d, err)
	return err
}

// selectFirst keeps the limit packages with the smallest identifiers.
func selectFirst(pkgs []nixpkgs.Package, ids []string, limit int) ([]nixpkgs.Package, []string) {
	if limit <= 0 || limit >= len(pkgs) {
		return pkgs, ids
	}
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return cmp.Compare(ids[a], ids[b]) })

	keptPkgs := make([]nixpkgs.Package, 0, limit)
	keptIDs := make([]string, 0, limit)
	for _, i := range order[:limit] {
		keptPkgs = append(keptPkgs, pkgs[i])
		keptIDs = append(keptIDs, ids[i])
	}
	return keptPkgs, keptIDs
}

type artifact struct {
	name string
	gen  func() ([]byte, error)
}

func (r *Runner) dump(ctx context.Context, g *graph.Graph, opts Options, result *Result) error {
	artifacts := []artifact{
		{vault.PackagesFile, func() ([]byte, error) {
			var buf bytes.Buffer
			err := vaultio.WriteJSON(g, &buf)
			return buf.Bytes(), err
		}},
		{vault.StatsFile, func() ([]byte, error) {
			var buf bytes.Buffer
			err := vaultio.WriteStats(result.Stats, &buf)
			return buf.Bytes(), err
		}},
		{vault.StatisticsNote, func() ([]byte, error) {
			return render.StatisticsNote(result.Stats), nil
		}},
		{vault.GraphDOTFile, func() ([]byte, error) {
			return []byte(nodelink.ToDOT(g, nodelink.Options{})), nil
		}},
	}
	if opts.GraphSVG {
		artifacts = append(artifacts, artifact{vault.GraphSVGFile, func() ([]byte, error) {
			return nodelink.RenderSVG(ctx, nodelink.ToDOT(g, nodelink.Options{HideExternal: true}))
		}})
	}

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := a.gen()
		if err != nil {
			result.Failures = append(result.Failures, Failure{Identifier: a.name, Stage: StageArtifact, Err: err})
			opts.Logger.Error("artifact failed", "artifact", a.name, "error", err)
			continue
		}
		if err := r.Sink.WriteArtifact(ctx, a.name, data); err != nil {
			result.Failures = append(result.Failures, Failure{Identifier: a.name, Stage: StageWrite, Err: err})
			opts.Logger.Error("artifact write failed", "artifact", a.name, "error", err)
			continue
		}
		opts.Logger.Debug("wrote artifact", "artifact", a.name, "bytes", len(data))
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
