package pipeline

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
)

// renderNote is replaced in tests.
var renderNote = render.Note

// renderAll renders and writes one note per package of g on at most
// opts.Threads workers. A failing package is recorded in result and does
// not stop the others; only cancellation of ctx aborts the pool.
func (r *Runner) renderAll(ctx context.Context, g *graph.Graph, opts Options, result *Result) error {
	workers := opts.Threads
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ids := g.IDs()
	failures := make([]*Failure, len(ids))
	rendered := make([]bool, len(ids))
	hooks := observability.Pipeline()

	var (
		mu   sync.Mutex
		done int
	)
	progress := func() {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		opts.Progress(done, len(ids))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, id := range ids {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			defer progress()

			doc, err := safeRender(g, id)
			if err != nil {
				failures[i] = &Failure{Identifier: id, Stage: StageRender, Err: err}
				hooks.OnPackage(egCtx, observability.OutcomeRenderFailed)
				opts.Logger.Warn("render failed", "package", id, "error", err)
				return nil
			}
			rendered[i] = true

			if err := r.Sink.WriteDocument(egCtx, doc); err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				failures[i] = &Failure{Identifier: id, Stage: StageWrite, Err: err}
				hooks.OnPackage(egCtx, observability.OutcomeWriteFailed)
				opts.Logger.Warn("write failed", "package", id, "error", err)
				return nil
			}
			hooks.OnPackage(egCtx, observability.OutcomeRendered)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range ids {
		if rendered[i] {
			result.Rendered++
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, *failures[i])
		} else if rendered[i] {
			result.Written++
		}
	}
	return nil
}

// safeRender renders one note, turning a panic into a render failure.
func safeRender(g *graph.Graph, id string) (doc *render.Document, err error) {
	defer func() {
		if v := recover(); v != nil {
			doc = nil
			err = errors.New(errors.ErrCodeRenderFailed, "panic rendering %s: %v", id, v)
		}
	}()
	doc, err = renderNote(g, id)
	if err != nil && !errors.Is(err, errors.ErrCodeRenderFailed) {
		err = errors.Wrap(errors.ErrCodeRenderFailed, err, "render %s", id)
	}
	return doc, err
}
