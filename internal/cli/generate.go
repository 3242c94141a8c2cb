package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/cache"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs/source"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/pipeline"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/vault"
)

// generateCommand creates the command that builds a vault. It is the root
// command's own action.
func (c *CLI) generateCommand() *cobra.Command {
	flagged := defaultConfig()
	var (
		configFile string
		noCache    bool
	)

	cmd := &cobra.Command{
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			cfg.overlay(cmd.Flags(), &flagged)
			if noCache {
				cfg.Cache.Backend = cacheBackendNone
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return c.generate(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flagged.Outdir, "outdir", "o", flagged.Outdir, "output directory")
	f.StringVarP(&flagged.Revision, "revision", "r", flagged.Revision, "nixpkgs revision, branch or tag")
	f.StringVarP(&flagged.GitURL, "git-url", "g", flagged.GitURL, "nixpkgs repository")
	f.IntVarP(&flagged.Threads, "threads", "j", 0, "worker count (0 = one per CPU)")
	f.IntVarP(&flagged.Limit, "limit", "l", 0, "maximum number of packages (0 = all)")
	f.StringVarP(&flagged.Input, "input", "i", "", "read evaluated packages from a JSON file instead of running nix")
	f.StringVar(&flagged.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	f.BoolVar(&flagged.GraphSVG, "graph-svg", false, "also render graph.svg")
	f.StringVar(&configFile, "config", "", "config file (default ~/.config/nixpkgs-vault/config.toml)")
	f.BoolVar(&noCache, "no-cache", false, "do not cache nix evaluations")

	return cmd
}

// generate runs one vault build with a fully merged config.
func (c *CLI) generate(ctx context.Context, cfg Config) (err error) {
	logger := c.Logger
	runID := uuid.NewString()
	start := time.Now()

	if cfg.MetricsFile != "" {
		hooks := observability.NewPrometheusHooks(prometheus.NewRegistry())
		observability.SetPipelineHooks(hooks)
		observability.SetCacheHooks(hooks)
		observability.SetSinkHooks(hooks)
		defer func() {
			if werr := hooks.WriteTextfile(cfg.MetricsFile); werr != nil {
				logger.Warn("write metrics failed", "path", cfg.MetricsFile, "error", werr)
			}
			observability.Reset()
		}()
	}

	v, err := vault.New(cfg.Outdir)
	if err != nil {
		return err
	}
	var sink vault.Sink = v
	if cfg.Mongo.URI != "" {
		ms, err := vault.NewMongoSink(ctx, vault.MongoOptions{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			RunID:      runID,
		})
		if err != nil {
			return err
		}
		sink = vault.Tee{v, ms}
		logger.Info("mirroring to mongodb", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
	}
	defer func() {
		if cerr := sink.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var view *progressView
	opts := pipeline.Options{
		Threads:  cfg.Threads,
		Limit:    cfg.Limit,
		RunID:    runID,
		GraphSVG: cfg.GraphSVG,
		Logger:   logger,
		Progress: func(done, total int) {
			if view == nil && done == 1 {
				view = newProgressView(ctx, os.Stderr, "Rendering notes", total)
			}
			view.update(done, total)
		},
	}
	result, err := c.execute(ctx, pipeline.NewRunner(sink, logger), cfg, opts)
	view.stop()
	if err != nil {
		return err
	}

	if cfg.Prune {
		removed, err := v.Prune(result.Identifiers())
		if err != nil {
			logger.Warn("prune failed", "error", err)
		} else if removed > 0 {
			logger.Info("removed stale notes", "count", removed)
		}
	}

	printSummary(result, v.Dir(), time.Since(start))
	return nil
}

// execute runs the pipeline over --input when set, and over a fresh (or
// cached) nix evaluation otherwise.
func (c *CLI) execute(ctx context.Context, runner *pipeline.Runner, cfg Config, opts pipeline.Options) (*pipeline.Result, error) {
	if cfg.Input != "" {
		return runner.ExecuteFile(ctx, cfg.Input, opts)
	}
	data, err := c.evaluate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return runner.ExecuteJSON(ctx, bytes.NewReader(data), opts)
}

// evaluate returns the nix-env output for the configured revision.
func (c *CLI) evaluate(ctx context.Context, cfg Config) ([]byte, error) {
	store, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	// A Redis instance may be shared with other tools.
	var keyer cache.Keyer
	if cfg.Cache.Backend == cacheBackendRedis {
		keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), appName+":")
	}
	loader := source.NewCached(source.NewNix(c.Logger), store, keyer, cfg.Cache.TTL, c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Evaluating nixpkgs %s...", cfg.Revision))
	spinner.Start()
	data, hit, err := loader.LoadWithCacheInfo(ctx, cfg.GitURL, cfg.Revision)
	if err != nil {
		spinner.StopWithError("Evaluation failed")
		return nil, err
	}
	msg := fmt.Sprintf("Evaluated nixpkgs %s", cfg.Revision)
	if hit {
		msg += " " + styleCached.Render("(cached)")
	}
	spinner.StopWithSuccess(msg)
	return data, nil
}
