package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/buildinfo"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	vaultio "github.com/nixpkgs-vault/nixpkgs-vault/pkg/io"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/vault"
)

// serveCommand creates the command serving a generated vault over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		outdir string
		addr   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a generated vault as a read-only JSON API",
		Long: `Serve loads packages.json from a generated vault and serves it over HTTP:

  GET /healthz               build information
  GET /packages              all packages
  GET /packages/{id}         one package with its dependencies
  GET /packages/{id}/note    the package note as markdown
  GET /stats                 statistics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			sw := newStopwatch(logger)

			g, err := vaultio.ImportJSON(filepath.Join(outdir, vault.PackagesFile))
			if err != nil {
				return errors.Wrap(errors.ErrCodeIngestion, err, "load vault %s", outdir)
			}
			s, err := stats.Compute(ctx, g, 0)
			if err != nil {
				return err
			}
			sw.done(fmt.Sprintf("Loaded %d packages from %s", g.NodeCount(), outdir))

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(g, s, logger).routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return listen(ctx, srv, logger)
		},
	}

	cmd.Flags().StringVarP(&outdir, "outdir", "o", defaultOutdir, "vault directory")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// listen serves until ctx is cancelled, then shuts down gracefully.
func listen(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// server answers read-only queries against one loaded graph.
type server struct {
	graph  *graph.Graph
	stats  *stats.Statistics
	logger *log.Logger
}

func newServer(g *graph.Graph, s *stats.Statistics, logger *log.Logger) *server {
	return &server{graph: g, stats: s, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Route("/packages", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.packageCtx)
			r.Get("/", s.handlePackage)
			r.Get("/note", s.handleNote)
		})
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

type ctxKeyPackage struct{}

// packageCtx validates the {id} parameter and resolves the package.
func (s *server) packageCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := errors.ValidateIdentifier(id); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if _, ok := s.graph.Node(id); !ok {
			writeError(w, http.StatusNotFound, errors.New(errors.ErrCodePackageNotFound, "package %s not found", id))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyPackage{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"build":    buildinfo.Get(),
		"packages": s.graph.NodeCount(),
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats)
}

type packageSummary struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Version    string `json:"version"`
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	out := make([]packageSummary, 0, s.graph.NodeCount())
	for _, p := range s.graph.Packages() {
		out = append(out, packageSummary{Identifier: p.Identifier, Name: p.Name, Version: p.Version})
	}
	writeJSON(w, http.StatusOK, out)
}

type dependencyView struct {
	Key        string `json:"key"`
	Kind       string `json:"kind"`
	Identifier string `json:"identifier,omitempty"`
	External   bool   `json:"external"`
}

func (s *server) handlePackage(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(ctxKeyPackage{}).(string)
	p, _ := s.graph.Node(id)

	deps := make([]dependencyView, 0)
	for _, e := range s.graph.Dependencies(id) {
		deps = append(deps, dependencyView{Key: e.Key, Kind: string(e.Kind), Identifier: e.To, External: e.IsExternal()})
	}
	requiredBy := s.graph.DependentIDs(id)
	if requiredBy == nil {
		requiredBy = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"package":      p,
		"dependencies": deps,
		"required_by":  requiredBy,
	})
}

func (s *server) handleNote(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(ctxKeyPackage{}).(string)
	doc, err := render.Note(s.graph, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"code":  string(errors.GetCode(err)),
		"error": errors.UserMessage(err),
	})
}
