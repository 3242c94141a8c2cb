// Package source obtains raw package records by running nix.
//
// [Nix] fetches a nixpkgs revision with nix-instantiate and evaluates it
// with nix-env. [Cached] puts a [cache.Cache] in front of any [Loader], so
// repeated runs against one revision evaluate once.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/cache"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
)

// Loader returns the raw evaluation JSON for a revision of a repository.
type Loader interface {
	Load(ctx context.Context, gitURL, revision string) ([]byte, error)
}

// CommandRunner runs an external command and returns its standard output.
// The error of a failed command includes its standard error.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, lastLines(msg, 5))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Nix evaluates nixpkgs with the nix command-line tools.
type Nix struct {
	Run    CommandRunner
	Logger *log.Logger
}

// NewNix returns a Nix that runs real commands.
func NewNix(logger *log.Logger) *Nix {
	if logger == nil {
		logger = log.New(nil)
	}
	return &Nix{Run: ExecRunner, Logger: logger}
}

// Load fetches revision and evaluates it.
func (n *Nix) Load(ctx context.Context, gitURL, revision string) ([]byte, error) {
	path, err := n.Fetch(ctx, gitURL, revision)
	if err != nil {
		return nil, err
	}
	return n.Evaluate(ctx, path)
}

// Fetch copies revision of gitURL into the nix store and returns the store
// path. Network failures are retried with backoff.
func (n *Nix) Fetch(ctx context.Context, gitURL, revision string) (string, error) {
	if err := errors.ValidateGitURL(gitURL); err != nil {
		return "", err
	}
	if revision == "" || strings.ContainsAny(revision, "\"\\\n") {
		return "", errors.New(errors.ErrCodeInvalidInput, "invalid revision %q", revision)
	}

	expr := fmt.Sprintf(`builtins.fetchGit { url = %s; ref = %s; }`, strconv.Quote(gitURL), strconv.Quote(revision))
	n.Logger.Debug("fetching nixpkgs", "url", gitURL, "revision", revision)

	var out []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		out, err = n.Run(ctx, "nix-instantiate", "--eval", "--json", "--expr", expr)
		if err != nil && isNetworkError(err) {
			n.Logger.Warn("fetch failed, retrying", "error", err)
			return cache.Retryable(fmt.Errorf("%w: %w", cache.ErrNetwork, err))
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if cache.IsRetryable(err) {
			return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s at %s", gitURL, revision)
		}
		return "", errors.Wrap(errors.ErrCodeIngestion, err, "fetch %s at %s", gitURL, revision)
	}

	path := strings.Trim(strings.TrimSpace(string(out)), `"`)
	if path == "" {
		return "", errors.New(errors.ErrCodeIngestion, "nix-instantiate returned no store path")
	}
	if info, err := os.Stat(filepath.Join(path, "pkgs")); err != nil || !info.IsDir() {
		return "", errors.New(errors.ErrCodeIngestion, "%s is not a nixpkgs checkout: no pkgs directory", path)
	}
	return path, nil
}

// Evaluate lists every package of the nixpkgs checkout at path as JSON.
func (n *Nix) Evaluate(ctx context.Context, path string) ([]byte, error) {
	n.Logger.Debug("evaluating nixpkgs", "path", path)
	out, err := n.Run(ctx, "nix-env", "-f", path, "-qa", "--json", "--meta", "--drv-path", "--out-path")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeIngestion, err, "evaluate %s", path)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, errors.New(errors.ErrCodeIngestion, "nix-env returned no output for %s", path)
	}
	return out, nil
}

var networkHints = []string{
	"could not resolve host",
	"unable to access",
	"connection timed out",
	"connection refused",
	"failed to connect",
	"network is unreachable",
	"temporary failure in name resolution",
}

func isNetworkError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, h := range networkHints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return false
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
