package vault

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
)

// Vault writes into a directory:
//
//	<dir>/packages/<identifier>.md
//	<dir>/packages.json
//	<dir>/stats.json
//	<dir>/Statistics.md
//	<dir>/graph.dot
//	<dir>/graph.svg (optional)
//
// Files whose content is unchanged are not rewritten, so re-running against
// the same revision leaves modification times alone.
type Vault struct {
	dir string
}

// New creates the vault directory and its packages folder.
func New(dir string) (*Vault, error) {
	if err := errors.ValidateOutdir(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, render.PackagesDir), 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSinkWrite, err, "create vault %s", dir)
	}
	return &Vault{dir: dir}, nil
}

// Dir returns the vault root.
func (v *Vault) Dir() string { return v.dir }

// WriteDocument writes doc to its note path. The error carries
// [errors.ErrCodeSinkWrite].
func (v *Vault) WriteDocument(ctx context.Context, doc *render.Document) error {
	if err := errors.ValidateIdentifier(doc.Identifier); err != nil {
		return errors.Wrap(errors.ErrCodeSinkWrite, err, "write %s", doc.Path)
	}
	return v.write(ctx, filepath.FromSlash(doc.Path), doc.Body)
}

// WriteArtifact writes a top-level file of the vault.
func (v *Vault) WriteArtifact(ctx context.Context, name string, data []byte) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return errors.New(errors.ErrCodeSinkWrite, "invalid artifact name %q", name)
	}
	return v.write(ctx, name, data)
}

func (v *Vault) write(ctx context.Context, rel string, data []byte) (err error) {
	start := time.Now()
	defer func() {
		observability.Sink().OnWrite(ctx, "vault", len(data), time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(v.dir, rel)
	if old, rerr := os.ReadFile(path); rerr == nil && bytes.Equal(old, data) {
		return nil
	}
	if werr := os.WriteFile(path, data, 0644); werr != nil {
		return errors.Wrap(errors.ErrCodeSinkWrite, werr, "write %s", rel)
	}
	return nil
}

// Prune removes package notes whose identifier is not in keep, such as
// notes left by an earlier run against another revision. It returns the
// number of files removed.
func (v *Vault) Prune(keep []string) (int, error) {
	want := make(map[string]bool, len(keep))
	for _, id := range keep {
		want[id+".md"] = true
	}

	dir := filepath.Join(v.dir, render.PackagesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeSinkWrite, err, "read %s", dir)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || want[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, errors.Wrap(errors.ErrCodeSinkWrite, err, "remove %s", e.Name())
		}
		removed++
	}
	return removed, nil
}

// Close does nothing for a directory vault.
func (v *Vault) Close(ctx context.Context) error { return nil }

var _ Sink = (*Vault)(nil)
