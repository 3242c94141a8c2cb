package vault

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
)

func doc(id, body string) *render.Document {
	return &render.Document{Identifier: id, Path: render.NotePath(id), Body: []byte(body)}
}

func TestVaultWriteDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	v, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, v.WriteDocument(context.Background(), doc("abc-hello", "# hello\n")))

	data, err := os.ReadFile(filepath.Join(dir, "packages", "abc-hello.md"))
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(data))
}

func TestVaultSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	v, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.WriteArtifact(ctx, PackagesFile, []byte("[]\n")))
	path := filepath.Join(dir, PackagesFile)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, v.WriteArtifact(ctx, PackagesFile, []byte("[]\n")))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged file was rewritten")

	require.NoError(t, v.WriteArtifact(ctx, PackagesFile, []byte("[1]\n")))
	data, _ := os.ReadFile(path)
	assert.Equal(t, "[1]\n", string(data))
}

func TestVaultRejectsUnsafeNames(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = v.WriteDocument(ctx, &render.Document{Identifier: "../escape", Path: "packages/../../escape.md"})
	assert.True(t, errors.Is(err, errors.ErrCodeSinkWrite))

	for _, name := range []string{"", "../x", "a/b", ".hidden"} {
		err := v.WriteArtifact(ctx, name, nil)
		assert.True(t, errors.Is(err, errors.ErrCodeSinkWrite), name)
	}
}

func TestVaultWriteFailureIsSinkWrite(t *testing.T) {
	dir := t.TempDir()
	v, err := New(dir)
	require.NoError(t, err)

	// A directory where the note should go makes the write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "packages", "blocked.md"), 0755))
	err = v.WriteDocument(context.Background(), doc("blocked", "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSinkWrite))
	assert.False(t, errors.IsFatal(err))
}

func TestVaultPrune(t *testing.T) {
	dir := t.TempDir()
	v, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, v.WriteDocument(ctx, doc(id, id)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packages", "notes.txt"), nil, 0644))

	removed, err := v.Prune([]string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := os.ReadDir(filepath.Join(dir, "packages"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.md", "c.md", "notes.txt"}, names)
}

func TestNewRejectsRoot(t *testing.T) {
	_, err := New("/")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
}

func TestTee(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory(), NewMemory()
	b.FailDocument = func(id string) error {
		if id == "bad" {
			return stderrors.New("boom")
		}
		return nil
	}
	tee := Tee{a, b}

	require.NoError(t, tee.WriteDocument(ctx, doc("good", "g")))
	require.Error(t, tee.WriteDocument(ctx, doc("bad", "b")))
	require.NoError(t, tee.WriteArtifact(ctx, StatsFile, []byte("{}")))
	require.NoError(t, tee.Close(ctx))

	_, ok := a.Document(render.NotePath("bad"))
	assert.True(t, ok, "first sink still receives the document")
	_, ok = b.Document(render.NotePath("bad"))
	assert.False(t, ok)
	data, ok := b.Artifact(StatsFile)
	assert.True(t, ok)
	assert.Equal(t, "{}", string(data))
	assert.Len(t, a.Documents(), 2)
}
