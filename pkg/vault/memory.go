package vault

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
)

// Memory keeps everything in memory. It is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	docs      map[string][]byte
	artifacts map[string][]byte

	// FailDocument, when set, makes WriteDocument fail for the identifiers
	// it returns an error for.
	FailDocument func(id string) error
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte), artifacts: make(map[string][]byte)}
}

func (m *Memory) WriteDocument(ctx context.Context, doc *render.Document) error {
	if m.FailDocument != nil {
		if err := m.FailDocument(doc.Identifier); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Path] = slices.Clone(doc.Body)
	return nil
}

func (m *Memory) WriteArtifact(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[name] = slices.Clone(data)
	return nil
}

func (m *Memory) Close(ctx context.Context) error { return nil }

// Documents returns a copy of the written documents keyed by path.
func (m *Memory) Documents() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.docs)
}

// Document returns one written document.
func (m *Memory) Document(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[path]
	return d, ok
}

// Artifact returns one written artifact.
func (m *Memory) Artifact(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.artifacts[name]
	return d, ok
}

var _ Sink = (*Memory)(nil)
