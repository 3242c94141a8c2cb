package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	pkgs := []nixpkgs.Package{
		{
			Name: "zlib", Version: "1.3", Licenses: []string{"Zlib"}, Maintainers: []string{},
			Homepages: []string{}, Outputs: []string{"dev", "out"}, DependencyRefs: []nixpkgs.DependencyRef{},
		},
		{
			Name: "curl", Version: "8.0", Licenses: []string{"curl"}, Maintainers: []string{"alice"},
			Homepages: []string{"https://curl.se"}, Outputs: []string{"out"},
			Position:       &nixpkgs.Position{File: "pkgs/curl.nix", Line: 10},
			DependencyRefs: []nixpkgs.DependencyRef{{Key: "zlib", Kind: nixpkgs.KindBuild}, {Key: "perl", Kind: nixpkgs.KindNative}},
		},
	}
	g, err := graph.Build(pkgs, []string{"bbbb-zlib-1.3", "aaaa-curl-8.0"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestWriteJSONOrderedByIdentifier(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(sampleGraph(t), &buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	curl := strings.Index(out, `"identifier": "aaaa-curl-8.0"`)
	zlib := strings.Index(out, `"identifier": "bbbb-zlib-1.3"`)
	if curl < 0 || zlib < 0 || curl > zlib {
		t.Errorf("packages not ordered by identifier:\n%s", out)
	}
	if !strings.Contains(out, `"position": null`) {
		t.Errorf("missing null position:\n%s", out)
	}
}

func TestRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	var dump bytes.Buffer
	if err := WriteJSON(g, &dump); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	path := filepath.Join(t.TempDir(), "packages.json")
	if err := os.WriteFile(path, dump.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if loaded.NodeCount() != g.NodeCount() || loaded.EdgeCount() != g.EdgeCount() {
		t.Errorf("loaded %d nodes %d edges, want %d %d",
			loaded.NodeCount(), loaded.EdgeCount(), g.NodeCount(), g.EdgeCount())
	}
	if got := loaded.Dependencies("aaaa-curl-8.0")[0].To; got != "bbbb-zlib-1.3" {
		t.Errorf("curl -> %q, want bbbb-zlib-1.3", got)
	}

	var a, b bytes.Buffer
	if err := WriteJSON(g, &a); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(loaded, &b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Errorf("re-export differs:\n%s\n---\n%s", a.String(), b.String())
	}
}

func TestReadJSONErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{`},
		{"object", `{"identifier": "x"}`},
		{"empty identifier", `[{"identifier": "", "name": "x"}]`},
		{"bad identifier", `[{"identifier": "../etc", "name": "x"}]`},
		{"duplicate", `[{"identifier": "a", "name": "x"}, {"identifier": "a", "name": "y"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadJSON(strings.NewReader(tt.input)); err == nil {
				t.Errorf("ReadJSON(%s) = nil error, want error", tt.input)
			}
		})
	}

	_, err := ReadJSON(strings.NewReader(`[{"identifier": "A B"}]`))
	if !errors.Is(err, errors.ErrCodeInvalidIdentifier) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidIdentifier)
	}
}

func TestImportJSONMissingFile(t *testing.T) {
	if _, err := ImportJSON(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("ImportJSON(missing) = nil error, want error")
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	s := &stats.Statistics{TotalPackages: 2, Maintainers: []stats.Count{}, Licenses: []stats.Count{}, Outputs: []stats.Count{}}
	if err := WriteStats(s, &buf); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}
	if !strings.Contains(buf.String(), `"total_packages": 2`) {
		t.Errorf("WriteStats = %s", buf.String())
	}
}
