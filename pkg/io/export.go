package io

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/stats"
)

// WriteJSON encodes every package of g as an indented JSON array ordered by
// identifier. The same graph always produces the same bytes.
func WriteJSON(g *graph.Graph, w io.Writer) error {
	pkgs := make([]nixpkgs.Package, 0, g.NodeCount())
	for _, p := range g.Packages() {
		pkgs = append(pkgs, *p)
	}
	return encode(w, pkgs)
}

// WriteStats encodes s as indented JSON.
func WriteStats(s *stats.Statistics, w io.Writer) error {
	return encode(w, s)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
