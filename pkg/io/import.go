package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

// ReadJSON decodes a packages.json array from r.
//
// Every package must carry a valid, unique identifier. ReadJSON returns an
// error if:
//   - The JSON is malformed or not an array
//   - A package has an empty or invalid identifier
//   - Two packages share an identifier
//
// ReadJSON does not close r.
func ReadJSON(r io.Reader) ([]nixpkgs.Package, error) {
	var pkgs []nixpkgs.Package
	if err := json.NewDecoder(r).Decode(&pkgs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	seen := make(map[string]bool, len(pkgs))
	for i := range pkgs {
		id := pkgs[i].Identifier
		if err := errors.ValidateIdentifier(id); err != nil {
			return nil, fmt.Errorf("package #%d: %w", i, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("package #%d: %w: %s", i, graph.ErrDuplicateNodeID, id)
		}
		seen[id] = true
	}
	return pkgs, nil
}

// ImportJSON reads a packages.json file at path and rebuilds its graph.
//
// ImportJSON returns the same validation errors as [ReadJSON], wrapped with
// the file path.
func ImportJSON(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pkgs, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return graph.FromPackages(pkgs)
}
