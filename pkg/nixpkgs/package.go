package nixpkgs

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// DependencyKind classifies a dependency reference by the input attribute it
// was declared in.
type DependencyKind string

const (
	// KindGeneric is used when the source does not say which input a
	// reference came from.
	KindGeneric DependencyKind = "generic"
	// KindBuild references a buildInputs entry.
	KindBuild DependencyKind = "build"
	// KindNative references a nativeBuildInputs entry.
	KindNative DependencyKind = "native"
	// KindPropagated references a propagatedBuildInputs entry.
	KindPropagated DependencyKind = "propagated"
)

// Position is a location in the package repository.
type Position struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// String formats the position as "file:line", or just "file" when the line
// is unknown.
func (p *Position) String() string {
	if p == nil {
		return ""
	}
	if p.Line <= 0 {
		return p.File
	}
	return p.File + ":" + strconv.Itoa(p.Line)
}

// DependencyRef is a dependency as named by the source, before resolution.
type DependencyRef struct {
	Key  string         `json:"key"`
	Kind DependencyKind `json:"kind"`
}

// Package is the canonical form of one evaluated package.
//
// Packages are created by [Normalize] and not modified afterwards, with one
// exception: Identifier is empty until the graph builder assigns the value
// computed by the identifier allocator. Slice fields are never nil, so a
// serialized Package always carries every field.
type Package struct {
	Identifier       string          `json:"identifier"`
	AttrPath         string          `json:"attr_path"`
	Name             string          `json:"name"`
	Version          string          `json:"version"`
	Licenses         []string        `json:"licenses"`
	Maintainers      []string        `json:"maintainers"`
	ShortDescription string          `json:"short_description"`
	LongDescription  string          `json:"long_description"`
	Homepages        []string        `json:"homepages"`
	Outputs          []string        `json:"outputs"`
	DrvPath          string          `json:"drv_path"`
	Position         *Position       `json:"position"`
	DependencyRefs   []DependencyRef `json:"dependency_refs"`
}

// NameVersion returns "name-version", or just the name when the version is
// unknown. This matches how nix spells derivation names.
func (p *Package) NameVersion() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "-" + p.Version
}

// Fingerprint returns a hex SHA-256 digest of the package content, excluding
// the identifier. Two packages with equal fingerprints are indistinguishable.
func (p *Package) Fingerprint() string {
	c := *p
	c.Identifier = ""
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compare orders packages by name, version and source position, breaking the
// remaining ties by attribute path, derivation path and finally fingerprint.
// It returns a negative number when a sorts before b.
func Compare(a, b *Package) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := comparePosition(a.Position, b.Position); c != 0 {
		return c
	}
	if c := cmp.Compare(a.AttrPath, b.AttrPath); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DrvPath, b.DrvPath); c != 0 {
		return c
	}
	return cmp.Compare(a.Fingerprint(), b.Fingerprint())
}

// comparePosition sorts packages without a position first.
func comparePosition(a, b *Position) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c := cmp.Compare(a.File, b.File); c != 0 {
		return c
	}
	return cmp.Compare(a.Line, b.Line)
}
