// Package ident allocates stable, filesystem-safe, collision-free identifiers
// for packages.
//
// An identifier has the form
//
//	<hash>-<name-version>
//
// where hash is the first [HashLength] hex characters of a SHA-256 digest of
// the package's name, version and source position, and name-version is
// sanitized: lowercased, every character outside [a-z0-9._+-] replaced by
// '-', and truncated so the whole identifier fits in [MaxLength] bytes.
//
// Packages whose candidates collide are ordered with [nixpkgs.Compare]; the
// first keeps the candidate and the others receive "-2", "-3", ... suffixes,
// skipping any value already taken by another candidate. Because both the
// candidates and the tie order depend only on package content, allocating
// the same set of packages always produces the same identifiers, whatever
// the input order.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

const (
	// HashLength is the number of hex characters of the content hash.
	HashLength = 8

	// MaxLength bounds the identifier before any disambiguation suffix.
	MaxLength = 80
)

// Collision records one disambiguated identifier.
type Collision struct {
	Candidate  string // identifier both packages derived
	Identifier string // identifier assigned instead
	Name       string
	Version    string
}

// Candidate derives the undisambiguated identifier for p.
func Candidate(p *nixpkgs.Package) string {
	h := sha256.New()
	h.Write([]byte(p.Name))
	h.Write([]byte{0})
	h.Write([]byte(p.Version))
	h.Write([]byte{0})
	h.Write([]byte(p.Position.String()))
	prefix := hex.EncodeToString(h.Sum(nil))[:HashLength]

	suffix := Sanitize(p.NameVersion(), MaxLength-HashLength-1)
	if suffix == "" {
		return prefix
	}
	return prefix + "-" + suffix
}

// Sanitize lowercases s, replaces characters that are unsafe in file names
// or note links with '-', and truncates the result to at most n bytes.
func Sanitize(s string, n int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			// ".." never appears in an identifier.
			if strings.HasSuffix(b.String(), ".") {
				b.WriteByte('-')
			} else {
				b.WriteByte('.')
			}
		case r == '_', r == '+', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := b.String()
	if len(out) > n {
		out = out[:n]
	}
	// A leading dot would hide the note; trailing dots are dropped on Windows.
	return strings.Trim(out, ".")
}

// Allocate assigns an identifier to every package. The result is parallel to
// pkgs. Collisions lists every package that did not receive its candidate,
// in allocation order.
func Allocate(pkgs []nixpkgs.Package) ([]string, []Collision) {
	groups := make(map[string][]int, len(pkgs))
	for i := range pkgs {
		c := Candidate(&pkgs[i])
		groups[c] = append(groups[c], i)
	}

	ids := make([]string, len(pkgs))
	taken := make(map[string]bool, len(pkgs))
	for c := range groups {
		taken[c] = true
	}

	var collisions []Collision
	for _, c := range slices.Sorted(maps.Keys(groups)) {
		members := groups[c]
		slices.SortStableFunc(members, func(a, b int) int {
			return nixpkgs.Compare(&pkgs[a], &pkgs[b])
		})

		ids[members[0]] = c
		next := 2
		for _, i := range members[1:] {
			id := c + "-" + strconv.Itoa(next)
			for taken[id] {
				next++
				id = c + "-" + strconv.Itoa(next)
			}
			next++
			taken[id] = true
			ids[i] = id
			collisions = append(collisions, Collision{
				Candidate:  c,
				Identifier: id,
				Name:       pkgs[i].Name,
				Version:    pkgs[i].Version,
			})
		}
	}
	return ids, collisions
}
