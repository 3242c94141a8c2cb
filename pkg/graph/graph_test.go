package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

func pkg(name, version string, deps ...string) nixpkgs.Package {
	refs := make([]nixpkgs.DependencyRef, len(deps))
	for i, d := range deps {
		refs[i] = nixpkgs.DependencyRef{Key: d, Kind: nixpkgs.KindGeneric}
	}
	return nixpkgs.Package{Name: name, Version: version, DependencyRefs: refs}
}

func TestBuildResolvesAndKeepsExternal(t *testing.T) {
	pkgs := []nixpkgs.Package{
		pkg("a", "1", "b", "missing"),
		pkg("b", "1"),
	}
	g, err := Build(pkgs, []string{"id-a", "id-b"})
	require.NoError(t, err)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 1, g.ExternalCount())
	assert.Equal(t, []Edge{
		{From: "id-a", To: "id-b", Key: "b", Kind: nixpkgs.KindGeneric},
		{From: "id-a", To: "", Key: "missing", Kind: nixpkgs.KindGeneric},
	}, g.Dependencies("id-a"))
	assert.Empty(t, g.Dependencies("id-b"))
	assert.Equal(t, []string{"id-a"}, g.DependentIDs("id-b"))
	assert.NoError(t, g.Validate())
	assert.False(t, g.HasCycle())

	p, ok := g.Node("id-a")
	require.True(t, ok)
	assert.Equal(t, "id-a", p.Identifier)
	assert.Empty(t, pkgs[0].Identifier, "input must not be modified")
}

func TestBuildLookupKeys(t *testing.T) {
	target := nixpkgs.Package{Name: "requests", Version: "2.31.0", AttrPath: "python3Packages.requests"}
	pkgs := []nixpkgs.Package{
		target,
		pkg("app", "", "python3Packages.requests", "requests", "requests@2.31.0", "requests-2.31.0", "requests@9"),
	}
	g, err := Build(pkgs, []string{"req", "app"})
	require.NoError(t, err)

	deps := g.Dependencies("app")
	require.Len(t, deps, 5)
	for _, e := range deps[:4] {
		assert.Equal(t, "req", e.To, e.Key)
	}
	assert.True(t, deps[4].IsExternal())
}

func TestBuildAmbiguousKeyFirstInCompareOrderWins(t *testing.T) {
	pkgs := []nixpkgs.Package{
		pkg("app", "", "lib"),
		pkg("lib", "2"),
		pkg("lib", "1"),
	}
	g, err := Build(pkgs, []string{"app", "lib-2", "lib-1"})
	require.NoError(t, err)
	assert.Equal(t, "lib-1", g.Dependencies("app")[0].To)
}

func TestBuildCycle(t *testing.T) {
	g, err := Build([]nixpkgs.Package{pkg("a", "1", "b"), pkg("b", "1", "a")}, []string{"a", "b"})
	require.NoError(t, err)

	assert.True(t, g.HasCycle())
	assert.Equal(t, "b", g.Dependencies("a")[0].To)
	assert.Equal(t, "a", g.Dependencies("b")[0].To)
	assert.Equal(t, []string{"b"}, g.DependentIDs("a"))
}

func TestBuildSelfLoopAndMultiEdge(t *testing.T) {
	p := pkg("a", "1", "a", "b", "b")
	p.DependencyRefs[2].Kind = nixpkgs.KindPropagated
	g, err := Build([]nixpkgs.Package{p, pkg("b", "1")}, []string{"a", "b"})
	require.NoError(t, err)

	assert.True(t, g.HasCycle())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Len(t, g.Dependents("b"), 2)
	assert.Equal(t, []string{"a"}, g.DependentIDs("b"))
	assert.Equal(t, []string{"a"}, g.DependentIDs("a"))
}

func TestBuildErrors(t *testing.T) {
	_, err := Build([]nixpkgs.Package{pkg("a", "")}, nil)
	assert.ErrorIs(t, err, ErrIdentifierCount)

	_, err = Build([]nixpkgs.Package{pkg("a", "")}, []string{""})
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	_, err = Build([]nixpkgs.Package{pkg("a", ""), pkg("b", "")}, []string{"x", "x"})
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
}

func TestFromPackages(t *testing.T) {
	a := pkg("a", "1", "b")
	a.Identifier = "id-a"
	b := pkg("b", "1")
	b.Identifier = "id-b"

	g, err := FromPackages([]nixpkgs.Package{b, a})
	require.NoError(t, err)
	assert.Equal(t, []string{"id-a", "id-b"}, g.IDs())
	assert.Equal(t, "id-b", g.Dependencies("id-a")[0].To)
}

func TestZeroGraph(t *testing.T) {
	var g Graph
	assert.Zero(t, g.NodeCount())
	assert.False(t, g.HasCycle())
	assert.Empty(t, g.Dependencies("x"))
	_, ok := g.Node("x")
	assert.False(t, ok)
}

func TestConcurrentReads(t *testing.T) {
	var pkgs []nixpkgs.Package
	var ids []string
	for i := range 200 {
		name := string(rune('a'+i%26)) + string(rune('a'+i/26))
		pkgs = append(pkgs, pkg(name, "", "aa", "ba", "zz"))
		ids = append(ids, name)
	}
	g, err := Build(pkgs, ids)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range g.IDs() {
				for _, e := range g.Dependencies(id) {
					if !e.IsExternal() {
						_, _ = g.Node(e.To)
					}
				}
				_ = g.DependentIDs(id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, len(g.DependentIDs("aa")))
}
