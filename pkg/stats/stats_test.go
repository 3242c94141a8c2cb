package stats

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

func buildGraph(t *testing.T, pkgs []nixpkgs.Package) *graph.Graph {
	t.Helper()
	ids := make([]string, len(pkgs))
	for i := range pkgs {
		ids[i] = fmt.Sprintf("id-%04d", i)
	}
	g, err := graph.Build(pkgs, ids)
	require.NoError(t, err)
	return g
}

func samplePackages(n int) []nixpkgs.Package {
	r := rand.New(rand.NewPCG(7, 11))
	handles := []string{"alice", "bob", "carol", "dave"}
	licenses := []string{"MIT", "GPL-3.0-only", "Apache-2.0"}
	outputs := []string{"out", "dev", "man", "doc"}

	pkgs := make([]nixpkgs.Package, n)
	for i := range pkgs {
		p := nixpkgs.Package{Name: fmt.Sprintf("p%d", i), Maintainers: []string{}, Licenses: []string{}, Outputs: []string{"out"}}
		for _, h := range handles {
			if r.IntN(3) == 0 {
				p.Maintainers = append(p.Maintainers, h)
			}
		}
		if i%5 != 0 {
			p.Licenses = append(p.Licenses, licenses[r.IntN(len(licenses))])
		}
		if r.IntN(2) == 0 {
			p.Outputs = append(p.Outputs, outputs[1+r.IntN(3)])
		}
		pkgs[i] = p
	}
	return pkgs
}

func TestComputeIndependentOfWorkerCount(t *testing.T) {
	g := buildGraph(t, samplePackages(500))

	want, err := Compute(context.Background(), g, 1)
	require.NoError(t, err)

	for _, workers := range []int{0, 2, 3, 7, 64, 1000} {
		got, err := Compute(context.Background(), g, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestMaintainerPairs(t *testing.T) {
	pkgs := samplePackages(300)
	pairs := 0
	for _, p := range pkgs {
		pairs += len(p.Maintainers)
	}

	s, err := Compute(context.Background(), buildGraph(t, pkgs), 4)
	require.NoError(t, err)
	assert.Equal(t, pairs, s.MaintainerPairs())
	assert.Equal(t, 300, s.TotalPackages)
	assert.Equal(t, 60, s.Unlicensed)
}

func TestTallyRepeatedTokenCountsOnce(t *testing.T) {
	var tl Tally
	tl.Add(&nixpkgs.Package{Identifier: "b", Maintainers: []string{"x", "x"}, Outputs: []string{"out"}})
	tl.Add(&nixpkgs.Package{Identifier: "a", Maintainers: []string{"x"}, Outputs: []string{"out"}})

	s := tl.Statistics()
	require.Len(t, s.Maintainers, 1)
	assert.Equal(t, Count{Token: "x", Packages: 2, FirstSeen: "a"}, s.Maintainers[0])
	assert.Equal(t, 2, s.Unlicensed)
}

func TestMergeCommutative(t *testing.T) {
	pkgs := samplePackages(40)
	for i := range pkgs {
		pkgs[i].Identifier = fmt.Sprintf("id-%02d", i)
	}

	var a, b Tally
	for i := range pkgs {
		if i%2 == 0 {
			a.Add(&pkgs[i])
		} else {
			b.Add(&pkgs[i])
		}
	}

	var ab, ba Tally
	ab.Merge(&a)
	ab.Merge(&b)
	ba.Merge(&b)
	ba.Merge(&a)
	assert.Equal(t, ab.Statistics(), ba.Statistics())
}

func TestTwoPackagesNoMaintainers(t *testing.T) {
	g := buildGraph(t, []nixpkgs.Package{
		{Name: "a", Version: "1", Outputs: []string{"out"}, DependencyRefs: []nixpkgs.DependencyRef{{Key: "b"}}},
		{Name: "b", Version: "1", Outputs: []string{"out"}},
	})
	s, err := Compute(context.Background(), g, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalPackages)
	assert.Equal(t, 0, s.TotalMaintainers)
	assert.Empty(t, s.Maintainers)
	assert.Equal(t, []Count{{Token: "out", Packages: 2, FirstSeen: "id-0000"}}, s.Outputs)
}

func TestComputeEmpty(t *testing.T) {
	s, err := Compute(context.Background(), buildGraph(t, nil), 4)
	require.NoError(t, err)
	assert.Zero(t, s.TotalPackages)
	assert.NotNil(t, s.Licenses)
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, buildGraph(t, samplePackages(10)), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTop(t *testing.T) {
	counts := []Count{
		{Token: "a", Packages: 1, FirstSeen: "id-1"},
		{Token: "b", Packages: 5, FirstSeen: "id-9"},
		{Token: "c", Packages: 5, FirstSeen: "id-2"},
		{Token: "d", Packages: 3, FirstSeen: "id-3"},
	}
	got := Top(counts, 3)
	assert.Equal(t, []string{"c", "b", "d"}, []string{got[0].Token, got[1].Token, got[2].Token})
	assert.Len(t, Top(counts, 0), 4)
	assert.Equal(t, "a", counts[0].Token, "input is not reordered")
}
