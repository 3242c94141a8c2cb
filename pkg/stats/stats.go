// Package stats aggregates package counts per maintainer, license and output.
//
// Aggregation is a reduction over mergeable [Tally] values: each worker
// tallies its own share of the packages and the partial tallies are merged
// afterwards. Merge is commutative and associative, so [Compute] returns the
// same [Statistics] for any worker count or scheduling.
package stats

import (
	"cmp"
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/graph"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

// Count is the number of packages carrying one token.
type Count struct {
	Token     string `json:"token"`
	Packages  int    `json:"packages"`
	FirstSeen string `json:"first_seen"` // smallest identifier carrying the token
}

// Statistics is the immutable result of an aggregation. Count slices are
// sorted by token.
type Statistics struct {
	TotalPackages    int     `json:"total_packages"`
	TotalMaintainers int     `json:"total_maintainers"`
	TotalLicenses    int     `json:"total_licenses"`
	TotalOutputs     int     `json:"total_outputs"`
	Unmaintained     int     `json:"unmaintained"`
	Unlicensed       int     `json:"unlicensed"`
	Maintainers      []Count `json:"maintainers"`
	Licenses         []Count `json:"licenses"`
	Outputs          []Count `json:"outputs"`
}

// MaintainerPairs returns the number of (package, maintainer) pairs, which
// is the sum of all per-maintainer counts.
func (s *Statistics) MaintainerPairs() int {
	n := 0
	for _, c := range s.Maintainers {
		n += c.Packages
	}
	return n
}

// Top returns up to n counts ordered by package count, highest first. Ties
// go to the token seen first, by identifier, then to the token itself. n <= 0
// returns all counts.
func Top(counts []Count, n int) []Count {
	out := slices.Clone(counts)
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Packages, a.Packages); c != 0 {
			return c
		}
		if c := cmp.Compare(a.FirstSeen, b.FirstSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type entry struct {
	packages int
	first    string
}

// Tally is a partial aggregation. The zero value is ready to use. A Tally is
// not safe for concurrent use; give each goroutine its own and Merge them.
type Tally struct {
	packages     int
	unmaintained int
	unlicensed   int
	maintainers  map[string]entry
	licenses     map[string]entry
	outputs      map[string]entry
}

// Add counts one package. Repeated tokens within a package count once.
func (t *Tally) Add(p *nixpkgs.Package) {
	t.packages++
	if len(p.Maintainers) == 0 {
		t.unmaintained++
	}
	if len(p.Licenses) == 0 {
		t.unlicensed++
	}
	t.maintainers = addTokens(t.maintainers, p.Maintainers, p.Identifier)
	t.licenses = addTokens(t.licenses, p.Licenses, p.Identifier)
	t.outputs = addTokens(t.outputs, p.Outputs, p.Identifier)
}

func addTokens(m map[string]entry, tokens []string, id string) map[string]entry {
	if m == nil {
		m = make(map[string]entry)
	}
	for i, tok := range tokens {
		if slices.Contains(tokens[:i], tok) {
			continue
		}
		e, ok := m[tok]
		if !ok || id < e.first {
			e.first = id
		}
		e.packages++
		m[tok] = e
	}
	return m
}

// Merge adds the counts of o into t.
func (t *Tally) Merge(o *Tally) {
	t.packages += o.packages
	t.unmaintained += o.unmaintained
	t.unlicensed += o.unlicensed
	t.maintainers = mergeEntries(t.maintainers, o.maintainers)
	t.licenses = mergeEntries(t.licenses, o.licenses)
	t.outputs = mergeEntries(t.outputs, o.outputs)
}

func mergeEntries(dst, src map[string]entry) map[string]entry {
	if dst == nil {
		dst = make(map[string]entry, len(src))
	}
	for tok, s := range src {
		d, ok := dst[tok]
		if !ok || s.first < d.first {
			d.first = s.first
		}
		d.packages += s.packages
		dst[tok] = d
	}
	return dst
}

// Statistics freezes the tally.
func (t *Tally) Statistics() *Statistics {
	s := &Statistics{
		TotalPackages: t.packages,
		Unmaintained:  t.unmaintained,
		Unlicensed:    t.unlicensed,
		Maintainers:   counts(t.maintainers),
		Licenses:      counts(t.licenses),
		Outputs:       counts(t.outputs),
	}
	s.TotalMaintainers = len(s.Maintainers)
	s.TotalLicenses = len(s.Licenses)
	s.TotalOutputs = len(s.Outputs)
	return s
}

func counts(m map[string]entry) []Count {
	out := make([]Count, 0, len(m))
	for tok, e := range m {
		out = append(out, Count{Token: tok, Packages: e.packages, FirstSeen: e.first})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(a.Token, b.Token); c != 0 {
			return c
		}
		return cmp.Compare(a.FirstSeen, b.FirstSeen)
	})
	return out
}

// Compute aggregates every package of g across at most workers goroutines
// (0 means one per available CPU).
func Compute(ctx context.Context, g *graph.Graph, workers int) (*Statistics, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pkgs := g.Packages()
	chunk := max(1, (len(pkgs)+workers-1)/workers)

	partials := make([]Tally, (len(pkgs)+chunk-1)/chunk)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for w := range partials {
		start, end := w*chunk, min((w+1)*chunk, len(pkgs))
		eg.Go(func() error {
			for _, p := range pkgs[start:end] {
				if err := egCtx.Err(); err != nil {
					return err
				}
				partials[w].Add(p)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var total Tally
	for i := range partials {
		total.Merge(&partials[i])
	}
	return total.Statistics(), nil
}
