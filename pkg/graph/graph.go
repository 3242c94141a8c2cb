package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/nixpkgs"
)

var (
	// ErrInvalidNodeID is returned by [Build] when a package has an empty
	// identifier.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Build] when two packages share an
	// identifier.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrIdentifierCount is returned by [Build] when the identifier slice is
	// not parallel to the package slice.
	ErrIdentifierCount = errors.New("identifier count does not match package count")

	// ErrInvalidEdgeEndpoint is returned by [Graph.Validate] when an edge
	// references a node that doesn't exist.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")
)

// Edge is one declared dependency. To is empty for external edges.
type Edge struct {
	From string                 // Identifier of the depending package
	To   string                 // Identifier of the dependency, "" if unresolved
	Key  string                 // Reference as written in the source
	Kind nixpkgs.DependencyKind // Input attribute the reference came from
}

// IsExternal reports whether the reference did not resolve to a package in
// the graph.
func (e Edge) IsExternal() bool { return e.To == "" }

// Graph is an immutable dependency multigraph over packages.
//
// The zero value is an empty graph. Use [Build] or [FromPackages] to create
// a populated one.
type Graph struct {
	nodes    map[string]*nixpkgs.Package
	ids      []string // sorted
	edges    []Edge
	outgoing map[string][]int // nodeID -> indexes into edges, declaration order
	incoming map[string][]int // nodeID -> indexes into edges, resolved only
	external int
}

// Build creates the graph for pkgs, where ids[i] is the identifier allocated
// to pkgs[i]. The packages are copied with their Identifier field set; the
// caller's slice is not modified.
func Build(pkgs []nixpkgs.Package, ids []string) (*Graph, error) {
	if len(pkgs) != len(ids) {
		return nil, fmt.Errorf("%w: %d packages, %d identifiers", ErrIdentifierCount, len(pkgs), len(ids))
	}

	g := &Graph{
		nodes:    make(map[string]*nixpkgs.Package, len(pkgs)),
		ids:      make([]string, 0, len(pkgs)),
		outgoing: make(map[string][]int, len(pkgs)),
		incoming: make(map[string][]int),
	}
	for i := range pkgs {
		id := ids[i]
		if id == "" {
			return nil, fmt.Errorf("%w: package %q", ErrInvalidNodeID, pkgs[i].Name)
		}
		if _, ok := g.nodes[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNodeID, id)
		}
		p := pkgs[i]
		p.Identifier = id
		g.nodes[id] = &p
		g.ids = append(g.ids, id)
	}
	slices.Sort(g.ids)

	lookup := g.lookupTable()
	for _, from := range g.ids {
		for _, ref := range g.nodes[from].DependencyRefs {
			e := Edge{From: from, To: lookup[ref.Key], Key: ref.Key, Kind: ref.Kind}
			idx := len(g.edges)
			g.edges = append(g.edges, e)
			g.outgoing[from] = append(g.outgoing[from], idx)
			if e.IsExternal() {
				g.external++
			} else {
				g.incoming[e.To] = append(g.incoming[e.To], idx)
			}
		}
	}
	return g, nil
}

// FromPackages rebuilds a graph from packages whose identifiers are already
// assigned, such as a loaded packages.json.
func FromPackages(pkgs []nixpkgs.Package) (*Graph, error) {
	ids := make([]string, len(pkgs))
	for i := range pkgs {
		ids[i] = pkgs[i].Identifier
	}
	return Build(pkgs, ids)
}

// LookupKeys returns the keys under which p can be referenced.
func LookupKeys(p *nixpkgs.Package) []string {
	keys := make([]string, 0, 4)
	if p.AttrPath != "" {
		keys = append(keys, p.AttrPath)
	}
	keys = append(keys, p.Name)
	if p.Version != "" {
		keys = append(keys, p.Name+"@"+p.Version, p.Name+"-"+p.Version)
	}
	return keys
}

func (g *Graph) lookupTable() map[string]string {
	ordered := make([]*nixpkgs.Package, 0, len(g.ids))
	for _, id := range g.ids {
		ordered = append(ordered, g.nodes[id])
	}
	slices.SortStableFunc(ordered, nixpkgs.Compare)

	table := make(map[string]string, len(ordered)*3)
	for _, p := range ordered {
		for _, k := range LookupKeys(p) {
			if _, ok := table[k]; !ok {
				table[k] = p.Identifier
			}
		}
	}
	return table
}

// Node returns the package with the given identifier.
func (g *Graph) Node(id string) (*nixpkgs.Package, bool) {
	p, ok := g.nodes[id]
	return p, ok
}

// IDs returns all identifiers in sorted order. The slice must not be
// modified.
func (g *Graph) IDs() []string { return g.ids }

// Packages returns all packages ordered by identifier.
func (g *Graph) Packages() []*nixpkgs.Package {
	out := make([]*nixpkgs.Package, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.nodes[id]
	}
	return out
}

// NodeCount returns the number of packages.
func (g *Graph) NodeCount() int { return len(g.ids) }

// EdgeCount returns the number of edges, external ones included.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// ExternalCount returns the number of edges that did not resolve.
func (g *Graph) ExternalCount() int { return g.external }

// Edges returns a copy of every edge, grouped by source in identifier order
// and in declaration order within a source.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Dependencies returns the edges declared by id, in declaration order.
func (g *Graph) Dependencies(id string) []Edge {
	return g.collect(g.outgoing[id])
}

// Dependents returns the resolved edges that point at id, ordered by source
// identifier.
func (g *Graph) Dependents(id string) []Edge {
	return g.collect(g.incoming[id])
}

// DependentIDs returns the distinct identifiers of packages depending on id.
func (g *Graph) DependentIDs(id string) []string {
	var out []string
	for _, i := range g.incoming[id] {
		from := g.edges[i].From
		if len(out) == 0 || out[len(out)-1] != from {
			out = append(out, from)
		}
	}
	return out
}

func (g *Graph) collect(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// HasCycle reports whether the resolved edges contain a cycle, self-loops
// included. It uses Kahn's algorithm and does not recurse.
func (g *Graph) HasCycle() bool {
	indeg := make(map[string]int, len(g.ids))
	for _, e := range g.edges {
		if !e.IsExternal() {
			indeg[e.To]++
		}
	}
	queue := make([]string, 0, len(g.ids))
	for _, id := range g.ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, i := range g.outgoing[id] {
			e := g.edges[i]
			if e.IsExternal() {
				continue
			}
			indeg[e.To]--
			if indeg[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}
	return visited < len(g.ids)
}

// Validate checks that every edge starts at a known node and either ends at
// a known node or is external.
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return fmt.Errorf("%w: from %s", ErrInvalidEdgeEndpoint, e.From)
		}
		if e.IsExternal() {
			continue
		}
		if _, ok := g.nodes[e.To]; !ok {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidEdgeEndpoint, e.From, e.To)
		}
	}
	return nil
}
