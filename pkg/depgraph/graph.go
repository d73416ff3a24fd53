// Package depgraph tracks "depends-on" relations between form elements and
// answers which elements are affected, directly or transitively, when one
// element's value changes.
package depgraph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CycleError reports a dependency cycle found during validation. Path lists
// the elements along the cycle, ending where it started.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("depgraph: dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// Graph is a directed graph over element identifiers. An edge
// (dependent, dependedOn) records that dependent's derived state is a function
// of dependedOn's value. Bidirectional adjacency maps keep both directions of
// lookup O(1) amortized. Mutation happens only through configuration load and
// explicit registration; reads during evaluation take the same lock so a
// concurrent update never observes a half-updated graph.
type Graph struct {
	mu sync.RWMutex

	// dependents[y] holds every x with an edge (x, y): change y, recompute x.
	dependents map[string]map[string]struct{}
	// dependencies[x] holds every y that x declared an edge to.
	dependencies map[string]map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		dependents:   map[string]map[string]struct{}{},
		dependencies: map[string]map[string]struct{}{},
	}
}

// AddDependency records that dependent must be recomputed whenever dependedOn
// changes. Adding the same edge twice is a no-op, as is a self edge.
func (g *Graph) AddDependency(dependent, dependedOn string) {
	if dependent == "" || dependedOn == "" || dependent == dependedOn {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dependents[dependedOn] == nil {
		g.dependents[dependedOn] = map[string]struct{}{}
	}
	g.dependents[dependedOn][dependent] = struct{}{}

	if g.dependencies[dependent] == nil {
		g.dependencies[dependent] = map[string]struct{}{}
	}
	g.dependencies[dependent][dependedOn] = struct{}{}
}

// RemoveDependency deletes a single edge; unknown edges are ignored.
func (g *Graph) RemoveDependency(dependent, dependedOn string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if set := g.dependents[dependedOn]; set != nil {
		delete(set, dependent)
		if len(set) == 0 {
			delete(g.dependents, dependedOn)
		}
	}
	if set := g.dependencies[dependent]; set != nil {
		delete(set, dependedOn)
		if len(set) == 0 {
			delete(g.dependencies, dependent)
		}
	}
}

// ClearDependenciesFor removes every edge the element declared, supporting
// per-element configuration reload. Edges where other elements depend on this
// one are left in place.
func (g *Graph) ClearDependenciesFor(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for dependedOn := range g.dependencies[id] {
		if set := g.dependents[dependedOn]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(g.dependents, dependedOn)
			}
		}
	}
	delete(g.dependencies, id)
}

// DirectDependents returns the elements that declared a dependency on id,
// sorted for deterministic consumption.
func (g *Graph) DirectDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependents[id])
}

// DirectDependencies returns the elements id declared a dependency on, sorted.
func (g *Graph) DirectDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependencies[id])
}

// AffectedByChange returns the full transitive closure of elements whose
// derived state must be recomputed when id changes. Breadth-first traversal
// over the dependents map visits each element at most once, so even a graph
// that was mutated into a cycle after validation cannot cause
// non-termination. The changed element itself is not included.
func (g *Graph) AffectedByChange(id string) map[string]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	affected := map[string]struct{}{}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dependent := range g.dependents[current] {
			if _, seen := affected[dependent]; seen {
				continue
			}
			affected[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}
	delete(affected, id)
	return affected
}

// TopologicalOrder orders the given ids so that every id appears after the
// ids it depends on, considering only edges between members of the set. Ties
// resolve in sorted order so the result is deterministic. Ids caught in a
// cycle — possible only if the graph was mutated after Validate — are
// appended in sorted order rather than dropped.
func (g *Graph) TopologicalOrder(ids []string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}

	indegree := make(map[string]int, len(members))
	for id := range members {
		for dep := range g.dependencies[id] {
			if _, in := members[dep]; in {
				indegree[id]++
			}
		}
	}

	out := make([]string, 0, len(members))
	remaining := sortedKeys(members)
	for len(remaining) > 0 {
		picked := -1
		for i, id := range remaining {
			if indegree[id] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			// Cycle among the remaining ids; emit them as-is.
			out = append(out, remaining...)
			break
		}
		id := remaining[picked]
		remaining = append(remaining[:picked], remaining[picked+1:]...)
		out = append(out, id)
		for dependent := range g.dependents[id] {
			if _, in := members[dependent]; in {
				indegree[dependent]--
			}
		}
	}
	return out
}

// Validate checks the graph for cycles using depth-first traversal with
// three-state coloring. Nodes and neighbors are visited in sorted order so
// the reported cycle path is deterministic. Returns a *CycleError on the
// first cycle found, nil otherwise.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := map[string]struct{}{}
	for id := range g.dependencies {
		nodes[id] = struct{}{}
	}
	for id := range g.dependents {
		nodes[id] = struct{}{}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var path []string

	var visit func(node string) error
	visit = func(node string) error {
		color[node] = gray
		path = append(path, node)

		for _, next := range sortedKeys(g.dependencies[node]) {
			switch color[next] {
			case gray:
				start := 0
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), next)
				return &CycleError{Path: cycle}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		color[node] = black
		return nil
	}

	for _, node := range sortedKeys(nodes) {
		if color[node] == white {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
