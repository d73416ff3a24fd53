package depgraph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTransitiveAffectedSets(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddDependency("a", "b")
	g.AddDependency("b", "c")

	affected := g.AffectedByChange("c")
	if _, ok := affected["b"]; !ok {
		t.Fatalf("expected b in affected set, got %v", affected)
	}
	if _, ok := affected["a"]; !ok {
		t.Fatalf("expected a in affected set, got %v", affected)
	}
	if len(affected) != 2 {
		t.Fatalf("expected exactly {a b}, got %v", affected)
	}

	g.RemoveDependency("b", "c")
	if affected := g.AffectedByChange("c"); len(affected) != 0 {
		t.Fatalf("after removing (b,c) nothing should depend on c, got %v", affected)
	}
}

func TestAddDependencyIdempotent(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddDependency("a", "b")
	g.AddDependency("a", "b")
	g.AddDependency("a", "a") // self edges are ignored

	if got := g.DirectDependents("b"); !cmp.Equal(got, []string{"a"}) {
		t.Fatalf("DirectDependents(b) = %v", got)
	}
	if got := g.DirectDependencies("a"); !cmp.Equal(got, []string{"b"}) {
		t.Fatalf("DirectDependencies(a) = %v", got)
	}
}

func TestClearDependenciesFor(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddDependency("total", "price")
	g.AddDependency("total", "qty")
	g.AddDependency("summary", "total")

	g.ClearDependenciesFor("total")

	if got := g.DirectDependencies("total"); got != nil {
		t.Fatalf("total should declare no dependencies, got %v", got)
	}
	// Inbound edges survive a per-element reload.
	if got := g.DirectDependents("total"); !cmp.Equal(got, []string{"summary"}) {
		t.Fatalf("DirectDependents(total) = %v", got)
	}
	if got := g.DirectDependents("price"); got != nil {
		t.Fatalf("price should have no dependents, got %v", got)
	}
}

func TestAffectedByChangeTerminatesOnCycle(t *testing.T) {
	t.Parallel()

	// Cycles are rejected by Validate, but a graph mutated into one after
	// validation must still terminate.
	g := New()
	g.AddDependency("a", "b")
	g.AddDependency("b", "a")

	affected := g.AffectedByChange("a")
	if _, ok := affected["b"]; !ok {
		t.Fatalf("expected b affected, got %v", affected)
	}
	if _, ok := affected["a"]; ok {
		t.Fatalf("changed element should not be in its own affected set")
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddDependency("a", "b")
	g.AddDependency("b", "c")
	g.AddDependency("c", "a")

	err := g.Validate()
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Path) < 4 {
		t.Fatalf("cycle path should close on itself, got %v", cycleErr.Path)
	}
	if cycleErr.Path[0] != cycleErr.Path[len(cycleErr.Path)-1] {
		t.Fatalf("cycle path should start and end on the same element, got %v", cycleErr.Path)
	}
}

func TestValidateAcceptsDiamond(t *testing.T) {
	t.Parallel()

	// Shared dependencies are not cycles.
	g := New()
	g.AddDependency("d", "b")
	g.AddDependency("d", "c")
	g.AddDependency("b", "a")
	g.AddDependency("c", "a")

	if err := g.Validate(); err != nil {
		t.Fatalf("diamond graph should validate, got %v", err)
	}

	affected := g.AffectedByChange("a")
	if len(affected) != 3 {
		t.Fatalf("expected {b c d}, got %v", affected)
	}
}

func TestTopologicalOrder(t *testing.T) {
	t.Parallel()

	// c -> b -> a, d independent.
	g := New()
	g.AddDependency("b", "a")
	g.AddDependency("c", "b")

	got := g.TopologicalOrder([]string{"c", "d", "b", "a"})
	want := []string{"a", "b", "c", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	// Restricting the set ignores edges to outside elements.
	got = g.TopologicalOrder([]string{"c", "b"})
	want = []string{"b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("subset order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologicalOrderDiamond(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddDependency("d", "b")
	g.AddDependency("d", "c")
	g.AddDependency("b", "a")
	g.AddDependency("c", "a")

	got := g.TopologicalOrder([]string{"d", "c", "b", "a"})
	want := []string{"a", "b", "c", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologicalOrderTerminatesOnCycle(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddDependency("a", "b")
	g.AddDependency("b", "a")

	got := g.TopologicalOrder([]string{"b", "a"})
	if len(got) != 2 {
		t.Fatalf("cyclic members must still all be emitted, got %v", got)
	}
}
