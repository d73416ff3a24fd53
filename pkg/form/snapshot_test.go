package form

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSnapshotDefaults(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot()

	if !snap.Visible("anything") {
		t.Fatalf("absent element should default to visible")
	}
	if !snap.Enabled("anything") {
		t.Fatalf("absent element should default to enabled")
	}
	if errs := snap.Errors("anything"); errs != nil {
		t.Fatalf("absent element should have no errors, got %v", errs)
	}
	if snap.Dirty("anything") || snap.Touched("anything") {
		t.Fatalf("absent element should not be dirty or touched")
	}
	if got := snap.StateOf("anything"); got != StateUnset {
		t.Fatalf("expected unset state, got %q", got)
	}
}

func TestSnapshotEditDoesNotMutateSource(t *testing.T) {
	t.Parallel()

	base := NewSnapshot()
	draft := base.Edit()
	draft.ApplyChange("email", "a@b.c", 1)
	draft.SetVisible("email", false)
	next := draft.Snapshot()

	if _, ok := base.Value("email"); ok {
		t.Fatalf("source snapshot was mutated")
	}
	if !base.Visible("email") {
		t.Fatalf("source snapshot visibility was mutated")
	}
	if value, _ := next.Value("email"); value != "a@b.c" {
		t.Fatalf("draft change not applied, got %v", value)
	}
	if next.Version() != base.Version()+1 {
		t.Fatalf("expected version bump, got %d -> %d", base.Version(), next.Version())
	}
}

func TestSnapshotLifecycleStates(t *testing.T) {
	t.Parallel()

	draft := NewSnapshot().Edit()
	draft.ApplyChange("name", "Jane", 1)
	snap := draft.Snapshot()

	if got := snap.StateOf("name"); got != StateTouched {
		t.Fatalf("expected touched after change, got %q", got)
	}

	draft = snap.Edit()
	draft.SetErrors("name", nil)
	snap = draft.Snapshot()
	if got := snap.StateOf("name"); got != StateValid {
		t.Fatalf("expected valid after clean validation, got %q", got)
	}

	draft = snap.Edit()
	draft.SetErrors("name", []ValidationError{NewRuleError("name", RuleRequired, "name is required")})
	snap = draft.Snapshot()
	if got := snap.StateOf("name"); got != StateInvalid {
		t.Fatalf("expected invalid with errors, got %q", got)
	}

	// Any change re-enters touched; there is no terminal state.
	draft = snap.Edit()
	draft.SetErrors("name", nil)
	draft.ApplyChange("name", "J", 2)
	snap = draft.Snapshot()
	if got := snap.StateOf("name"); got != StateTouched {
		t.Fatalf("expected touched after re-edit, got %q", got)
	}
}

func TestSnapshotLookupPaths(t *testing.T) {
	t.Parallel()

	draft := NewSnapshot().Edit()
	draft.SetValue("address", map[string]any{
		"city": "Lisbon",
		"tags": []any{"home", "billing"},
	})
	draft.SetValue("cta.headline", "Hello")
	snap := draft.Snapshot()

	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"address.city", "Lisbon", true},
		{"address.tags.0", "home", true},
		{"address.tags.1", "billing", true},
		{"address.tags.2", nil, false},
		{"cta.headline", "Hello", true},
		{"address.zip", nil, false},
		{"missing", nil, false},
	}
	for _, tc := range cases {
		got, ok := snap.Lookup(tc.path)
		if ok != tc.ok {
			t.Fatalf("Lookup(%q) ok = %v, want %v", tc.path, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("Lookup(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestSnapshotBlockingErrors(t *testing.T) {
	t.Parallel()

	draft := NewSnapshot().Edit()
	draft.SetErrors("note", []ValidationError{
		NewRuleError("note", RuleMaxLength, "too long").WithSeverity(SeverityWarning),
	})
	snap := draft.Snapshot()
	if snap.HasBlockingErrors() {
		t.Fatalf("warnings should not block navigation")
	}

	draft = snap.Edit()
	draft.SetErrors("email", []ValidationError{NewRuleError("email", RuleRequired, "email is required")})
	if !draft.Snapshot().HasBlockingErrors() {
		t.Fatalf("error severity should block navigation")
	}
}

func TestSanitizeChoices(t *testing.T) {
	t.Parallel()

	got := SanitizeChoices([]Choice{
		{Value: "fr", Label: "<b>France</b>"},
		{Value: "pt", Label: `<script>alert("x")</script>Portugal`},
		{Value: "de", Label: "<img src=x onerror=alert(1)>"},
	})
	want := []Choice{
		{Value: "fr", Label: "France"},
		{Value: "pt", Label: "Portugal"},
		{Value: "de", Label: "de"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sanitized choices mismatch (-want +got):\n%s", diff)
	}
}

func TestDefinitionExpressions(t *testing.T) {
	t.Parallel()

	def := ElementDefinition{
		ID:           "total",
		VisibleWhen:  `mode == "advanced"`,
		Value:        "price",
		ChoiceSource: "listUnits()",
		CrossField: []CrossFieldRule{
			{Expression: "total >= subtotal", Related: "subtotal"},
		},
	}

	got := def.Expressions()
	if len(got[NamespaceVisibility]) != 1 || len(got[NamespaceBinding]) != 1 ||
		len(got[NamespaceChoices]) != 1 || len(got[NamespaceValidation]) != 1 {
		t.Fatalf("unexpected expression grouping: %#v", got)
	}
	if len(got[NamespaceEnablement]) != 0 {
		t.Fatalf("no enablement expression was declared")
	}
}
