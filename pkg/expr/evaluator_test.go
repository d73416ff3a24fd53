package expr

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/evalcache"
	"github.com/goliatone/go-formengine/pkg/form"
)

func snapshotWith(t *testing.T, values map[string]any) *form.Snapshot {
	t.Helper()
	draft := form.NewSnapshot().Edit()
	for id, value := range values {
		draft.SetValue(id, value)
	}
	return draft.Snapshot()
}

func TestEvaluateComparisons(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)
	snap := snapshotWith(t, map[string]any{
		"age":     float64(21),
		"name":    "Jane",
		"enabled": true,
		"country": map[string]any{"code": "PT"},
	})

	cases := []struct {
		expression string
		want       bool
	}{
		{`age >= 18`, true},
		{`age < 18`, false},
		{`age == 21`, true},
		{`age != 21`, false},
		{`name == "Jane"`, true},
		{`name != "John"`, true},
		{`enabled == true`, true},
		{`enabled && age > 18`, true},
		{`!enabled || age > 100`, false},
		{`(age > 30 || name == "Jane") && enabled`, true},
		{`country.code == "PT"`, true},
		{`missing == null`, true},
		{`name == null`, false},
	}
	for _, tc := range cases {
		got, err := eval.EvaluateBool(tc.expression, form.NamespaceVisibility, "x", snap)
		if err != nil {
			t.Fatalf("EvaluateBool(%q) returned error: %v", tc.expression, err)
		}
		if got != tc.want {
			t.Fatalf("EvaluateBool(%q) = %v, want %v", tc.expression, got, tc.want)
		}
	}
}

func TestEvaluateStringCoercion(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)
	snap := snapshotWith(t, map[string]any{"count": "3", "flag": "true"})

	ok, err := eval.EvaluateBool(`count == 3`, form.NamespaceVisibility, "x", snap)
	if err != nil || !ok {
		t.Fatalf("string-typed number should compare numerically: %v %v", ok, err)
	}
	ok, err = eval.EvaluateBool(`flag == true`, form.NamespaceVisibility, "x", snap)
	if err != nil || !ok {
		t.Fatalf("string-typed bool should compare as bool: %v %v", ok, err)
	}
}

func TestEvaluateSequenceIndex(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)
	snap := snapshotWith(t, map[string]any{
		"contacts": []any{
			map[string]any{"email": "first@example.com"},
			map[string]any{"email": "second@example.com"},
		},
	})

	value, err := eval.Evaluate(`contacts.1.email`, form.NamespaceBinding, "x", snap)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if value != "second@example.com" {
		t.Fatalf("unexpected value %v", value)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)
	snap := snapshotWith(t, map[string]any{
		"name":  "  Jane  ",
		"bio":   "hello world",
		"price": float64(19.6),
	})

	cases := []struct {
		expression string
		want       any
	}{
		{`length(bio)`, float64(11)},
		{`upper("abc")`, "ABC"},
		{`lower("AbC")`, "abc"},
		{`trim(name)`, "Jane"},
		{`substring(bio, 0, 5)`, "hello"},
		{`replace(bio, "world", "there")`, "hello there"},
		{`contains(bio, "world")`, true},
		{`indexOf(bio, "world")`, float64(6)},
		{`min(3, 1, 2)`, float64(1)},
		{`max(3, 1, 2)`, float64(3)},
		{`round(price)`, float64(20)},
		{`dateDiff("2024-01-01", "2024-01-11")`, float64(10)},
		{`formatDate("2024-01-02", "01/02 2006")`, "01/02 2024"},
	}
	for _, tc := range cases {
		value, err := eval.Evaluate(tc.expression, form.NamespaceBinding, "x", snap)
		if err != nil {
			t.Fatalf("Evaluate(%q) returned error: %v", tc.expression, err)
		}
		if value != tc.want {
			t.Fatalf("Evaluate(%q) = %v (%T), want %v", tc.expression, value, value, tc.want)
		}
	}
}

func TestArithmeticIsRejected(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)
	snap := snapshotWith(t, map[string]any{"a": float64(1)})

	if _, err := eval.Evaluate(`abs(0 - 4)`, form.NamespaceBinding, "x", snap); err == nil {
		t.Fatalf("arithmetic operators are not part of the grammar and must not parse")
	}
	if _, err := eval.Evaluate(`a > 1 > 2`, form.NamespaceVisibility, "x", snap); err == nil {
		t.Fatalf("chained comparisons must not parse")
	}
}

func TestNativeFunctionDispatch(t *testing.T) {
	t.Parallel()

	funcs := bridge.NewRegistry()
	if err := funcs.Register("riskScore", func(args []any) (any, error) {
		return float64(len(args)) * 10, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	eval := New(nil, funcs)
	snap := snapshotWith(t, map[string]any{"income": float64(1000)})

	value, err := eval.Evaluate(`riskScore(income, "stable")`, form.NamespaceBinding, "x", snap)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if value != float64(20) {
		t.Fatalf("unexpected result %v", value)
	}
}

func TestUnregisteredFunctionFails(t *testing.T) {
	t.Parallel()

	eval := New(nil, bridge.NewRegistry())
	snap := snapshotWith(t, nil)

	_, err := eval.Evaluate(`mystery(1)`, form.NamespaceBinding, "x", snap)
	if !errors.Is(err, bridge.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	// Boolean namespaces resolve the failure to the safe default.
	ok, err := eval.EvaluateBool(`mystery(1)`, form.NamespaceVisibility, "x", snap)
	if err == nil {
		t.Fatalf("expected error to be reported")
	}
	if ok {
		t.Fatalf("failed evaluation must resolve to false")
	}
}

func TestDenylistRejectsInEveryNamespace(t *testing.T) {
	t.Parallel()

	eval := New(evalcache.New(evalcache.Options{}), nil)
	snap := snapshotWith(t, nil)

	hostile := []string{
		`__proto__.constructor`,
		`eval("1")`,
		`new Object()`,
		`items[0]`,
		`a; b`,
	}
	for _, expression := range hostile {
		for _, ns := range form.Namespaces() {
			_, err := eval.Evaluate(expression, ns, "x", snap)
			var secErr *SecurityError
			if !errors.As(err, &secErr) {
				t.Fatalf("Evaluate(%q, %s) should fail with *SecurityError, got %v", expression, ns, err)
			}
		}
	}
}

func TestResultCachingSkipsEvaluation(t *testing.T) {
	t.Parallel()

	cache := evalcache.New(evalcache.Options{})
	funcs := bridge.NewRegistry()
	calls := 0
	if err := funcs.Register("lookupPlans", func([]any) (any, error) {
		calls++
		return []any{"basic", "pro"}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	eval := New(cache, funcs)
	snap := snapshotWith(t, nil)

	for i := 0; i < 3; i++ {
		if _, err := eval.Evaluate(`lookupPlans()`, form.NamespaceChoices, "plan", snap); err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one native call with warm cache, got %d", calls)
	}

	cache.EvictElement("plan")
	if _, err := eval.Evaluate(`lookupPlans()`, form.NamespaceChoices, "plan", snap); err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("eviction should force recomputation, got %d calls", calls)
	}
}

func TestReferences(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)

	refs, err := eval.References(`(shipping.method == "courier" && country == "PT") || contains(tags, "vip")`)
	if err != nil {
		t.Fatalf("References returned error: %v", err)
	}
	want := []string{"country", "shipping", "tags"}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}

	if _, err := eval.References(`__proto__.constructor`); err == nil {
		t.Fatalf("denylisted expression must not parse")
	}
}

func TestEvaluateChoiceShapes(t *testing.T) {
	t.Parallel()

	funcs := bridge.NewRegistry()
	_ = funcs.Register("asMaps", func([]any) (any, error) {
		return []any{
			map[string]any{"value": "pt", "label": "Portugal", "selected": true},
			map[string]any{"value": "fr", "label": "<b>France</b>"},
		}, nil
	})
	_ = funcs.Register("asStrings", func([]any) (any, error) {
		return []string{"red", "green"}, nil
	})

	eval := New(nil, funcs)
	snap := snapshotWith(t, nil)

	choices, err := eval.EvaluateChoices(`asMaps()`, "color", snap)
	if err != nil {
		t.Fatalf("EvaluateChoices returned error: %v", err)
	}
	want := []form.Choice{
		{Value: "pt", Label: "Portugal", Selected: true},
		{Value: "fr", Label: "France"},
	}
	if diff := cmp.Diff(want, choices); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}

	choices, err = eval.EvaluateChoices(`asStrings()`, "color", snap)
	if err != nil {
		t.Fatalf("EvaluateChoices returned error: %v", err)
	}
	if len(choices) != 2 || choices[0].Label != "red" {
		t.Fatalf("unexpected choices %v", choices)
	}
}

func TestEmptyExpressionDefaults(t *testing.T) {
	t.Parallel()

	eval := New(nil, nil)
	snap := snapshotWith(t, nil)

	ok, err := eval.EvaluateBool("", form.NamespaceVisibility, "x", snap)
	if err != nil || !ok {
		t.Fatalf("empty expression should default to true, got %v %v", ok, err)
	}

	value, err := eval.Evaluate("  ", form.NamespaceBinding, "x", snap)
	if err != nil || value != nil {
		t.Fatalf("blank expression should evaluate to nil, got %v %v", value, err)
	}
}
