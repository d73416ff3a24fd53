package bridge

import (
	"errors"
	"testing"
)

func TestRegisterAndExecute(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	err := reg.Register("sum", func(args []any) (any, error) {
		total := 0.0
		for _, arg := range args {
			n, _ := arg.(float64)
			total += n
		}
		return total, nil
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	value, err := reg.Execute("sum", []any{float64(1), float64(2), float64(3)})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if value != float64(6) {
		t.Fatalf("unexpected result %v", value)
	}
}

func TestExecuteUnregistered(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Execute("missing", nil)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register("", func([]any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("blank name must be rejected")
	}
	if err := reg.Register("  ", func([]any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("whitespace name must be rejected")
	}
	if err := reg.Register("fn", nil); err == nil {
		t.Fatalf("nil function must be rejected")
	}
}

func TestUnregister(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register("temp", func([]any) (any, error) { return true, nil }); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if !reg.Has("temp") {
		t.Fatalf("expected temp to be registered")
	}

	reg.Unregister("temp")
	if reg.Has("temp") {
		t.Fatalf("temp should be gone after Unregister")
	}
	if _, err := reg.Execute("temp", nil); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered after Unregister, got %v", err)
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(name, func([]any) (any, error) { return nil, nil }); err != nil {
			t.Fatalf("Register(%q) returned error: %v", name, err)
		}
	}

	names := reg.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestNilRegistryExecute(t *testing.T) {
	t.Parallel()

	var reg *Registry
	if _, err := reg.Execute("anything", nil); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("nil registry must report ErrNotRegistered, got %v", err)
	}
	if reg.Has("anything") {
		t.Fatalf("nil registry has nothing")
	}
}
