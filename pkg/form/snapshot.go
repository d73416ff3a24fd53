package form

import (
	"sort"
	"strconv"
	"strings"
)

// Snapshot is one immutable version of the full form state. Absent keys carry
// defaults: visible and enabled are true, everything else is zero. Each
// logical change produces a new snapshot through Edit; snapshots are never
// mutated in place, so any number of concurrent readers can hold one safely.
type Snapshot struct {
	version      int64
	values       map[string]any
	dirty        map[string]bool
	touched      map[string]bool
	validated    map[string]bool
	lastModified map[string]int64
	errors       map[string][]ValidationError
	visible      map[string]bool
	enabled      map[string]bool
	choices      map[string][]Choice
}

// NewSnapshot returns the empty initial snapshot at version zero.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		values:       map[string]any{},
		dirty:        map[string]bool{},
		touched:      map[string]bool{},
		validated:    map[string]bool{},
		lastModified: map[string]int64{},
		errors:       map[string][]ValidationError{},
		visible:      map[string]bool{},
		enabled:      map[string]bool{},
		choices:      map[string][]Choice{},
	}
}

// Version is the monotonically increasing snapshot version. Readers compare
// versions to detect that a newer snapshot has been published.
func (s *Snapshot) Version() int64 { return s.version }

// Value returns the element's current value and whether one has been set.
func (s *Snapshot) Value(id string) (any, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Dirty reports whether the element's value changed since initialization.
func (s *Snapshot) Dirty(id string) bool { return s.dirty[id] }

// Touched reports whether the element ever received a value change.
func (s *Snapshot) Touched(id string) bool { return s.touched[id] }

// LastModified is the element's per-form monotonic modification stamp, zero
// when the element was never modified.
func (s *Snapshot) LastModified(id string) int64 { return s.lastModified[id] }

// Errors returns the element's current validation errors in order.
func (s *Snapshot) Errors(id string) []ValidationError {
	errs := s.errors[id]
	if len(errs) == 0 {
		return nil
	}
	out := make([]ValidationError, len(errs))
	copy(out, errs)
	return out
}

// Visible reports element visibility; elements default to visible.
func (s *Snapshot) Visible(id string) bool {
	v, ok := s.visible[id]
	if !ok {
		return true
	}
	return v
}

// Enabled reports element enablement; elements default to enabled.
func (s *Snapshot) Enabled(id string) bool {
	v, ok := s.enabled[id]
	if !ok {
		return true
	}
	return v
}

// Choices returns the element's current option list in order.
func (s *Snapshot) Choices(id string) []Choice {
	list := s.choices[id]
	if len(list) == 0 {
		return nil
	}
	out := make([]Choice, len(list))
	copy(out, list)
	return out
}

// StateOf reports the element's life-cycle state.
func (s *Snapshot) StateOf(id string) ElementState {
	if len(s.errors[id]) > 0 {
		return StateInvalid
	}
	if s.validated[id] {
		return StateValid
	}
	if s.touched[id] {
		return StateTouched
	}
	return StateUnset
}

// HasBlockingErrors reports whether any element carries an error or critical
// severity validation error — the acceptance gate for wizard navigation.
func (s *Snapshot) HasBlockingErrors() bool {
	for _, errs := range s.errors {
		for _, err := range errs {
			if err.Severity.Blocking() {
				return true
			}
		}
	}
	return false
}

// ElementIDs returns every element id referenced by the snapshot, sorted.
func (s *Snapshot) ElementIDs() []string {
	seen := map[string]struct{}{}
	for id := range s.values {
		seen[id] = struct{}{}
	}
	for id := range s.errors {
		seen[id] = struct{}{}
	}
	for id := range s.visible {
		seen[id] = struct{}{}
	}
	for id := range s.enabled {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a dotted path against the snapshot values, traversing
// nested maps and numeric sequence indices. A path whose first segment names
// an element starts from that element's value; exact dotted keys win over
// traversal so flattened keys such as "address.city" keep working.
func (s *Snapshot) Lookup(path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	if v, ok := s.values[path]; ok {
		return v, true
	}

	parts := strings.Split(path, ".")
	current, ok := s.values[parts[0]]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		case []string:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Draft is a mutable copy of a snapshot used to stage one logical change.
// Publishing through Snapshot bumps the version; the source snapshot is left
// untouched.
type Draft struct {
	next *Snapshot
}

// Edit returns a draft seeded from the snapshot.
func (s *Snapshot) Edit() *Draft {
	next := &Snapshot{
		version:      s.version,
		values:       copyMap(s.values),
		dirty:        copyMap(s.dirty),
		touched:      copyMap(s.touched),
		validated:    copyMap(s.validated),
		lastModified: copyMap(s.lastModified),
		errors:       copyErrors(s.errors),
		visible:      copyMap(s.visible),
		enabled:      copyMap(s.enabled),
		choices:      copyChoices(s.choices),
	}
	return &Draft{next: next}
}

// SetValue stages a value without touching dirty/touched flags; used for
// pre-filled data and binding-derived values.
func (d *Draft) SetValue(id string, value any) {
	d.next.values[id] = value
}

// ApplyChange stages a user-driven value change: value, dirty, touched, and
// the modification stamp together. Any change re-enters the Touched state, so
// the validated flag is cleared until the next validation pass.
func (d *Draft) ApplyChange(id string, value any, stamp int64) {
	d.next.values[id] = value
	d.next.dirty[id] = true
	d.next.touched[id] = true
	d.next.lastModified[id] = stamp
	delete(d.next.validated, id)
}

// SetErrors replaces the element's error list and marks it validated.
func (d *Draft) SetErrors(id string, errs []ValidationError) {
	if len(errs) == 0 {
		delete(d.next.errors, id)
	} else {
		out := make([]ValidationError, len(errs))
		copy(out, errs)
		d.next.errors[id] = out
	}
	d.next.validated[id] = true
}

// ClearErrors drops the element's errors without marking it validated.
func (d *Draft) ClearErrors(id string) {
	delete(d.next.errors, id)
	delete(d.next.validated, id)
}

// SetVisible stages element visibility.
func (d *Draft) SetVisible(id string, visible bool) {
	d.next.visible[id] = visible
}

// SetEnabled stages element enablement.
func (d *Draft) SetEnabled(id string, enabled bool) {
	d.next.enabled[id] = enabled
}

// SetChoices stages the element's option list, sanitizing labels.
func (d *Draft) SetChoices(id string, choices []Choice) {
	if len(choices) == 0 {
		delete(d.next.choices, id)
		return
	}
	d.next.choices[id] = SanitizeChoices(choices)
}

// Snapshot publishes the staged state as a new immutable snapshot with a
// bumped version. The draft must not be used afterwards.
func (d *Draft) Snapshot() *Snapshot {
	out := d.next
	out.version++
	d.next = nil
	return out
}

func copyMap[V any](src map[string]V) map[string]V {
	out := make(map[string]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyErrors(src map[string][]ValidationError) map[string][]ValidationError {
	out := make(map[string][]ValidationError, len(src))
	for k, v := range src {
		list := make([]ValidationError, len(v))
		copy(list, v)
		out[k] = list
	}
	return out
}

func copyChoices(src map[string][]Choice) map[string][]Choice {
	out := make(map[string][]Choice, len(src))
	for k, v := range src {
		list := make([]Choice, len(v))
		copy(list, v)
		out[k] = list
	}
	return out
}
