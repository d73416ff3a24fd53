// Package engine orchestrates the reactive form core: it owns the single
// source of truth (the current snapshot), and on every value change walks the
// dependency graph, invalidates cache entries, and re-runs validation,
// visibility, enablement, and choice resolution for every affected element —
// synchronously, so no stale-state window is ever exposed to readers.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/depgraph"
	"github.com/goliatone/go-formengine/pkg/evalcache"
	"github.com/goliatone/go-formengine/pkg/expr"
	"github.com/goliatone/go-formengine/pkg/form"
	"github.com/goliatone/go-formengine/pkg/validation"
)

// Source tags where a value change originated; it is recorded in logs so
// hosts can separate user edits from programmatic writes.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

// Engine serializes all writes for one form instance through a single
// critical section: read snapshot, compute next, publish is atomic. Published
// snapshots are immutable, so any number of concurrent readers observe
// complete state without blocking the writer.
type Engine struct {
	id      string
	defs    map[string]form.ElementDefinition
	order   []string
	graph   *depgraph.Graph
	cache   *evalcache.Cache
	eval    *expr.Evaluator
	checker *validation.Engine
	funcs   *bridge.Registry
	logger  *slog.Logger
	lenient bool

	mu      sync.Mutex
	seq     int64
	closed  bool
	current atomic.Pointer[form.Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan *form.Snapshot
	nextSub int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistry supplies the native function bridge registry.
func WithRegistry(funcs *bridge.Registry) Option {
	return func(e *Engine) { e.funcs = funcs }
}

// WithCache replaces the default evaluation cache, letting hosts tune TTLs
// or inject a test clock.
func WithCache(cache *evalcache.Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithLenient degrades per-element configuration errors (malformed
// expressions, unknown references) to logged warnings with the element
// treated as always valid and always visible, instead of failing New.
// Dependency cycles still fail construction. Intended for production;
// development builds should stay strict so broken configuration is loud.
func WithLenient() Option {
	return func(e *Engine) { e.lenient = true }
}

// New builds an engine from parsed element definitions. It registers every
// dependency the declared expressions imply, rejects cyclic configurations,
// and publishes the initial snapshot with derived state resolved.
func New(defs []form.ElementDefinition, opts ...Option) (*Engine, error) {
	e := &Engine{
		id:     uuid.NewString(),
		defs:   make(map[string]form.ElementDefinition, len(defs)),
		graph:  depgraph.New(),
		logger: slog.Default(),
		subs:   map[int]chan *form.Snapshot{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = evalcache.New(evalcache.Options{})
	}
	e.eval = expr.New(e.cache, e.funcs, expr.WithLogger(e.logger))
	e.checker = validation.New(e.eval, e.funcs, validation.WithLogger(e.logger))

	for _, def := range defs {
		if def.ID == "" {
			return nil, &ConfigError{Reason: "element id is required"}
		}
		if _, dup := e.defs[def.ID]; dup {
			return nil, &ConfigError{Element: def.ID, Reason: "duplicate element id"}
		}
		e.defs[def.ID] = def
		e.order = append(e.order, def.ID)
	}

	for _, id := range e.order {
		def := e.defs[id]
		if err := e.registerDependencies(def); err != nil {
			return nil, err
		}
	}

	if err := e.graph.Validate(); err != nil {
		return nil, &ConfigError{Reason: err.Error(), Err: err}
	}

	draft := form.NewSnapshot().Edit()
	for _, id := range e.order {
		if def := e.defs[id]; def.Default != nil {
			draft.SetValue(id, def.Default)
		}
	}
	snap := draft.Snapshot()
	snap = e.recomputeDerived(snap, e.order)
	e.current.Store(snap)
	return e, nil
}

// registerDependencies parses every dependency expression the definition
// declares and adds an edge for each referenced element. Unknown references
// and unparsable expressions are configuration errors; in lenient mode the
// offending expression is dropped so the element degrades to always
// valid/visible.
func (e *Engine) registerDependencies(def form.ElementDefinition) error {
	for ns, exprs := range def.Expressions() {
		for _, expression := range exprs {
			refs, err := e.eval.References(expression)
			if err != nil {
				if e.lenient {
					e.logger.Warn("dropping malformed expression",
						"element", def.ID, "namespace", string(ns),
						"expression", expression, "error", err)
					e.dropExpression(def.ID, expression)
					continue
				}
				return &ConfigError{
					Element:    def.ID,
					Expression: expression,
					Reason:     "malformed expression",
					Err:        err,
				}
			}
			// Check every reference before adding any edge: a dropped
			// expression must leave no dependencies behind.
			unknown := ""
			for _, ref := range refs {
				if ref == def.ID {
					continue
				}
				if _, known := e.defs[ref]; !known {
					unknown = ref
					break
				}
			}
			if unknown != "" {
				if e.lenient {
					e.logger.Warn("dropping expression referencing unknown element",
						"element", def.ID, "reference", unknown, "expression", expression)
					e.dropExpression(def.ID, expression)
					continue
				}
				return &ConfigError{
					Element:    def.ID,
					Expression: expression,
					Reason:     fmt.Sprintf("reference to unknown element %q", unknown),
				}
			}
			for _, ref := range refs {
				if ref != def.ID {
					e.graph.AddDependency(def.ID, ref)
				}
			}
		}
	}
	for _, rule := range def.CrossField {
		if rule.Related == "" {
			continue
		}
		if _, known := e.defs[rule.Related]; !known {
			if e.lenient {
				e.logger.Warn("cross-field rule names unknown element",
					"element", def.ID, "related", rule.Related)
				continue
			}
			return &ConfigError{
				Element: def.ID,
				Reason:  fmt.Sprintf("cross-field rule names unknown element %q", rule.Related),
			}
		}
		e.graph.AddDependency(def.ID, rule.Related)
	}
	return nil
}

// dropExpression clears the broken expression from the stored definition.
func (e *Engine) dropExpression(id, expression string) {
	def := e.defs[id]
	if def.VisibleWhen == expression {
		def.VisibleWhen = ""
	}
	if def.EnabledWhen == expression {
		def.EnabledWhen = ""
	}
	if def.RequiredWhen == expression {
		def.RequiredWhen = ""
	}
	if def.Value == expression {
		def.Value = ""
	}
	if def.ChoiceSource == expression {
		def.ChoiceSource = ""
	}
	kept := def.CrossField[:0]
	for _, rule := range def.CrossField {
		if rule.Expression != expression {
			kept = append(kept, rule)
		}
	}
	def.CrossField = kept
	e.defs[id] = def
}

// ID is the unique identifier of this engine instance.
func (e *Engine) ID() string { return e.id }

// Snapshot returns the latest published snapshot.
func (e *Engine) Snapshot() *form.Snapshot { return e.current.Load() }

// Definition returns the configuration for an element.
func (e *Engine) Definition(id string) (form.ElementDefinition, bool) {
	def, ok := e.defs[id]
	return def, ok
}

// ElementIDs returns element ids in definition order.
func (e *Engine) ElementIDs() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// UpdateValue applies a value change: it stamps dirty/touched and the
// monotonic modification counter, evicts cache entries for the changed
// element and everything transitively affected, recomputes their derived
// state, and re-validates them — all before the new snapshot is published, so
// by the time UpdateValue returns every reader sees fully current state.
func (e *Engine) UpdateValue(id string, value any, source Source) (*form.Snapshot, error) {
	if _, known := e.defs[id]; !known {
		return nil, fmt.Errorf("formengine: unknown element %q", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("formengine: engine is closed")
	}

	e.seq++
	draft := e.current.Load().Edit()
	draft.ApplyChange(id, value, e.seq)
	snap := draft.Snapshot()

	affected := e.affectedSorted(id)
	recompute := append([]string{id}, affected...)
	for _, el := range recompute {
		e.cache.EvictElement(el)
	}

	snap = e.recomputeDerived(snap, recompute)
	snap = e.revalidate(snap, recompute)

	e.logger.Debug("value updated",
		"engine", e.id, "element", id, "source", string(source),
		"affected", len(affected), "version", snap.Version())

	e.publish(snap)
	return snap, nil
}

// InitializeWithData seeds values without marking elements dirty or touched,
// keeping pre-filled data distinguishable from user edits. Derived state is
// recomputed for every element; validation errors are cleared.
func (e *Engine) InitializeWithData(values map[string]any) (*form.Snapshot, error) {
	for id := range values {
		if _, known := e.defs[id]; !known {
			return nil, fmt.Errorf("formengine: unknown element %q", id)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("formengine: engine is closed")
	}

	e.cache.Purge()
	draft := form.NewSnapshot().Edit()
	for _, id := range e.order {
		if def := e.defs[id]; def.Default != nil {
			draft.SetValue(id, def.Default)
		}
	}
	for id, value := range values {
		draft.SetValue(id, value)
	}
	snap := e.recomputeDerived(draft.Snapshot(), e.order)
	e.publish(snap)
	return snap, nil
}

// ValidateField validates one element against the current snapshot, replaces
// its errors, publishes, and returns the element's error list.
func (e *Engine) ValidateField(id string) ([]form.ValidationError, error) {
	def, known := e.defs[id]
	if !known {
		return nil, fmt.Errorf("formengine: unknown element %q", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("formengine: engine is closed")
	}

	snap := e.current.Load()
	value, _ := snap.Value(id)
	errs := e.checker.ValidateElement(def, value, snap)

	draft := snap.Edit()
	draft.SetErrors(id, errs)
	e.publish(draft.Snapshot())
	return errs, nil
}

// ValidateAll validates every element against the current snapshot, replaces
// all error lists, publishes, and returns the non-empty ones. With no
// intervening value changes repeated calls return identical results.
func (e *Engine) ValidateAll() (map[string][]form.ValidationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("formengine: engine is closed")
	}

	snap := e.current.Load()
	draft := snap.Edit()
	out := map[string][]form.ValidationError{}
	for _, id := range e.order {
		def := e.defs[id]
		value, _ := snap.Value(id)
		errs := e.checker.ValidateElement(def, value, snap)
		draft.SetErrors(id, errs)
		if len(errs) > 0 {
			out[id] = errs
		}
	}
	e.publish(draft.Snapshot())
	return out, nil
}

// CanNavigateTo is the acceptance gate for wizard-style flows: navigation to
// the target is allowed only when no element currently carries an error or
// critical severity validation error.
func (e *Engine) CanNavigateTo(targetID string) bool {
	if _, known := e.defs[targetID]; !known {
		return false
	}
	return !e.current.Load().HasBlockingErrors()
}

// ResetForm returns the form to its initial snapshot: defaults applied, no
// dirty/touched flags, no errors, derived state recomputed, cache purged.
func (e *Engine) ResetForm() *form.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.current.Load()
	}

	e.cache.Purge()
	draft := form.NewSnapshot().Edit()
	for _, id := range e.order {
		if def := e.defs[id]; def.Default != nil {
			draft.SetValue(id, def.Default)
		}
	}
	snap := e.recomputeDerived(draft.Snapshot(), e.order)
	e.publish(snap)
	return snap
}

// Subscribe registers a snapshot stream for the rendering layer. The channel
// carries every published snapshot with latest-wins semantics: a slow reader
// never blocks the writer, it just skips intermediate versions. The returned
// cancel function releases the subscription.
func (e *Engine) Subscribe() (<-chan *form.Snapshot, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	ch := make(chan *form.Snapshot, 1)
	if e.subs == nil {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Cleanup releases the engine: subscriptions are closed and the cache is
// purged. Further lifecycle calls fail.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.subMu.Lock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.subs = nil
	e.subMu.Unlock()

	e.cache.Purge()
}

// CacheStats exposes evaluation cache counters for diagnostics.
func (e *Engine) CacheStats() evalcache.Stats { return e.cache.Stats() }

func (e *Engine) affectedSorted(id string) []string {
	affected := e.graph.AffectedByChange(id)
	out := make([]string, 0, len(affected))
	for el := range affected {
		out = append(out, el)
	}
	sort.Strings(out)
	return out
}

// recomputeDerived re-resolves visibility, enablement, bindings, and choices
// for the listed elements, returning the updated snapshot. Elements are
// processed in dependency order, and every binding write is folded into the
// snapshot the remaining elements evaluate against, so an element reading
// another element's derived value always sees the value computed in this
// pass, never the previous one. Binding expressions write derived values
// without dirtying the element.
func (e *Engine) recomputeDerived(snap *form.Snapshot, ids []string) *form.Snapshot {
	current := snap
	draft := current.Edit()
	for _, id := range e.graph.TopologicalOrder(ids) {
		def, known := e.defs[id]
		if !known {
			continue
		}

		if def.Value != "" {
			value, err := e.eval.Evaluate(def.Value, form.NamespaceBinding, id, current)
			if err != nil {
				e.logger.Warn("binding evaluation failed",
					"element", id, "expression", def.Value, "error", err)
			} else {
				draft.SetValue(id, value)
				current = draft.Snapshot()
				draft = current.Edit()
			}
		}

		visible, _ := e.eval.EvaluateBool(def.VisibleWhen, form.NamespaceVisibility, id, current)
		draft.SetVisible(id, visible)

		enabled, _ := e.eval.EvaluateBool(def.EnabledWhen, form.NamespaceEnablement, id, current)
		draft.SetEnabled(id, enabled)

		switch {
		case def.ChoiceSource != "":
			choices, err := e.eval.EvaluateChoices(def.ChoiceSource, id, current)
			if err == nil {
				draft.SetChoices(id, choices)
			} else {
				draft.SetChoices(id, nil)
			}
		case len(def.Choices) > 0:
			draft.SetChoices(id, def.Choices)
		}
	}
	return draft.Snapshot()
}

// revalidate replaces the error lists of the listed elements.
func (e *Engine) revalidate(snap *form.Snapshot, ids []string) *form.Snapshot {
	draft := snap.Edit()
	for _, id := range ids {
		def, known := e.defs[id]
		if !known {
			continue
		}
		value, _ := snap.Value(id)
		draft.SetErrors(id, e.checker.ValidateElement(def, value, snap))
	}
	return draft.Snapshot()
}

// publish stores the snapshot and notifies subscribers without blocking:
// a full subscriber buffer is drained of its stale snapshot first.
func (e *Engine) publish(snap *form.Snapshot) {
	e.current.Store(snap)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
