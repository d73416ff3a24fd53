// Package expr evaluates declarative form expressions against an immutable
// snapshot inside one of five purpose namespaces. Raw text is screened
// against a fixed denylist before parsing; parsed ASTs are cached per
// expression text, and results are memoized through the evaluation cache so a
// hit skips evaluation entirely. Named calls outside the builtin allowlist
// dispatch through the native function bridge.
package expr

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/evalcache"
	"github.com/goliatone/go-formengine/pkg/form"
)

// Evaluator is safe for concurrent use. The zero value is not usable; build
// one with New.
type Evaluator struct {
	cache  *evalcache.Cache
	funcs  *bridge.Registry
	logger *slog.Logger

	mu   sync.RWMutex
	asts map[string]node
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an evaluator. The cache may be nil to disable result
// memoization; the registry may be nil when no native functions exist.
func New(cache *evalcache.Cache, funcs *bridge.Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		cache:  cache,
		funcs:  funcs,
		logger: slog.Default(),
		asts:   map[string]node{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs an expression in the given namespace against the snapshot.
// The empty expression evaluates to nil. Denylisted expressions fail with a
// *SecurityError in every namespace, before parsing and before the cache is
// consulted for a stored result.
func (e *Evaluator) Evaluate(expression string, ns form.Namespace, contextElement string, snap *form.Snapshot) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, nil
	}
	if construct, denied := deniedConstruct(trimmed); denied {
		return nil, &SecurityError{Expression: trimmed, Construct: construct}
	}
	if !ns.Valid() {
		return nil, fmt.Errorf("formengine/expr: unknown namespace %q", ns)
	}

	key := evalcache.Key{Expression: trimmed, Element: contextElement}
	if e.cache == nil {
		return e.run(trimmed, snap)
	}
	return e.cache.GetOrCompute(ns, key, func() (any, error) {
		return e.run(trimmed, snap)
	})
}

// EvaluateBool evaluates under boolean coercion for the validation,
// visibility, and enablement namespaces. Evaluation failures are logged and
// resolve to false, the safe default, with the error returned for callers
// that distinguish configuration problems from a false result.
func (e *Evaluator) EvaluateBool(expression string, ns form.Namespace, contextElement string, snap *form.Snapshot) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	value, err := e.Evaluate(expression, ns, contextElement, snap)
	if err != nil {
		e.logger.Warn("expression evaluation failed",
			"expression", expression,
			"namespace", string(ns),
			"element", contextElement,
			"error", err,
		)
		return false, err
	}
	return truthy(value), nil
}

// EvaluateChoices evaluates a choice-source expression and coerces the result
// into an ordered option list. Failures are logged and resolve to an empty
// list.
func (e *Evaluator) EvaluateChoices(expression, contextElement string, snap *form.Snapshot) ([]form.Choice, error) {
	value, err := e.Evaluate(expression, form.NamespaceChoices, contextElement, snap)
	if err != nil {
		e.logger.Warn("choice evaluation failed",
			"expression", expression,
			"element", contextElement,
			"error", err,
		)
		return nil, err
	}
	return CoerceChoices(value), nil
}

// References parses an expression and returns the sorted root elements of
// every path it reads — the inputs a dependency graph needs to register.
func (e *Evaluator) References(expression string) ([]string, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, nil
	}
	if construct, denied := deniedConstruct(trimmed); denied {
		return nil, &SecurityError{Expression: trimmed, Construct: construct}
	}
	root, err := e.parsed(trimmed)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	collectPaths(root, seen)
	return sortedSet(seen), nil
}

func (e *Evaluator) run(expression string, snap *form.Snapshot) (any, error) {
	root, err := e.parsed(expression)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = form.NewSnapshot()
	}
	return root.eval(&env{snap: snap, funcs: e.funcs})
}

// parsed returns the parse-once AST for an expression text.
func (e *Evaluator) parsed(expression string) (node, error) {
	e.mu.RLock()
	root, ok := e.asts[expression]
	e.mu.RUnlock()
	if ok {
		return root, nil
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}
	root, err = parseExpression(tokens)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.asts[expression] = root
	e.mu.Unlock()
	return root, nil
}

// CoerceChoices converts an evaluation result into choices. Supported shapes:
// a []form.Choice, a []string, or a []any of scalars or of maps carrying
// "value"/"label"/"selected" keys.
func CoerceChoices(value any) []form.Choice {
	switch v := value.(type) {
	case nil:
		return nil
	case []form.Choice:
		return form.SanitizeChoices(v)
	case []string:
		out := make([]form.Choice, len(v))
		for i, item := range v {
			out[i] = form.Choice{Value: item, Label: item}
		}
		return form.SanitizeChoices(out)
	case []any:
		out := make([]form.Choice, 0, len(v))
		for _, item := range v {
			switch typed := item.(type) {
			case form.Choice:
				out = append(out, typed)
			case map[string]any:
				choice := form.Choice{Value: typed["value"]}
				if label, ok := typed["label"].(string); ok {
					choice.Label = label
				}
				if selected, ok := typed["selected"].(bool); ok {
					choice.Selected = selected
				}
				out = append(out, choice)
			default:
				out = append(out, form.Choice{Value: typed, Label: coerceString(typed)})
			}
		}
		return form.SanitizeChoices(out)
	default:
		return nil
	}
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
