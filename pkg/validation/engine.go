// Package validation evaluates per-element rules against a snapshot and
// produces typed errors. Validation never aborts the form: malformed
// configuration (bad patterns, unregistered native functions) degrades to
// logged warnings or inline errors, and results are always data, never
// panics.
package validation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/expr"
	"github.com/goliatone/go-formengine/pkg/form"
)

// Engine runs the ordered rule pipeline for elements. Safe for concurrent
// use; compiled patterns are cached across calls.
type Engine struct {
	eval   *expr.Evaluator
	funcs  *bridge.Registry
	logger *slog.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
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

// New builds a validation engine sharing the evaluator and bridge registry
// with the rest of the form engine.
func New(eval *expr.Evaluator, funcs *bridge.Registry, opts ...Option) *Engine {
	e := &Engine{
		eval:     eval,
		funcs:    funcs,
		logger:   slog.Default(),
		patterns: map[string]*regexp.Regexp{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateElement evaluates the element's rules in order: presence first
// (required plus empty yields exactly one required error and short-circuits),
// then declared rules with one error per failure, then the optional custom
// native-function rule, then cross-element rules. The returned list replaces
// any previous errors for the element.
func (e *Engine) ValidateElement(def form.ElementDefinition, value any, snap *form.Snapshot) []form.ValidationError {
	if e.isRequired(def, snap) && isEmpty(value) {
		message := def.Label
		if message == "" {
			message = def.ID
		}
		return []form.ValidationError{
			form.NewRuleError(def.ID, form.RuleRequired, fmt.Sprintf("%s is required", message)),
		}
	}

	var errs []form.ValidationError
	if !isEmpty(value) {
		for _, rule := range def.Rules {
			if failure, failed := e.checkRule(def.ID, rule, value); failed {
				errs = append(errs, failure)
			}
		}
	}
	if def.Custom != nil {
		if failure, failed := e.checkCustom(def, *def.Custom, snap); failed {
			errs = append(errs, failure)
		}
	}
	for _, rule := range def.CrossField {
		if failure, failed := e.checkCrossField(def.ID, rule, snap); failed {
			errs = append(errs, failure)
		}
	}
	return errs
}

// ValidateAll runs ValidateElement for every ruled definition, reading each
// element's current value from the snapshot. Calling it twice against the
// same snapshot yields identical results.
func (e *Engine) ValidateAll(defs []form.ElementDefinition, snap *form.Snapshot) map[string][]form.ValidationError {
	out := map[string][]form.ValidationError{}
	for _, def := range defs {
		value, _ := snap.Value(def.ID)
		if errs := e.ValidateElement(def, value, snap); len(errs) > 0 {
			out[def.ID] = errs
		}
	}
	return out
}

func (e *Engine) isRequired(def form.ElementDefinition, snap *form.Snapshot) bool {
	if def.Required {
		return true
	}
	if def.RequiredWhen == "" {
		return false
	}
	required, err := e.eval.EvaluateBool(def.RequiredWhen, form.NamespaceValidation, def.ID, snap)
	if err != nil {
		// Broken requiredness expressions degrade to optional.
		return false
	}
	return required
}

func (e *Engine) checkRule(elementID string, rule form.Rule, value any) (form.ValidationError, bool) {
	fail := func(message string) (form.ValidationError, bool) {
		if rule.Message != "" {
			message = rule.Message
		}
		return form.NewRuleError(elementID, rule.Kind, message).WithSeverity(rule.Severity), true
	}

	switch rule.Kind {
	case form.RulePattern:
		pattern := rule.Params["pattern"]
		re, err := e.compiled(pattern)
		if err != nil {
			e.logger.Warn("invalid validation pattern, rule skipped",
				"element", elementID, "pattern", pattern, "error", err)
			return form.ValidationError{}, false
		}
		if !re.MatchString(stringValue(value)) {
			return fail(fmt.Sprintf("value does not match pattern %s", pattern))
		}
	case form.RuleMinLength:
		limit, ok := intParam(rule, "value")
		if !ok {
			return form.ValidationError{}, false
		}
		if utf8.RuneCountInString(stringValue(value)) < limit {
			return fail(fmt.Sprintf("must be at least %d characters", limit))
		}
	case form.RuleMaxLength:
		limit, ok := intParam(rule, "value")
		if !ok {
			return form.ValidationError{}, false
		}
		if utf8.RuneCountInString(stringValue(value)) > limit {
			return fail(fmt.Sprintf("must be at most %d characters", limit))
		}
	case form.RuleMin:
		bound, n, ok := numericRule(rule, value)
		if ok && n < bound {
			return fail(fmt.Sprintf("must be at least %v", bound))
		}
	case form.RuleMax:
		bound, n, ok := numericRule(rule, value)
		if ok && n > bound {
			return fail(fmt.Sprintf("must be at most %v", bound))
		}
	case form.RuleRequired:
		// Presence is handled up front in ValidateElement.
	default:
		e.logger.Warn("unknown validation rule kind, rule skipped",
			"element", elementID, "kind", rule.Kind)
	}
	return form.ValidationError{}, false
}

func (e *Engine) checkCustom(def form.ElementDefinition, rule form.CustomRule, snap *form.Snapshot) (form.ValidationError, bool) {
	args := make([]any, len(rule.Args))
	for i, arg := range rule.Args {
		args[i] = resolveArg(arg, snap)
	}

	result, err := e.funcs.Execute(rule.Function, args)
	if err != nil {
		// A malformed call (unregistered function, bad arity) becomes an
		// inline error rather than aborting the validation pass.
		return form.NewCustomFunctionError(def.ID, rule.Function, err.Error()).
			WithSeverity(rule.Severity), true
	}

	switch typed := result.(type) {
	case nil:
		return form.ValidationError{}, false
	case bool:
		if typed {
			return form.ValidationError{}, false
		}
		message := rule.Message
		if message == "" {
			message = fmt.Sprintf("%s failed validation", rule.Function)
		}
		return form.NewCustomFunctionError(def.ID, rule.Function, message).
			WithSeverity(rule.Severity), true
	case string:
		if strings.TrimSpace(typed) == "" {
			return form.ValidationError{}, false
		}
		return form.NewCustomFunctionError(def.ID, rule.Function, typed).
			WithSeverity(rule.Severity), true
	default:
		return form.ValidationError{}, false
	}
}

func (e *Engine) checkCrossField(elementID string, rule form.CrossFieldRule, snap *form.Snapshot) (form.ValidationError, bool) {
	ok, err := e.eval.EvaluateBool(rule.Expression, form.NamespaceValidation, elementID, snap)
	if err != nil {
		// Broken expressions never fail the element; EvaluateBool logged it.
		return form.ValidationError{}, false
	}
	if ok {
		return form.ValidationError{}, false
	}
	message := rule.Message
	if message == "" {
		message = fmt.Sprintf("%s does not satisfy %s", elementID, rule.Expression)
	}
	return form.NewCrossFieldError(elementID, rule.Related, rule.Expression, message).
		WithSeverity(rule.Severity), true
}

func (e *Engine) compiled(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("formengine/validation: empty pattern")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.patterns[pattern] = re
	return re, nil
}

// resolveArg treats arguments that resolve against the snapshot as paths and
// everything else as literals.
func resolveArg(arg string, snap *form.Snapshot) any {
	if snap != nil {
		if value, ok := snap.Lookup(arg); ok {
			return value
		}
	}
	return arg
}

func intParam(rule form.Rule, key string) (int, bool) {
	raw, ok := rule.Params[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

func numericRule(rule form.Rule, value any) (bound, n float64, ok bool) {
	raw, present := rule.Params["value"]
	if !present {
		return 0, 0, false
	}
	bound, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, 0, false
	}
	n, numeric := toNumber(value)
	if !numeric {
		return 0, 0, false
	}
	return bound, n, true
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
