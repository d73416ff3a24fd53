package form

// ElementType is the simplified enum for form-friendly element kinds.
type ElementType string

const (
	ElementTypeString  ElementType = "string"
	ElementTypeInteger ElementType = "integer"
	ElementTypeNumber  ElementType = "number"
	ElementTypeBoolean ElementType = "boolean"
	ElementTypeArray   ElementType = "array"
	ElementTypeObject  ElementType = "object"
)

// Namespace partitions expression evaluation by purpose. The same expression
// text evaluated under different namespaces never shares cache entries because
// freshness requirements differ per purpose.
type Namespace string

const (
	NamespaceValidation Namespace = "validation"
	NamespaceVisibility Namespace = "visibility"
	NamespaceEnablement Namespace = "enablement"
	NamespaceBinding    Namespace = "binding"
	NamespaceChoices    Namespace = "choices"
)

// Namespaces returns every evaluation namespace in a stable order.
func Namespaces() []Namespace {
	return []Namespace{
		NamespaceValidation,
		NamespaceVisibility,
		NamespaceEnablement,
		NamespaceBinding,
		NamespaceChoices,
	}
}

// Valid reports whether the namespace is one of the known partitions.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceValidation, NamespaceVisibility, NamespaceEnablement, NamespaceBinding, NamespaceChoices:
		return true
	}
	return false
}

// Canonical rule kinds for declared validation constraints. Numeric bounds and
// length limits encode their threshold in Params["value"] while pattern rules
// preserve the original expression in Params["pattern"].
const (
	RuleRequired  = "required"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
)

// Rule represents a single declared validation constraint applied to an
// element. Message overrides the generated failure text when set.
type Rule struct {
	Kind     string            `json:"kind" yaml:"kind"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Message  string            `json:"message,omitempty" yaml:"message,omitempty"`
	Severity Severity          `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// CrossFieldRule validates an element against the rest of the form. The
// expression is evaluated in the validation namespace against the full
// snapshot; a false result attaches a cross-field error to the element.
type CrossFieldRule struct {
	Expression string   `json:"expression" yaml:"expression"`
	Related    string   `json:"related,omitempty" yaml:"related,omitempty"`
	Message    string   `json:"message,omitempty" yaml:"message,omitempty"`
	Severity   Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// CustomRule delegates validation to a pre-registered native function. Args
// are dotted snapshot paths or literals resolved before dispatch. The function
// passes by returning true (or nil); a false result or returned message fails
// the rule.
type CustomRule struct {
	Function string   `json:"function" yaml:"function"`
	Args     []string `json:"args,omitempty" yaml:"args,omitempty"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	Severity Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// ElementDefinition is the parsed per-element configuration the engine
// consumes: static metadata, declared validation rules, and the dependency
// expressions that drive derived state. The engine does not own the authoring
// format; hosts unmarshal definitions from whatever source they keep them in.
type ElementDefinition struct {
	ID          string      `json:"id" yaml:"id"`
	Type        ElementType `json:"type,omitempty" yaml:"type,omitempty"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`

	Required     bool   `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredWhen string `json:"requiredWhen,omitempty" yaml:"requiredWhen,omitempty"`
	VisibleWhen  string `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	EnabledWhen  string `json:"enabledWhen,omitempty" yaml:"enabledWhen,omitempty"`

	// Value is a binding expression; when set the element's value is derived
	// from other elements instead of user input.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// ChoiceSource is a choice-evaluation expression producing the option
	// list; Choices holds static options used when no source is declared.
	ChoiceSource string   `json:"choiceSource,omitempty" yaml:"choiceSource,omitempty"`
	Choices      []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	Rules      []Rule           `json:"rules,omitempty" yaml:"rules,omitempty"`
	Custom     *CustomRule      `json:"custom,omitempty" yaml:"custom,omitempty"`
	CrossField []CrossFieldRule `json:"crossField,omitempty" yaml:"crossField,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Expressions returns the dependency expressions declared on the definition,
// keyed by the namespace each one evaluates under. Cross-field rules all map
// into the validation namespace.
func (d ElementDefinition) Expressions() map[Namespace][]string {
	out := make(map[Namespace][]string)
	add := func(ns Namespace, expr string) {
		if expr != "" {
			out[ns] = append(out[ns], expr)
		}
	}
	add(NamespaceVisibility, d.VisibleWhen)
	add(NamespaceEnablement, d.EnabledWhen)
	add(NamespaceValidation, d.RequiredWhen)
	add(NamespaceBinding, d.Value)
	add(NamespaceChoices, d.ChoiceSource)
	for _, rule := range d.CrossField {
		add(NamespaceValidation, rule.Expression)
	}
	return out
}

// ElementState describes where an element sits in its life cycle. There is no
// terminal state: any value change re-enters Touched.
type ElementState string

const (
	StateUnset   ElementState = "unset"
	StateTouched ElementState = "touched"
	StateValid   ElementState = "valid"
	StateInvalid ElementState = "invalid"
)
