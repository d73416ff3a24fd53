package form

import "fmt"

// Severity ranks validation outcomes. Only error and critical block
// navigation; info and warning are advisory.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity prevents wizard navigation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// ErrorKind tags the variant of a ValidationError.
type ErrorKind string

const (
	ErrorKindRule           ErrorKind = "rule"
	ErrorKindCrossField     ErrorKind = "crossField"
	ErrorKindCustomFunction ErrorKind = "customFunction"
)

// ValidationError is user-facing validation feedback, always returned as data
// and never raised. The populated fields depend on Kind: Rule for rule errors,
// Related and Expression for cross-field errors, Function for custom-function
// errors. Errors are replaced, not appended, per element on each pass.
type ValidationError struct {
	Kind    ErrorKind `json:"kind"`
	Element string    `json:"element"`

	Rule       string `json:"rule,omitempty"`
	Related    string `json:"related,omitempty"`
	Expression string `json:"expression,omitempty"`
	Function   string `json:"function,omitempty"`

	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// NewRuleError builds a declared-rule failure with error severity.
func NewRuleError(element, rule, message string) ValidationError {
	return ValidationError{
		Kind:     ErrorKindRule,
		Element:  element,
		Rule:     rule,
		Message:  message,
		Severity: SeverityError,
	}
}

// NewCrossFieldError builds a cross-element rule failure with error severity.
func NewCrossFieldError(element, related, expression, message string) ValidationError {
	return ValidationError{
		Kind:       ErrorKindCrossField,
		Element:    element,
		Related:    related,
		Expression: expression,
		Message:    message,
		Severity:   SeverityError,
	}
}

// NewCustomFunctionError builds a native-function rule failure with error
// severity. It also covers malformed calls (unregistered name, bad arity) so
// broken configuration degrades to inline feedback instead of aborting the
// validation pass.
func NewCustomFunctionError(element, function, message string) ValidationError {
	return ValidationError{
		Kind:     ErrorKindCustomFunction,
		Element:  element,
		Function: function,
		Message:  message,
		Severity: SeverityError,
	}
}

// WithSeverity returns a copy of the error with the severity replaced.
func (e ValidationError) WithSeverity(severity Severity) ValidationError {
	if severity != "" {
		e.Severity = severity
	}
	return e
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s[%s]: %s", e.Element, e.Kind, e.Message)
}
