package engine

import "fmt"

// ConfigError reports configuration the engine refused at build time:
// malformed expressions, references to unknown elements, or dependency
// cycles. These surface to the integrator instead of being silently dropped.
type ConfigError struct {
	Element    string
	Expression string
	Reason     string
	Err        error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("formengine: invalid configuration: %s", e.Reason)
	if e.Element != "" {
		msg += fmt.Sprintf(" (element %q)", e.Element)
	}
	if e.Expression != "" {
		msg += fmt.Sprintf(" (expression %q)", e.Expression)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
