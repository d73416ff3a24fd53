package expr

import (
	"fmt"
	"strings"
)

// SecurityError reports an expression rejected by the denylist before
// evaluation. It is deliberately distinct from a parse error: the expression
// was refused, not misunderstood.
type SecurityError struct {
	Expression string
	Construct  string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("formengine/expr: expression rejected: contains denied construct %q", e.Construct)
}

// deniedConstructs is a fixed denylist of constructs enabling code execution,
// object construction, reflection, or sandbox-escaping member access. Raw
// expression text is checked case-insensitively before any parsing happens.
// The grammar uses dotted numeric indices for sequences, so brackets are
// never legitimate.
var deniedConstructs = []string{
	"__proto__",
	".constructor",
	"prototype",
	"eval(",
	"function(",
	"new ",
	"import(",
	"require(",
	"process.env",
	"globalthis",
	"reflect.",
	"=>",
	"${",
	"`",
	";",
	"[",
	"]",
}

// deniedConstruct returns the first denylisted construct found in the raw
// expression text, if any. The check is purely textual and runs in every
// namespace.
func deniedConstruct(raw string) (string, bool) {
	lowered := strings.ToLower(raw)
	for _, construct := range deniedConstructs {
		if strings.Contains(lowered, construct) {
			return construct, true
		}
	}
	return "", false
}
