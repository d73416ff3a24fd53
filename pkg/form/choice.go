package form

import (
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Choice is a single option in a selection element.
type Choice struct {
	Value    any    `json:"value" yaml:"value"`
	Label    string `json:"label" yaml:"label"`
	Selected bool   `json:"selected,omitempty" yaml:"selected,omitempty"`
}

var (
	labelPolicyOnce sync.Once
	labelPolicy     *bluemonday.Policy
)

// SanitizeChoices strips markup from choice labels. Dynamic choice lists can
// originate from native functions outside this core's trust boundary, so
// labels are never passed through to renderers verbatim. Labels that sanitize
// to empty fall back to the string form of the value.
func SanitizeChoices(choices []Choice) []Choice {
	if len(choices) == 0 {
		return choices
	}
	policy := choiceLabelPolicy()
	out := make([]Choice, len(choices))
	for i, choice := range choices {
		cleaned := strings.TrimSpace(policy.Sanitize(choice.Label))
		if cleaned == "" {
			cleaned = strings.TrimSpace(policy.Sanitize(stringifyChoiceValue(choice.Value)))
		}
		choice.Label = cleaned
		out[i] = choice
	}
	return out
}

func choiceLabelPolicy() *bluemonday.Policy {
	labelPolicyOnce.Do(func() {
		labelPolicy = bluemonday.StrictPolicy()
	})
	return labelPolicy
}

func stringifyChoiceValue(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
