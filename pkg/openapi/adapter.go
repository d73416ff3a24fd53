// Package openapi maps OpenAPI 3 request schemas to element definitions, so
// hosts that already describe their forms as API operations can feed the
// engine without a second configuration format. The engine itself only ever
// consumes the resulting definitions; this adapter is the external-loader
// collaborator.
package openapi

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formengine/pkg/form"
)

// ElementsFromOperation locates an operation's JSON request body schema and
// converts its properties to element definitions.
func ElementsFromOperation(doc *openapi3.T, operationID string) ([]form.ElementDefinition, error) {
	if doc == nil {
		return nil, fmt.Errorf("formengine/openapi: document is nil")
	}
	for _, path := range doc.Paths.Map() {
		if path == nil {
			continue
		}
		for _, op := range path.Operations() {
			if op == nil || op.OperationID != operationID {
				continue
			}
			schema := requestSchema(op)
			if schema == nil {
				return nil, fmt.Errorf("formengine/openapi: operation %q has no JSON request schema", operationID)
			}
			return ElementsFromSchema(schema), nil
		}
	}
	return nil, fmt.Errorf("formengine/openapi: operation %q not found", operationID)
}

// ElementsFromSchema converts an object schema's properties to element
// definitions: required membership, pattern/length/bound keywords become
// declared rules, enums become static choices. Properties are emitted in
// sorted order for stable output.
func ElementsFromSchema(schema *openapi3.Schema) []form.ElementDefinition {
	if schema == nil || len(schema.Properties) == 0 {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]form.ElementDefinition, 0, len(names))
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		out = append(out, elementFromProperty(name, ref.Value, required[name]))
	}
	return out
}

func elementFromProperty(name string, prop *openapi3.Schema, required bool) form.ElementDefinition {
	def := form.ElementDefinition{
		ID:          name,
		Type:        elementType(prop.Type),
		Label:       prop.Title,
		Description: prop.Description,
		Required:    required,
		Default:     prop.Default,
	}

	if prop.Pattern != "" {
		def.Rules = append(def.Rules, form.Rule{
			Kind:   form.RulePattern,
			Params: map[string]string{"pattern": prop.Pattern},
		})
	}
	if prop.MinLength != 0 {
		def.Rules = append(def.Rules, form.Rule{
			Kind:   form.RuleMinLength,
			Params: map[string]string{"value": strconv.FormatUint(prop.MinLength, 10)},
		})
	}
	if prop.MaxLength != nil {
		def.Rules = append(def.Rules, form.Rule{
			Kind:   form.RuleMaxLength,
			Params: map[string]string{"value": strconv.FormatUint(*prop.MaxLength, 10)},
		})
	}
	if prop.Min != nil {
		def.Rules = append(def.Rules, form.Rule{
			Kind:   form.RuleMin,
			Params: map[string]string{"value": strconv.FormatFloat(*prop.Min, 'f', -1, 64)},
		})
	}
	if prop.Max != nil {
		def.Rules = append(def.Rules, form.Rule{
			Kind:   form.RuleMax,
			Params: map[string]string{"value": strconv.FormatFloat(*prop.Max, 'f', -1, 64)},
		})
	}

	for _, value := range prop.Enum {
		def.Choices = append(def.Choices, form.Choice{
			Value: value,
			Label: fmt.Sprint(value),
		})
	}
	return def
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	if mt, ok := content["application/json"]; ok && mt.Schema != nil {
		return mt.Schema.Value
	}
	for _, mt := range content {
		if mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func elementType(types *openapi3.Types) form.ElementType {
	if types == nil {
		return form.ElementTypeString
	}
	values := types.Slice()
	if len(values) == 0 {
		return form.ElementTypeString
	}
	switch values[0] {
	case "integer":
		return form.ElementTypeInteger
	case "number":
		return form.ElementTypeNumber
	case "boolean":
		return form.ElementTypeBoolean
	case "array":
		return form.ElementTypeArray
	case "object":
		return form.ElementTypeObject
	default:
		return form.ElementTypeString
	}
}
