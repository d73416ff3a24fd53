package openapi

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/form"
)

const registrationDoc = `
openapi: 3.0.3
info:
  title: Registration
  version: 1.0.0
paths:
  /register:
    post:
      operationId: registerUser
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [email, password]
              properties:
                email:
                  type: string
                  title: Email
                  pattern: "^[^@]+@[^@]+$"
                password:
                  type: string
                  minLength: 8
                  maxLength: 64
                age:
                  type: integer
                  minimum: 18
                  maximum: 120
                plan:
                  type: string
                  enum: [free, pro]
                  default: free
      responses:
        "200":
          description: ok
`

func loadDoc(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(registrationDoc))
	if err != nil {
		t.Fatalf("LoadFromData returned error: %v", err)
	}
	return doc
}

func TestElementsFromOperation(t *testing.T) {
	t.Parallel()

	defs, err := ElementsFromOperation(loadDoc(t), "registerUser")
	if err != nil {
		t.Fatalf("ElementsFromOperation returned error: %v", err)
	}

	want := []form.ElementDefinition{
		{
			ID:   "age",
			Type: form.ElementTypeInteger,
			Rules: []form.Rule{
				{Kind: form.RuleMin, Params: map[string]string{"value": "18"}},
				{Kind: form.RuleMax, Params: map[string]string{"value": "120"}},
			},
		},
		{
			ID:       "email",
			Type:     form.ElementTypeString,
			Label:    "Email",
			Required: true,
			Rules: []form.Rule{
				{Kind: form.RulePattern, Params: map[string]string{"pattern": "^[^@]+@[^@]+$"}},
			},
		},
		{
			ID:       "password",
			Type:     form.ElementTypeString,
			Required: true,
			Rules: []form.Rule{
				{Kind: form.RuleMinLength, Params: map[string]string{"value": "8"}},
				{Kind: form.RuleMaxLength, Params: map[string]string{"value": "64"}},
			},
		},
		{
			ID:      "plan",
			Type:    form.ElementTypeString,
			Default: "free",
			Choices: []form.Choice{
				{Value: "free", Label: "free"},
				{Value: "pro", Label: "pro"},
			},
		},
	}
	if diff := cmp.Diff(want, defs); diff != "" {
		t.Fatalf("definitions mismatch (-want +got):\n%s", diff)
	}
}

func TestOperationNotFound(t *testing.T) {
	t.Parallel()

	if _, err := ElementsFromOperation(loadDoc(t), "missingOp"); err == nil {
		t.Fatalf("unknown operation must fail")
	}
	if _, err := ElementsFromOperation(nil, "registerUser"); err == nil {
		t.Fatalf("nil document must fail")
	}
}

func TestElementsFromSchemaEmpty(t *testing.T) {
	t.Parallel()

	if defs := ElementsFromSchema(nil); defs != nil {
		t.Fatalf("nil schema yields no definitions, got %v", defs)
	}
	if defs := ElementsFromSchema(&openapi3.Schema{}); defs != nil {
		t.Fatalf("property-less schema yields no definitions, got %v", defs)
	}
}

func TestConvertedDefinitionsDriveValidation(t *testing.T) {
	t.Parallel()

	defs, err := ElementsFromOperation(loadDoc(t), "registerUser")
	if err != nil {
		t.Fatalf("ElementsFromOperation returned error: %v", err)
	}

	for _, def := range defs {
		if def.ID == "email" && !def.Required {
			t.Fatalf("email must be required")
		}
		if def.ID == "plan" && len(def.Choices) != 2 {
			t.Fatalf("plan must carry its enum choices, got %v", def.Choices)
		}
	}
}
