package jsonparse

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const DecisionSchema = `{
  "type": "object",
  "required": ["decision", "justification"],
  "properties": {
    "decision": {"type": "string", "enum": ["approved", "rejected"]},
    "amount": {"type": ["number", "string", "null"]},
    "justification": {"type": "string"}
  }
}`

const SummarySchema = `{
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "flag": {"type": "boolean"}
  }
}`

// Validator checks parsed objects against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator(name, schema string) (*Validator, error) {
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return &Validator{schema: compiled}, nil
}

// MustValidator is NewValidator for the schemas compiled into the binary.
func MustValidator(name, schema string) *Validator {
	v, err := NewValidator(name, schema)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) Validate(obj map[string]any) error {
	if err := v.schema.Validate(obj); err != nil {
		return fmt.Errorf("model output does not match schema: %w", err)
	}
	return nil
}
