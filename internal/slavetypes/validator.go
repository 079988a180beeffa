package slavetypes

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/slave-type-v1.json
var slaveTypeSchemaJSON string

type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("slave-type-v1.json",
		strings.NewReader(slaveTypeSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("slave-type-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDescriptor checks a YAML descriptor document against the schema.
func (v *Validator) ValidateDescriptor(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	// the schema validator expects JSON-decoded values
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("descriptor not representable as JSON: %w", err)
	}
	var jsonDoc interface{}
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
