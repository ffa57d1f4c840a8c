package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldType is the JSON type of a schema field
type FieldType string

const (
	TypeString FieldType = "string"
)

// Field describes one key of the objects the model must return
type Field struct {
	Name        string
	Type        FieldType
	Description string
}

// Schema describes a JSON array of objects whose fields are all required
type Schema struct {
	Fields []Field
}

// ContactListSchema is the output contract with the model
var ContactListSchema = Schema{
	Fields: []Field{
		{Name: "name", Type: TypeString, Description: "Full name of the person."},
		{Name: "company", Type: TypeString, Description: "Company or organization name."},
		{Name: "location", Type: TypeString, Description: "Physical address or location."},
		{Name: "email", Type: TypeString, Description: "Email address."},
		{Name: "phone", Type: TypeString, Description: "Phone number."},
	},
}

// Required returns the names of every field, in declaration order
func (s Schema) Required() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// JSONSchema renders the schema as a JSON Schema document
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = map[string]any{
			"type":        string(f.Type),
			"description": f.Description,
		}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             s.Required(),
		},
	}
}

// Validator checks decoded JSON against a compiled schema
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles s for local validation of model responses
func NewValidator(s Schema) (*Validator, error) {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("adding schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks raw JSON bytes
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var (
	contactValidatorOnce sync.Once
	contactValidator     *Validator
	contactValidatorErr  error
)

// contactListValidator compiles ContactListSchema once
func contactListValidator() (*Validator, error) {
	contactValidatorOnce.Do(func() {
		contactValidator, contactValidatorErr = NewValidator(ContactListSchema)
	})
	return contactValidator, contactValidatorErr
}
