// Package schema validates JSON response bodies against structural schemas.
//
// A Schema declares required keys, value types (integer, number, string, boolean,
// array, object) and nesting. Validation is non-strict: keys that a schema does not
// declare are accepted. Schemas are expressed with the JSON Schema subset understood by
// kin-openapi and can be built in Go or parsed from JSON/YAML documents.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Schema is a named structural contract for a JSON value.
type Schema struct {
	name string
	def  *openapi3.Schema
}

// Field declares one object property.
type Field struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Report is the outcome of a validation. Errors is empty when Valid is true.
type Report struct {
	Valid  bool
	Errors []string
}

// Required declares a property that must be present.
func Required(name string, s *Schema) Field {
	return Field{Name: name, Schema: s, Required: true}
}

// Optional declares a property that is type-checked only when present.
func Optional(name string, s *Schema) Field {
	return Field{Name: name, Schema: s}
}

// Integer matches whole JSON numbers.
func Integer() *Schema { return &Schema{def: openapi3.NewIntegerSchema()} }

// Number matches any JSON number.
func Number() *Schema { return &Schema{def: openapi3.NewFloat64Schema()} }

// String matches JSON strings.
func String() *Schema { return &Schema{def: openapi3.NewStringSchema()} }

// Boolean matches true and false.
func Boolean() *Schema { return &Schema{def: openapi3.NewBoolSchema()} }

// ArrayOf matches arrays whose every item matches items.
func ArrayOf(items *Schema) *Schema {
	return &Schema{def: openapi3.NewArraySchema().WithItems(items.def)}
}

// MapOf matches objects whose every value matches values, whatever the keys.
func MapOf(values *Schema) *Schema {
	return &Schema{def: openapi3.NewObjectSchema().WithAdditionalProperties(values.def)}
}

// Object matches JSON objects with the given properties.
func Object(fields ...Field) *Schema {
	def := openapi3.NewObjectSchema()
	var required []string
	for _, f := range fields {
		def.WithProperty(f.Name, f.Schema.def)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	if len(required) > 0 {
		def.WithRequired(required)
	}
	return &Schema{def: def}
}

// Named returns s labelled with name, used in diagnostics and registries.
func (s *Schema) Named(name string) *Schema {
	return &Schema{name: name, def: s.def}
}

// Name returns the schema label, or "anonymous".
func (s *Schema) Name() string {
	if s.name == "" {
		return "anonymous"
	}
	return s.name
}

// Parse reads a JSON Schema document. YAML is accepted as well.
func Parse(name string, data []byte) (*Schema, error) {
	raw := data
	if !json.Valid(data) {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("schema %q: invalid JSON or YAML: %w", name, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("schema %q: cannot convert YAML document: %w", name, err)
		}
		raw = converted
	}

	def := &openapi3.Schema{}
	if err := json.Unmarshal(raw, def); err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}
	return &Schema{name: name, def: def}, nil
}

// Validate checks body against s. A body that is not JSON is reported as a single error.
// body is never modified.
func Validate(s *Schema, body []byte) Report {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return Report{Errors: []string{"body is not valid JSON: " + err.Error()}}
	}
	return ValidateValue(s, value)
}

// ValidateValue checks an already decoded JSON value (maps, slices, float64, string, bool, nil).
func ValidateValue(s *Schema, value any) Report {
	err := s.def.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return Report{Valid: true}
	}

	errs := flatten(err)
	sort.Strings(errs)
	return Report{Errors: errs}
}

func flatten(err error) []string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []string
		for _, e := range multi {
			out = append(out, flatten(e)...)
		}
		return out
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		return []string{fmt.Sprintf("%s: %s", pointer(schemaErr.JSONPointer()), schemaErr.Reason)}
	}
	return []string{err.Error()}
}

func pointer(parts []string) string {
	if len(parts) == 0 {
		return "(root)"
	}
	return "/" + strings.Join(parts, "/")
}
