// Package schema holds the declarative output contracts and prompt templates
// used for structured extraction.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// Type is a JSON Schema primitive type name.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// ExtractionSchema is a small subset of JSON Schema: required keys, enums and
// array size bounds. It is converted to whatever the provider understands and
// is also used to check generated records locally.
type ExtractionSchema struct {
	Type        Type
	Description string
	Properties  map[string]*ExtractionSchema
	Required    []string
	Items       *ExtractionSchema
	Enum        []string
	MinItems    int // 0 means unbounded
	MaxItems    int // 0 means unbounded
}

// Object builds an object schema.
func Object(description string, properties map[string]*ExtractionSchema, required ...string) *ExtractionSchema {
	return &ExtractionSchema{Type: TypeObject, Description: description, Properties: properties, Required: required}
}

// Array builds an array schema with optional bounds.
func Array(description string, items *ExtractionSchema, minItems, maxItems int) *ExtractionSchema {
	return &ExtractionSchema{Type: TypeArray, Description: description, Items: items, MinItems: minItems, MaxItems: maxItems}
}

// String builds a string schema, optionally restricted to enum values.
func String(description string, enum ...string) *ExtractionSchema {
	return &ExtractionSchema{Type: TypeString, Description: description, Enum: enum}
}

// Integer builds an integer schema.
func Integer(description string) *ExtractionSchema {
	return &ExtractionSchema{Type: TypeInteger, Description: description}
}

// Boolean builds a boolean schema.
func Boolean(description string) *ExtractionSchema {
	return &ExtractionSchema{Type: TypeBoolean, Description: description}
}

// propertyNames returns property keys in a stable order.
func (s *ExtractionSchema) propertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSONSchema renders the schema as a JSON Schema document suitable for
// OpenAI-style function parameters.
func (s *ExtractionSchema) JSONSchema() map[string]any {
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = append([]string(nil), s.Enum...)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, child := range s.Properties {
			props[name] = child.JSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if s.MinItems > 0 {
		out["minItems"] = s.MinItems
	}
	if s.MaxItems > 0 {
		out["maxItems"] = s.MaxItems
	}
	return out
}

// Size is the length of the serialized JSON Schema. It drives the token
// budget for tool-call generation.
func (s *ExtractionSchema) Size() int {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return 0
	}
	return len(b)
}

// GenaiSchema converts the schema for Gemini structured output and function
// declarations.
func (s *ExtractionSchema) GenaiSchema() *genai.Schema {
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]string(nil), s.Enum...)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for _, name := range s.propertyNames() {
			out.Properties[name] = s.Properties[name].GenaiSchema()
		}
		out.PropertyOrdering = s.propertyNames()
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		out.Items = s.Items.GenaiSchema()
	}
	if s.MinItems > 0 {
		out.MinItems = genai.Ptr(int64(s.MinItems))
	}
	if s.MaxItems > 0 {
		out.MaxItems = genai.Ptr(int64(s.MaxItems))
	}
	return out
}

func genaiType(t Type) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeInteger:
		return genai.TypeInteger
	case TypeNumber:
		return genai.TypeNumber
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// Validate checks a decoded JSON value against the schema and returns a list
// of human-readable violations. An empty list means the value conforms.
func (s *ExtractionSchema) Validate(value any) []string {
	var violations []string
	s.validate("$", value, &violations)
	return violations
}

func (s *ExtractionSchema) validate(path string, value any, violations *[]string) {
	fail := func(format string, args ...any) {
		*violations = append(*violations, path+": "+fmt.Sprintf(format, args...))
	}

	switch s.Type {
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			fail("expected object, got %s", kindOf(value))
			return
		}
		for _, key := range s.Required {
			if _, present := obj[key]; !present {
				fail("missing required key %q", key)
			}
		}
		for _, name := range s.propertyNames() {
			if child, present := obj[name]; present {
				s.Properties[name].validate(path+"."+name, child, violations)
			}
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			fail("expected array, got %s", kindOf(value))
			return
		}
		if s.MinItems > 0 && len(arr) < s.MinItems {
			fail("expected at least %d items, got %d", s.MinItems, len(arr))
		}
		if s.MaxItems > 0 && len(arr) > s.MaxItems {
			fail("expected at most %d items, got %d", s.MaxItems, len(arr))
		}
		if s.Items != nil {
			for i, item := range arr {
				s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item, violations)
			}
		}
	case TypeString:
		str, ok := value.(string)
		if !ok {
			fail("expected string, got %s", kindOf(value))
			return
		}
		if len(s.Enum) > 0 && !containsFold(s.Enum, str) {
			fail("value %q not in enum [%s]", str, strings.Join(s.Enum, ", "))
		}
	case TypeInteger, TypeNumber:
		if _, ok := value.(float64); !ok {
			fail("expected number, got %s", kindOf(value))
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			fail("expected boolean, got %s", kindOf(value))
		}
	}
}

// DefaultRecord builds a record containing every required key with an empty
// value of the right type. overrides replace top-level values.
func (s *ExtractionSchema) DefaultRecord(overrides map[string]any) map[string]any {
	record, _ := s.zero().(map[string]any)
	if record == nil {
		record = map[string]any{}
	}
	for k, v := range overrides {
		record[k] = v
	}
	return record
}

func (s *ExtractionSchema) zero() any {
	switch s.Type {
	case TypeObject:
		obj := make(map[string]any, len(s.Required))
		for _, key := range s.Required {
			if child, ok := s.Properties[key]; ok {
				obj[key] = child.zero()
			} else {
				obj[key] = nil
			}
		}
		return obj
	case TypeArray:
		return []any{}
	case TypeInteger, TypeNumber:
		return float64(0)
	case TypeBoolean:
		return false
	default:
		return ""
	}
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
