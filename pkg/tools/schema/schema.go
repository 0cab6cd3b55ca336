// Package schema provides a typed representation of tool parameter schemas.
// Tool servers publish free-form JSON Schema documents; Parse reduces them to
// the subset a model's function declarations understand, dropping any keyword
// it does not know instead of failing.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Type is the kind of value a schema describes.
type Type string

const (
	Unspecified Type = ""
	Object      Type = "object"
	Array       Type = "array"
	String      Type = "string"
	Number      Type = "number"
	Integer     Type = "integer"
	Boolean     Type = "boolean"
	Null        Type = "null"
)

// Valid reports whether t is a known type or Unspecified.
func (t Type) Valid() bool {
	switch t {
	case Unspecified, Object, Array, String, Number, Integer, Boolean, Null:
		return true
	}
	return false
}

// Schema describes a parameter value.
type Schema struct {
	Type        Type               `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
}

// Parse converts a JSON Schema document into a Schema. v may be nil, raw JSON
// ([]byte or json.RawMessage), a decoded map, or a *jsonschema.Schema. A nil or
// empty document yields the zero Schema.
func Parse(v any) (Schema, error) {
	var src *jsonschema.Schema

	switch doc := v.(type) {
	case nil:
		return Schema{}, nil
	case *jsonschema.Schema:
		src = doc
	default:
		raw, err := toJSON(v)
		if err != nil {
			return Schema{}, fmt.Errorf("schema: marshal: %w", err)
		}
		if len(raw) == 0 || string(raw) == "null" {
			return Schema{}, nil
		}

		src = &jsonschema.Schema{}
		if err := json.Unmarshal(raw, src); err != nil {
			return Schema{}, fmt.Errorf("schema: parse: %w", err)
		}
	}

	if src == nil {
		return Schema{}, nil
	}

	return *fromJSONSchema(src), nil
}

func toJSON(v any) ([]byte, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return raw, nil
	case []byte:
		return raw, nil
	default:
		return json.Marshal(v)
	}
}

func fromJSONSchema(src *jsonschema.Schema) *Schema {
	out := &Schema{
		Type:        pickType(src),
		Description: src.Description,
		Enum:        src.Enum,
	}

	if len(src.Required) > 0 {
		out.Required = append([]string(nil), src.Required...)
	}

	if len(src.Properties) > 0 {
		out.Properties = make(map[string]*Schema, len(src.Properties))
		for name, prop := range src.Properties {
			if prop == nil {
				out.Properties[name] = &Schema{}
				continue
			}
			out.Properties[name] = fromJSONSchema(prop)
		}
	}

	if src.Items != nil {
		out.Items = fromJSONSchema(src.Items)
	}

	return out
}

// pickType resolves "type" to a single kind. For unions such as
// ["string", "null"] the first non-null kind wins; unknown kinds are dropped.
func pickType(src *jsonschema.Schema) Type {
	if src.Type != "" {
		if t := Type(src.Type); t.Valid() {
			return t
		}
		return Unspecified
	}

	var fallback Type
	for _, name := range src.Types {
		t := Type(name)
		if !t.Valid() {
			continue
		}
		if t != Null {
			return t
		}
		fallback = t
	}

	return fallback
}
