// Package schema describes JSON Schemas used for tool inputs and LLM response formats.
package schema

const URL = "http://json-schema.org/draft-07/schema#"

type Type string

const (
	String  Type = "string"
	Number  Type = "number"
	Integer Type = "integer"
	Boolean Type = "boolean"
	Array   Type = "array"
	Object  Type = "object"
)

// JSON is a way to describe a JSON Schema
type JSON struct {
	Type                 interface{}      `json:"type,omitzero"` // Can be Type or []interface{} for union types like ["string", "null"]
	Description          string           `json:"description,omitzero"`
	Properties           map[string]*JSON `json:"properties,omitzero"`
	Items                *JSON            `json:"items,omitzero"`
	Enum                 []string         `json:"enum,omitzero"`
	Required             []string         `json:"required,omitzero"`
	AdditionalProperties *bool            `json:"additionalProperties,omitzero"`
	Schema               string           `json:"$schema,omitzero"`
	OneOf                []*JSON          `json:"oneOf,omitzero"`
	AnyOf                []*JSON          `json:"anyOf,omitzero"`
	AllOf                []*JSON          `json:"allOf,omitzero"`
}

// TypeName returns the schema's primary type. For union types like
// ["number", "null"] it returns the first non-null member.
func (s *JSON) TypeName() Type {
	if s == nil {
		return ""
	}
	switch t := s.Type.(type) {
	case Type:
		return t
	case string:
		return Type(t)
	case []interface{}:
		for _, v := range t {
			if name, ok := v.(string); ok && name != "null" {
				return Type(name)
			}
		}
	case []string:
		for _, name := range t {
			if name != "null" {
				return Type(name)
			}
		}
	}
	return ""
}
