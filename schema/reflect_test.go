package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quadraticArgs struct {
	A float64 `json:"a" jsonschema_description:"Coeficiente cuadrático"`
	B float64 `json:"b" jsonschema_description:"Coeficiente lineal"`
	C float64 `json:"c" jsonschema_description:"Término independiente"`
}

type noteArgs struct {
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

func TestReflectFunctionSchema(t *testing.T) {
	t.Parallel()

	s, err := Reflect[quadraticArgs]()
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	// properties keep struct field order and there is no $schema or $ref
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"a": {"type": "number", "description": "Coeficiente cuadrático"},
			"b": {"type": "number", "description": "Coeficiente lineal"},
			"c": {"type": "number", "description": "Término independiente"}
		},
		"required": ["a", "b", "c"]
	}`, string(data))
	assert.NotContains(t, string(data), "$schema")

	keys := make([]string, 0, 3)
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestReflectOptionalFields(t *testing.T) {
	t.Parallel()

	s, err := Reflect[noteArgs]()
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, s.Required)
}

func TestReflectCaches(t *testing.T) {
	t.Parallel()

	first, err := Reflect[quadraticArgs]()
	require.NoError(t, err)
	second, err := Reflect[*quadraticArgs]()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestReflectRejectsNonStruct(t *testing.T) {
	t.Parallel()

	_, err := Reflect[[]string]()
	require.Error(t, err)
}

func TestFromJSONSchema(t *testing.T) {
	t.Parallel()

	s := MustReflect[quadraticArgs]()
	js, err := FromJSONSchema(s)
	require.NoError(t, err)

	assert.Equal(t, Object, js.TypeName())
	require.Contains(t, js.Properties, "a")
	assert.Equal(t, Number, js.Properties["a"].TypeName())
	assert.Equal(t, []string{"a", "b", "c"}, js.Required)
}

func TestTypeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *JSON
		want Type
	}{
		{"nil", nil, ""},
		{"typed", &JSON{Type: String}, String},
		{"decoded string", &JSON{Type: "number"}, Number},
		{"nullable union", &JSON{Type: []interface{}{"null", "integer"}}, Integer},
		{"missing", &JSON{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.TypeName())
		})
	}
}
