package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	cache   = make(map[reflect.Type]*jsonschema.Schema)
	cacheMu sync.RWMutex
)

// Reflect builds the parameters schema of a tool whose arguments decode into T.
//
// Properties follow struct field order. Fields are described with the
// `jsonschema_description` tag; fields without `omitempty` are required.
// The result is a plain object schema without $schema, $id or $defs, which
// is the shape every provider accepts for function declarations.
func Reflect[T any]() (*jsonschema.Schema, error) {
	return ReflectType(reflect.TypeFor[T]())
}

// ReflectType is Reflect for a runtime type.
func ReflectType(t reflect.Type) (*jsonschema.Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Newf("schema: %s is not a struct", t)
	}

	cacheMu.RLock()
	s, ok := cache[t]
	cacheMu.RUnlock()
	if ok {
		return s, nil
	}

	s = toFunctionSchema(reflector().ReflectFromType(t))

	cacheMu.Lock()
	cache[t] = s
	cacheMu.Unlock()
	return s, nil
}

// MustReflect is like Reflect but panics on error. It is meant for
// package-level tool definitions.
func MustReflect[T any]() *jsonschema.Schema {
	s, err := Reflect[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func reflector() *jsonschema.Reflector {
	r := new(jsonschema.Reflector)
	r.ExpandedStruct = true
	r.DoNotReference = true
	// types with the same name in different packages must not collide
	r.Namer = func(t reflect.Type) string {
		name := t.Name()
		if t.Kind() == reflect.Struct {
			fullname := t.PkgPath() + "/" + t.Name()
			name = t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(fullname), 10)
		}
		return name
	}
	return r
}

func toFunctionSchema(root *jsonschema.Schema) *jsonschema.Schema {
	props := root.Properties
	if props == nil {
		props = orderedmap.New[string, *jsonschema.Schema]()
	}
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.Version = ""
		pair.Value.ID = ""
	}
	required := root.Required
	if required == nil {
		required = []string{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// FromJSONSchema converts a reflected schema into the JSON description used
// for response formats.
func FromJSONSchema(s *jsonschema.Schema) (*JSON, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal schema")
	}
	var out JSON
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal schema")
	}
	return &out, nil
}

// Parse decodes a raw JSON Schema document.
func Parse(raw []byte) (*JSON, error) {
	var out JSON
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "parse schema")
	}
	return &out, nil
}
