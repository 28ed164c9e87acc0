// Package validate checks values against the JSON-Schema fragments of a
// service description.
//
// A Validator created in production mode compiles nothing and every Schema it
// returns always passes: validation cost is only paid during development and
// integration testing.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/transport"
)

// Validator compiles schema fragments.
type Validator struct {
	production bool
}

// Schema is a compiled schema fragment. A nil *Schema always passes.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Result is the result of a validation.
type Result struct {
	// Valid is true if the value conforms to the schema.
	Valid bool

	// Violations in the order reported by the engine.
	Violations []jubatus.Violation
}

var pass = Result{Valid: true}

// New creates a Validator. production disables validation entirely.
func New(production bool) *Validator {
	return &Validator{
		production: production,
	}
}

// Production returns true if validation is disabled.
func (v *Validator) Production() bool {
	return v.production
}

// Compile compiles fragment with defs attached as its "definitions" so that
// "#/definitions/<name>" references resolve. name is only used in messages.
func (v *Validator) Compile(name string, fragment json.RawMessage, defs map[string]json.RawMessage) (*Schema, error) {
	if v.production {
		return &Schema{name: name}, nil
	}

	doc := make(map[string]interface{})
	if err := json.Unmarshal(fragment, &doc); err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %s: fragment must be an object", name)
	}
	if len(defs) != 0 {
		m := make(map[string]interface{}, len(defs))
		for k, def := range defs {
			var d interface{}
			if err := json.Unmarshal(def, &d); err != nil {
				return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %s: definition %s", name, k)
			}
			m[k] = d
		}
		doc["definitions"] = m
	}
	dropEmptyItems(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %s", name)
	}

	url := "https://jubatus.local/" + name + ".json"
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %s", name)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %s", name)
	}
	return &Schema{
		name:     name,
		compiled: compiled,
	}, nil
}

// dropEmptyItems removes `"items": []`. Draft 4 requires a non-empty items
// array while service descriptions use the empty one for methods without
// arguments, which is the same as having no items at all.
func dropEmptyItems(v interface{}) {
	switch v := v.(type) {
	case map[string]interface{}:
		if items, ok := v["items"].([]interface{}); ok && len(items) == 0 {
			delete(v, "items")
		}
		for _, e := range v {
			dropEmptyItems(e)
		}
	case []interface{}:
		for _, e := range v {
			dropEmptyItems(e)
		}
	}
}

// Name returns the name given in Compile.
func (s *Schema) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Validate validates value. value is first converted to its wire form, so
// tuple structs are checked as the arrays they are encoded to.
func (s *Schema) Validate(value interface{}) Result {
	if s == nil || s.compiled == nil {
		return pass
	}

	instance, err := Normalize(value)
	if err != nil {
		return Result{
			Violations: []jubatus.Violation{{Path: "", Message: err.Error()}},
		}
	}

	err = s.compiled.Validate(instance)
	if err == nil {
		return pass
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return Result{
			Violations: []jubatus.Violation{{Path: "", Message: err.Error()}},
		}
	}
	return Result{
		Violations: flatten(ve, nil),
	}
}

// Err converts a failed Result to an *jubatus.Error with code. Returns nil if r is valid.
func (r Result) Err(code jubatus.ErrorCode, msg string, args ...interface{}) error {
	if r.Valid {
		return nil
	}
	err := jubatus.Errorf(code, msg, args...)
	err.Violations = r.Violations
	return err
}

func flatten(ve *jsonschema.ValidationError, out []jubatus.Violation) []jubatus.Violation {
	if len(ve.Causes) == 0 {
		return append(out, jubatus.Violation{
			Path:    ve.InstanceLocation,
			Message: ve.Message,
		})
	}
	for _, cause := range ve.Causes {
		out = flatten(cause, out)
	}
	return out
}

// Normalize converts value to the generic form the JSON-Schema engine
// accepts, going through the msgpack codec used on the wire.
func Normalize(value interface{}) (interface{}, error) {
	data, err := transport.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded interface{}
	if err := transport.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return toJSON(decoded), nil
}

func toJSON(v interface{}) interface{} {
	switch v := v.(type) {
	case int64:
		return json.Number(strconv.FormatInt(v, 10))
	case uint64:
		return json.Number(strconv.FormatUint(v, 10))
	case int:
		return json.Number(strconv.Itoa(v))
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	case []interface{}:
		for i := range v {
			v[i] = toJSON(v[i])
		}
		return v
	case map[string]interface{}:
		for k, e := range v {
			v[k] = toJSON(e)
		}
		return v
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[fmt.Sprint(toJSON(k))] = toJSON(e)
		}
		return m
	default:
		return v
	}
}
