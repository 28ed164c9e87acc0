// Package schema loads Jubatus service descriptions and merges the common
// method set into every service.
//
// A service description is a JSON document:
//
//	{
//	  "properties": {
//	    "train": {
//	      "id": "train",
//	      "properties": {
//	        "arguments": { "type": "array", "items": [ ... ] },
//	        "return": { "type": "integer" }
//	      }
//	    }
//	  },
//	  "definitions": { "datum": { ... } }
//	}
//
// Methods keep the order in which they appear in the document.
package schema

import (
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/crow-misia/jubatus-go-client"
)

// CommonName is the name of the schema merged into every other schema.
const CommonName = "common"

var (
	defaultArguments = json.RawMessage(`{"type":"array"}`)
	defaultReturn    = json.RawMessage(`{}`)
)

// MethodSpec describes one RPC method.
type MethodSpec struct {
	// RPCName is the wire level (snake_case) method name.
	RPCName string

	// Name is the public (camelCase) method name.
	Name string

	// Arguments is the JSON-Schema of the positional argument list.
	Arguments json.RawMessage

	// Return is the JSON-Schema of the return value.
	Return json.RawMessage

	// Description is optional documentation.
	Description string
}

// ServiceSchema describes a service: its methods and shared type definitions.
type ServiceSchema struct {
	// Name is the lower cased service name, e.g. "classifier".
	Name string

	// Methods in declaration order.
	Methods []*MethodSpec

	// Definitions can be referenced by "#/definitions/<name>" from any
	// argument or return schema.
	Definitions map[string]json.RawMessage
}

type rawMethod struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Properties  struct {
		Arguments json.RawMessage `json:"arguments"`
		Return    json.RawMessage `json:"return"`
	} `json:"properties"`
}

// Parse parses one service description.
func Parse(name string, r io.Reader) (*ServiceSchema, error) {
	var doc struct {
		Properties  json.RawMessage            `json:"properties"`
		Definitions map[string]json.RawMessage `json:"definitions"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %q: decode", name)
	}

	svc := &ServiceSchema{
		Name:        name,
		Definitions: doc.Definitions,
	}
	if svc.Definitions == nil {
		svc.Definitions = make(map[string]json.RawMessage)
	}
	if len(doc.Properties) == 0 {
		return svc, nil
	}

	keys, values, err := orderedObject(doc.Properties)
	if err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %q: properties", name)
	}

	ids := make(map[string]string)
	for i, key := range keys {
		m := &rawMethod{}
		if err := json.Unmarshal(values[i], m); err != nil {
			return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "schema %q: method %q", name, key)
		}
		rpcName := m.ID
		if rpcName == "" {
			rpcName = key
		}
		if prev, found := ids[rpcName]; found {
			return nil, jubatus.Errorf(jubatus.ConfigurationError, "schema %q: method %q declared by both %q and %q", name, rpcName, prev, key)
		}
		ids[rpcName] = key

		spec := &MethodSpec{
			RPCName:     rpcName,
			Name:        ToPublic(rpcName),
			Arguments:   m.Properties.Arguments,
			Return:      m.Properties.Return,
			Description: m.Description,
		}
		if len(spec.Arguments) == 0 {
			spec.Arguments = defaultArguments
		}
		if len(spec.Return) == 0 {
			spec.Return = defaultReturn
		}
		svc.Methods = append(svc.Methods, spec)
	}
	return svc, nil
}

// orderedObject decodes a JSON object into keys and values keeping document order.
// Duplicated keys are rejected.
func orderedObject(data json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, errors.Errorf("expect object but got %v", tok)
	}

	var (
		keys   []string
		values []json.RawMessage
		seen   = make(map[string]struct{})
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)
		if _, found := seen[key]; found {
			return nil, nil, errors.Errorf("duplicated key %q", key)
		}
		seen[key] = struct{}{}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	return keys, values, nil
}

// Load parses all regular "*.json" files in dir. The key of the result is
// the service name derived from the file name (see ServiceName).
func Load(fsys fs.FS, dir string) (map[string]*ServiceSchema, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "read schema dir %q", dir)
	}

	ret := make(map[string]*ServiceSchema)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		name := ServiceName(entry.Name())
		if _, found := ret[name]; found {
			return nil, jubatus.Errorf(jubatus.ConfigurationError, "duplicated service %q from %q", name, entry.Name())
		}

		svc, err := parseFile(fsys, path.Join(dir, entry.Name()), name)
		if err != nil {
			return nil, err
		}
		ret[name] = svc
	}
	return ret, nil
}

// LoadMerged is Load followed by Merge.
func LoadMerged(fsys fs.FS, dir string) (map[string]*ServiceSchema, error) {
	services, err := Load(fsys, dir)
	if err != nil {
		return nil, err
	}
	return Merge(services)
}

func parseFile(fsys fs.FS, file, name string) (*ServiceSchema, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return nil, jubatus.WrapError(jubatus.ConfigurationError, err, "open schema %q", file)
	}
	defer f.Close()
	return Parse(name, f)
}

// Method returns the method with the given rpc name or nil if not found.
func (svc *ServiceSchema) Method(rpcName string) *MethodSpec {
	for _, m := range svc.Methods {
		if m.RPCName == rpcName {
			return m
		}
	}
	return nil
}

// Clone returns a copy of svc. MethodSpecs are shared since they are immutable.
func (svc *ServiceSchema) Clone() *ServiceSchema {
	ret := &ServiceSchema{
		Name:        svc.Name,
		Methods:     append([]*MethodSpec(nil), svc.Methods...),
		Definitions: make(map[string]json.RawMessage, len(svc.Definitions)),
	}
	for k, v := range svc.Definitions {
		ret.Definitions[k] = v
	}
	return ret
}

// Names returns sorted service names.
func Names(services map[string]*ServiceSchema) []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func trimExt(file string) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}
