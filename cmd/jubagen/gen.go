package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/token"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/crow-misia/jubatus-go-client/schema"
)

// definitionTypes maps well known definitions to Go types of the types package.
var definitionTypes = map[string]string{
	"datum":               "*types.Datum",
	"labeled_datum":       "types.LabeledDatum",
	"estimate_result":     "types.EstimateResult",
	"scored_datum":        "types.ScoredDatum",
	"id_with_score":       "types.IDWithScore",
	"weighted_datum":      "types.WeightedDatum",
	"indexed_point":       "types.IndexedPoint",
	"weighted_index":      "types.WeightedIndex",
	"keyword_with_params": "types.KeywordWithParams",
	"batch":               "types.Batch",
	"window":              "types.Window",
	"document":            "types.Document",
}

type genParam struct {
	Name string
	Type string
}

type genMethod struct {
	Name        string // Exported Go name.
	PublicName  string // Name used for dispatch.
	RPCName     string
	Description string
	Params      []genParam
	Return      string
}

type genService struct {
	Package  string
	TypeName string
	SvcName  string
	Methods  []*genMethod
}

// Args returns the parameter list.
func (m *genMethod) Args() string {
	parts := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		parts = append(parts, p.Name)
	}
	return strings.Join(parts, ", ")
}

// Signature returns the parameter declarations.
func (m *genMethod) Signature() string {
	parts := []string{"ctx context.Context"}
	for _, p := range m.Params {
		parts = append(parts, p.Name+" "+p.Type)
	}
	return strings.Join(parts, ", ")
}

var serviceTpl = template.Must(template.New("service").Parse(`// Code generated by jubagen. DO NOT EDIT.

package {{ .Package }}

import (
	"context"

	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/types"
)

var (
	_ = context.Background
	_ = types.NewDatum
)

{{ $svc := . -}}
// {{ .TypeName }} is a typed client of the {{ .SvcName }} service.
type {{ .TypeName }} struct {
	svc *rpc.Service
}

// New{{ .TypeName }} wraps svc which must be a client of the {{ .SvcName }} service.
func New{{ .TypeName }}(svc *rpc.Service) *{{ .TypeName }} {
	return &{{ .TypeName }}{svc: svc}
}

// Service returns the underlying client.
func (c *{{ .TypeName }}) Service() *rpc.Service {
	return c.svc
}

// Name returns the target name.
func (c *{{ .TypeName }}) Name() string {
	return c.svc.Name()
}

// SetName changes the target name.
func (c *{{ .TypeName }}) SetName(name string) {
	c.svc.SetName(name)
}

// Close closes the client.
func (c *{{ .TypeName }}) Close() error {
	return c.svc.Close()
}
{{ range .Methods }}
// {{ .Name }} calls {{ .RPCName }}.{{ if .Description }} {{ .Description }}{{ end }}
func (c *{{ $svc.TypeName }}) {{ .Name }}({{ .Signature }}) ({{ .Return }}, error) {
	var ret {{ .Return }}
	result, err := c.svc.Call(ctx, "{{ .PublicName }}"{{ if .Params }}, {{ .Args }}{{ end }})
	if err != nil {
		return ret, err
	}
	err = result.Decode(&ret)
	return ret, err
}

// {{ .Name }}Async is the asynchronous form of {{ .Name }}. Decode the result into {{ .Return }}.
func (c *{{ $svc.TypeName }}) {{ .Name }}Async({{ .Signature }}) (*rpc.Future, error) {
	return c.svc.CallAsync(ctx, "{{ .PublicName }}"{{ if .Params }}, {{ .Args }}{{ end }})
}
{{ end }}
`))

// TypeNames returns the Go type name of each service in fsys: the exported
// form of the file name ("nearest_neighbor.json" => "NearestNeighbor").
func TypeNames(fsys fs.FS, dir string) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	ret := make(map[string]string)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".json")
		ret[schema.ServiceName(entry.Name())] = schema.ExportedName(base)
	}
	return ret, nil
}

// Generate generates the source of a typed client of svc.
func Generate(pkg, typeName string, svc *schema.ServiceSchema) ([]byte, error) {
	data := &genService{
		Package:  pkg,
		TypeName: typeName,
		SvcName:  svc.Name,
	}
	names := map[string]bool{"Service": true, "Name": true, "SetName": true, "Close": true}
	for _, spec := range svc.Methods {
		m, err := newGenMethod(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", svc.Name, spec.RPCName)
		}
		for _, name := range []string{m.Name, m.Name + "Async"} {
			if names[name] {
				return nil, errors.Errorf("%s.%s: method name %s conflicts", svc.Name, spec.RPCName, name)
			}
			names[name] = true
		}
		data.Methods = append(data.Methods, m)
	}

	buf := &bytes.Buffer{}
	if err := serviceTpl.Execute(buf, data); err != nil {
		return nil, err
	}
	return gofmt(buf.Bytes())
}

func newGenMethod(spec *schema.MethodSpec) (*genMethod, error) {
	m := &genMethod{
		Name:        schema.ExportedName(spec.RPCName),
		PublicName:  spec.Name,
		RPCName:     spec.RPCName,
		Description: strings.Join(strings.Fields(spec.Description), " "),
	}

	args, err := decodeFragment(spec.Arguments)
	if err != nil {
		return nil, err
	}
	items, _ := args["items"].([]interface{})
	used := map[string]bool{"ctx": true, "c": true, "ret": true, "result": true, "err": true}
	for i, item := range items {
		fragment, _ := item.(map[string]interface{})
		name := paramName(fragment, i)
		for used[name] {
			name += "_"
		}
		used[name] = true
		m.Params = append(m.Params, genParam{
			Name: name,
			Type: goType(fragment),
		})
	}

	ret, err := decodeFragment(spec.Return)
	if err != nil {
		return nil, err
	}
	m.Return = goType(ret)
	return m, nil
}

func decodeFragment(raw json.RawMessage) (map[string]interface{}, error) {
	ret := make(map[string]interface{})
	if len(raw) == 0 {
		return ret, nil
	}
	if err := json.Unmarshal(raw, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func paramName(fragment map[string]interface{}, i int) string {
	title, _ := fragment["title"].(string)
	name := schema.ToPublic(title)
	if token.IsKeyword(name) {
		return name + "_"
	}
	if !token.IsIdentifier(name) {
		return fmt.Sprintf("arg%d", i)
	}
	return name
}

// goType maps a JSON-Schema fragment to a Go type.
func goType(fragment map[string]interface{}) string {
	if ref, ok := fragment["$ref"].(string); ok {
		if t, found := definitionTypes[strings.TrimPrefix(ref, "#/definitions/")]; found {
			return t
		}
		return "interface{}"
	}

	switch fragment["type"] {
	case "string":
		return "string"
	case "integer":
		return "int64"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		if items, ok := fragment["items"].(map[string]interface{}); ok {
			return "[]" + goType(items)
		}
		return "[]interface{}"
	case "object":
		if props, ok := fragment["additionalProperties"].(map[string]interface{}); ok {
			return "map[string]" + goType(props)
		}
		return "map[string]interface{}"
	}
	return "interface{}"
}
