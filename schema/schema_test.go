package schema

import (
	"log"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/crow-misia/jubatus-go-client"
)

const (
	commonDoc = `{
  "properties": {
    "save": {
      "id": "save",
      "properties": {
        "arguments": {"type": "array", "items": [{"type": "string"}], "minItems": 1, "maxItems": 1},
        "return": {"type": "object"}
      }
    },
    "clear": {
      "id": "clear",
      "properties": {
        "arguments": {"type": "array", "maxItems": 0},
        "return": {"type": "boolean"}
      }
    },
    "get_status": {
      "id": "get_status",
      "properties": {
        "arguments": {"type": "array", "maxItems": 0},
        "return": {"type": "object"}
      }
    }
  },
  "definitions": {
    "datum": {"type": "array"},
    "shared": {"type": "string"}
  }
}`

	classifierDoc = `{
  "properties": {
    "train": {
      "id": "train",
      "properties": {
        "arguments": {"type": "array", "items": [{"type": "array"}]},
        "return": {"type": "integer"}
      }
    },
    "clear": {
      "id": "clear",
      "properties": {
        "arguments": {"type": "array", "maxItems": 0},
        "return": {"type": "integer"}
      }
    },
    "get_labels": {
      "id": "get_labels",
      "properties": {
        "arguments": {"type": "array", "maxItems": 0},
        "return": {"type": "object"}
      }
    }
  },
  "definitions": {
    "datum": {"type": "object"}
  }
}`
)

func TestParse(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestParse.\n")
	assert := assert.New(t)

	svc, err := Parse("classifier", strings.NewReader(classifierDoc))
	assert.NoError(err)
	assert.Equal("classifier", svc.Name)

	// Document order is kept.
	names := []string{}
	for _, m := range svc.Methods {
		names = append(names, m.RPCName)
	}
	assert.Equal([]string{"train", "clear", "get_labels"}, names)
	assert.Equal("getLabels", svc.Method("get_labels").Name)
	assert.JSONEq(`{"type": "integer"}`, string(svc.Method("train").Return))
	assert.Nil(svc.Method("get_status"))
	assert.Len(svc.Definitions, 1)
}

func TestParseError(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestParseError.\n")
	assert := assert.New(t)

	for i, testCase := range []*struct {
		Doc         string
		ExpectError bool
	}{
		// Ok.
		{`{"properties": {"a": {"id": "a"}}}`, false},
		// Ok: no methods.
		{`{}`, false},
		// Ok: id falls back to key.
		{`{"properties": {"a": {}}}`, false},
		// Not JSON.
		{`{`, true},
		// Properties is not an object.
		{`{"properties": []}`, true},
		// Duplicated key.
		{`{"properties": {"a": {"id": "a"}, "a": {"id": "a"}}}`, true},
		// Duplicated id.
		{`{"properties": {"a": {"id": "x"}, "b": {"id": "x"}}}`, true},
	} {
		_, err := Parse("test", strings.NewReader(testCase.Doc))
		if testCase.ExpectError {
			assert.Error(err, "test case %d", i)
			assert.True(jubatus.IsCode(err, jubatus.ConfigurationError), "test case %d", i)
		} else {
			assert.NoError(err, "test case %d", i)
		}
	}
}

func TestParseDefaults(t *testing.T) {
	assert := assert.New(t)

	svc, err := Parse("test", strings.NewReader(`{"properties": {"do_it": {}}}`))
	assert.NoError(err)
	assert.Len(svc.Methods, 1)
	assert.Equal("do_it", svc.Methods[0].RPCName)
	assert.Equal("doIt", svc.Methods[0].Name)
	assert.JSONEq(`{"type": "array"}`, string(svc.Methods[0].Arguments))
	assert.JSONEq(`{}`, string(svc.Methods[0].Return))
}

func TestMerge(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestMerge.\n")
	assert := assert.New(t)

	common, err := Parse(CommonName, strings.NewReader(commonDoc))
	assert.NoError(err)
	classifier, err := Parse("classifier", strings.NewReader(classifierDoc))
	assert.NoError(err)

	merged, err := Merge(map[string]*ServiceSchema{
		CommonName:   common,
		"classifier": classifier,
	})
	assert.NoError(err)
	assert.Len(merged, 1)

	svc := merged["classifier"]
	names := []string{}
	for _, m := range svc.Methods {
		names = append(names, m.RPCName)
	}
	// Own methods first, then common ones which are not already present.
	assert.Equal([]string{"train", "clear", "get_labels", "save", "get_status"}, names)

	// Own "clear" wins unchanged.
	assert.JSONEq(`{"type": "integer"}`, string(svc.Method("clear").Return))

	// Definitions are unioned, own entries win.
	assert.JSONEq(`{"type": "object"}`, string(svc.Definitions["datum"]))
	assert.JSONEq(`{"type": "string"}`, string(svc.Definitions["shared"]))

	// Inputs are not modified.
	assert.Len(classifier.Methods, 3)
	assert.Len(classifier.Definitions, 1)
	assert.Nil(merged[CommonName])
}

func TestMergeNoCommon(t *testing.T) {
	assert := assert.New(t)

	classifier, err := Parse("classifier", strings.NewReader(classifierDoc))
	assert.NoError(err)

	_, err = Merge(map[string]*ServiceSchema{"classifier": classifier})
	assert.True(jubatus.IsCode(err, jubatus.ConfigurationError))
}

func TestMergeDuplicated(t *testing.T) {
	assert := assert.New(t)

	svc := &ServiceSchema{
		Name: "broken",
		Methods: []*MethodSpec{
			{RPCName: "a", Name: "a"},
			{RPCName: "a", Name: "a"},
		},
	}
	_, err := Merge(map[string]*ServiceSchema{
		CommonName: {Name: CommonName},
		"broken":   svc,
	})
	assert.True(jubatus.IsCode(err, jubatus.ConfigurationError))
}

func TestLoad(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestLoad.\n")
	assert := assert.New(t)

	fsys := fstest.MapFS{
		"api/common.json":           {Data: []byte(commonDoc)},
		"api/classifier.json":       {Data: []byte(classifierDoc)},
		"api/nearest_neighbor.json": {Data: []byte(`{"properties": {"set_row": {"id": "set_row"}}}`)},
		"api/README.md":             {Data: []byte("not a schema")},
	}

	services, err := Load(fsys, "api")
	assert.NoError(err)
	assert.Equal([]string{"classifier", "common", "nearestneighbor"}, Names(services))

	merged, err := LoadMerged(fsys, "api")
	assert.NoError(err)
	assert.Equal([]string{"classifier", "nearestneighbor"}, Names(merged))
	assert.Len(merged["nearestneighbor"].Methods, 4)

	_, err = Load(fsys, "missing")
	assert.True(jubatus.IsCode(err, jubatus.ConfigurationError))

	fsys["api/bad.json"] = &fstest.MapFile{Data: []byte(`{`)}
	_, err = Load(fsys, "api")
	assert.True(jubatus.IsCode(err, jubatus.ConfigurationError))
}
