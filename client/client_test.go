package client

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/testutil"
	"github.com/crow-misia/jubatus-go-client/types"
)

var commonMethods = []string{"save", "load", "clear", "getConfig", "getStatus", "doMix", "getProxyStatus"}

func TestServices(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestServices.\n")
	assert := assert.New(t)

	assert.Equal([]string{
		"anomaly",
		"burst",
		"classifier",
		"clustering",
		"nearestneighbor",
		"recommender",
		"regression",
		"stat",
	}, Services())
}

func TestBundledSchemas(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestBundledSchemas.\n")
	assert := assert.New(t)

	svcs, err := Schemas()
	assert.NoError(err)

	for name, svc := range svcs {
		// Every bundled schema compiles.
		c, err := rpc.NewService(svc, nil, rpc.OptProduction(false))
		if !assert.NoError(err, name) {
			continue
		}
		for _, method := range commonMethods {
			assert.NotNil(c.Method(method), "%s.%s", name, method)
		}
	}

	for i, testCase := range []*struct {
		Service string
		Name    string
		RPCName string
	}{
		{"classifier", "getLabels", "get_labels"},
		{"recommender", "calcL2norm", "calc_l2norm"},
		{"recommender", "similarRowFromDatumAndRate", "similar_row_from_datum_and_rate"},
		{"nearestneighbor", "neighborRowFromId", "neighbor_row_from_id"},
		{"clustering", "getKCenter", "get_k_center"},
		{"burst", "getAllBurstedResultsAt", "get_all_bursted_results_at"},
		{"stat", "stddev", "stddev"},
	} {
		spec := svcs[testCase.Service].Method(testCase.RPCName)
		assert.NotNil(spec, "test case %d", i)
		assert.Equal(testCase.Name, spec.Name, "test case %d", i)
	}

	// Own methods first, then common ones.
	classifier := svcs["classifier"]
	assert.Equal("train", classifier.Methods[0].RPCName)
	assert.Equal("save", classifier.Methods[5].RPCName)
	assert.Len(classifier.Methods, 5+len(commonMethods))
}

func TestValidateBundled(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestValidateBundled.\n")
	assert := assert.New(t)

	svcs, err := Schemas()
	assert.NoError(err)

	service := func(name string) *rpc.Service {
		c, err := rpc.NewService(svcs[name], nil)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}

	datum := types.NewDatum().
		AddString("text", "hello").
		AddNumber("age", 20).
		AddBinary("image", []byte{0xff, 0x00})

	for i, testCase := range []*struct {
		Service string
		Name    string
		Args    []interface{}
		Valid   bool
	}{
		{"classifier", "train", []interface{}{[]types.LabeledDatum{types.NewLabeledDatum("a", datum)}}, true},
		{"classifier", "train", []interface{}{[]types.LabeledDatum{}}, true},
		{"classifier", "train", []interface{}{datum}, false},
		{"classifier", "classify", []interface{}{[]*types.Datum{datum, types.NewDatum()}}, true},
		{"regression", "train", []interface{}{[]types.ScoredDatum{types.NewScoredDatum(1.5, datum)}}, true},
		{"recommender", "updateRow", []interface{}{"id", datum}, true},
		{"recommender", "updateRow", []interface{}{datum, "id"}, false},
		{"recommender", "similarRowFromId", []interface{}{"id", 10}, true},
		{"recommender", "similarRowFromId", []interface{}{"id", 0.5}, false},
		{"nearestneighbor", "setRow", []interface{}{"id", datum}, true},
		{"anomaly", "add", []interface{}{datum}, true},
		{"anomaly", "addBulk", []interface{}{[]*types.Datum{datum}}, true},
		{"clustering", "push", []interface{}{[]types.IndexedPoint{types.NewIndexedPoint("p", datum)}}, true},
		{"burst", "addDocuments", []interface{}{[]types.Document{{Pos: 1, Text: "t"}}}, true},
		{"burst", "addKeyword", []interface{}{types.KeywordWithParams{Keyword: "k", ScalingParam: 2, Gamma: 1}}, true},
		{"burst", "addKeyword", []interface{}{"k"}, false},
		{"stat", "moment", []interface{}{"k", 2, 0.0}, true},
		{"stat", "push", []interface{}{"k"}, false},
		{"classifier", "save", []interface{}{"model"}, true},
		{"classifier", "getStatus", nil, true},
		{"classifier", "getStatus", []interface{}{"x"}, false},
	} {
		m := service(testCase.Service).Method(testCase.Name)
		if !assert.NotNil(m, "test case %d", i) {
			continue
		}
		args := testCase.Args
		if args == nil {
			args = []interface{}{}
		}
		r := m.ValidateArgs(args)
		assert.Equal(testCase.Valid, r.Valid, "test case %d: %v", i, r.Violations)
	}
}

func TestNew(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestNew.\n")
	assert := assert.New(t)

	srv, err := testutil.NewServer(func(req *testutil.Request) (interface{}, interface{}) {
		switch req.Method {
		case "get_config":
			return `{"method":"AROW"}`, nil
		}
		return true, nil
	})
	assert.NoError(err)
	defer srv.Close()

	{
		_, err := New("unknown", rpc.Config{})
		assert.Equal(jubatus.ConfigurationError, jubatus.CodeOf(err))
	}

	// Every bundled service in validating mode.
	for _, name := range Services() {
		c, err := New(name, rpc.Config{Port: srv.Port(), Host: srv.Host()}, rpc.OptProduction(false))
		if !assert.NoError(err, name) {
			continue
		}
		_, err = c.Call(context.Background(), "clear")
		assert.NoError(err, name)
		assert.NoError(c.Close(), name)
	}

	{
		c, err := New("Classifier", rpc.Config{Port: srv.Port(), Host: srv.Host(), Name: "tsk"})
		if !assert.NoError(err) {
			return
		}
		assert.Equal("classifier", c.SvcName())

		n := len(srv.Requests())
		result, err := c.Call(context.Background(), "getConfig")
		if !assert.NoError(err) {
			return
		}
		var config string
		assert.NoError(result.Decode(&config))
		assert.Equal(`{"method":"AROW"}`, config)
		assert.Equal([]interface{}{"tsk"}, srv.Requests()[n].Params)
		assert.NoError(c.Close())
	}

	{
		c, err := NewFromArgs("nearest_neighbor", srv.Port(), srv.Host(), 2)
		if !assert.NoError(err) {
			return
		}
		assert.Equal("nearestneighbor", c.SvcName())

		// Share the transport with another client.
		other, err := NewFromArgs("stat", c.Client())
		if !assert.NoError(err) {
			return
		}
		_, err = other.Call(context.Background(), "push", "k", 1.0)
		assert.NoError(err)
		assert.NoError(other.Close())

		// Still usable after closing the client sharing it.
		_, err = c.Call(context.Background(), "clear")
		assert.NoError(err)
		assert.NoError(c.Close())
	}

	// Service options after the construction arguments.
	{
		c, err := NewFromArgs("classifier", srv.Port(), srv.Host(), rpc.OptProduction(true))
		if !assert.NoError(err) {
			return
		}
		// Not validated in production mode: sent as is.
		_, err = c.Call(context.Background(), "getLabels", "unexpected")
		assert.NoError(err)
		assert.NoError(c.Close())

		_, err = NewFromArgs("classifier", rpc.OptProduction(true), srv.Port())
		assert.Equal(jubatus.ConfigurationError, jubatus.CodeOf(err))
	}
}
