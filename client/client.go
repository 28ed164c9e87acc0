// Package client bundles the Jubatus service descriptions and creates clients
// for them.
//
//	c, err := client.New("classifier", rpc.Config{Port: 9199})
//	if err != nil {
//		...
//	}
//	defer c.Close()
//	result, err := c.Call(ctx, "train", []types.LabeledDatum{...})
package client

import (
	"context"
	"embed"
	"io/fs"
	"strings"
	"sync"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/schema"
	"github.com/crow-misia/jubatus-go-client/transport"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	loadOnce sync.Once
	schemas  map[string]*schema.ServiceSchema
	loadErr  error
)

// Schemas returns the merged bundled schemas keyed by service name
// ("classifier", "nearestneighbor", ...). The result is shared: do not modify it.
func Schemas() (map[string]*schema.ServiceSchema, error) {
	loadOnce.Do(func() {
		schemas, loadErr = schema.LoadMerged(schemaFS, "schemas")
	})
	return schemas, loadErr
}

// SchemaFS returns the bundled schema files, one "<service>.json" per service
// plus "common.json".
func SchemaFS() fs.FS {
	sub, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		panic(err)
	}
	return sub
}

// Services returns the sorted names of the bundled services.
func Services() []string {
	svcs, err := Schemas()
	if err != nil {
		return nil
	}
	return schema.Names(svcs)
}

// Options of New besides the service options.
type Options struct {
	// Service options.
	Service []rpc.ServiceOption

	// Transport options used when dialing.
	Transport []transport.Option
}

// New creates a client of service from cfg. service is case insensitive and
// may be given in file name form ("nearest_neighbor").
func New(service string, cfg rpc.Config, opts ...rpc.ServiceOption) (*rpc.Service, error) {
	return NewWithOptions(context.Background(), service, cfg, Options{Service: opts})
}

// NewFromArgs is New with the construction arguments accepted by
// rpc.ConfigFromArgs: (port, host, timeoutSeconds), a Config or a transport.
// Trailing rpc.ServiceOption values are split off and passed to the service:
//
//	NewFromArgs("classifier", 9199, "localhost", 10, rpc.OptProduction(true))
func NewFromArgs(service string, args ...interface{}) (*rpc.Service, error) {
	var opts []rpc.ServiceOption
	for len(args) > 0 {
		opt, ok := args[len(args)-1].(rpc.ServiceOption)
		if !ok {
			break
		}
		opts = append([]rpc.ServiceOption{opt}, opts...)
		args = args[:len(args)-1]
	}

	cfg, err := rpc.ConfigFromArgs(args...)
	if err != nil {
		return nil, err
	}
	return New(service, cfg, opts...)
}

// NewWithOptions is the full form of New.
func NewWithOptions(ctx context.Context, service string, cfg rpc.Config, opts Options) (*rpc.Service, error) {
	svcs, err := Schemas()
	if err != nil {
		return nil, err
	}
	svc := svcs[schema.ServiceName(strings.ToLower(service))]
	if svc == nil {
		return nil, jubatus.Errorf(jubatus.ConfigurationError, "unknown service %q, expect one of %s", service, strings.Join(Services(), ", "))
	}

	base, err := rpc.NewBase(ctx, cfg, opts.Transport...)
	if err != nil {
		return nil, err
	}
	c, err := rpc.NewService(svc, base, opts.Service...)
	if err != nil {
		base.Close()
		return nil, err
	}
	return c, nil
}
