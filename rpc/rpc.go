// Package rpc turns merged service schemas into callable clients.
//
// Synthesize builds one Method per schema entry. A Service dispatches calls by
// public (camelCase) method name through a single routine: validate the
// arguments, prepend the target name, run the middleware chain which ends at
// the Transport, then validate the result.
package rpc

import (
	"context"
	"fmt"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/schema"
	"github.com/crow-misia/jubatus-go-client/transport"
	"github.com/crow-misia/jubatus-go-client/validate"
)

// Transport sends requests to a server. *transport.Client implements it.
type Transport interface {
	// Request sends method with params and waits for the reply. The returned
	// Reply carries the msgid whenever the request was sent, even on error.
	Request(ctx context.Context, method string, params ...interface{}) (transport.Reply, error)

	// Close the transport.
	Close() error
}

// Handler does the real call. params already starts with the target name.
type Handler func(ctx context.Context, method *Method, params []interface{}) (transport.Reply, error)

// Middleware wraps a Handler into another one. The params are (svcName, method, handler).
type Middleware func(svcName string, method *Method, handler Handler) Handler

// Method is a synthesized method: its MethodSpec and compiled schemas.
type Method struct {
	spec *schema.MethodSpec
	args *validate.Schema
	ret  *validate.Schema
}

var (
	_ Transport = (*transport.Client)(nil)
)

// Synthesize builds the method table of a merged schema. Schemas are compiled
// by v, so the production switch of v decides whether calls are validated.
func Synthesize(svc *schema.ServiceSchema, v *validate.Validator) ([]*Method, error) {
	methods := make([]*Method, 0, len(svc.Methods))
	names := make(map[string]string, len(svc.Methods))

	for _, spec := range svc.Methods {
		if prev, found := names[spec.Name]; found {
			return nil, jubatus.Errorf(jubatus.ConfigurationError, "service %q: %q and %q both map to %q", svc.Name, prev, spec.RPCName, spec.Name)
		}
		names[spec.Name] = spec.RPCName

		args, err := v.Compile(fmt.Sprintf("%s.%s.arguments", svc.Name, spec.RPCName), spec.Arguments, svc.Definitions)
		if err != nil {
			return nil, err
		}
		ret, err := v.Compile(fmt.Sprintf("%s.%s.return", svc.Name, spec.RPCName), spec.Return, svc.Definitions)
		if err != nil {
			return nil, err
		}
		methods = append(methods, &Method{
			spec: spec,
			args: args,
			ret:  ret,
		})
	}
	return methods, nil
}

// RPCName returns the wire name.
func (m *Method) RPCName() string {
	return m.spec.RPCName
}

// Name returns the public name.
func (m *Method) Name() string {
	return m.spec.Name
}

// Spec returns the method spec.
func (m *Method) Spec() *schema.MethodSpec {
	return m.spec
}

// ValidateArgs validates positional arguments (without the target name).
func (m *Method) ValidateArgs(args []interface{}) validate.Result {
	return m.args.Validate(args)
}

// ValidateReturn validates a decoded return value.
func (m *Method) ValidateReturn(value interface{}) validate.Result {
	return m.ret.Validate(value)
}

func (m *Method) String() string {
	return fmt.Sprintf("Method(%s=>%s)", m.spec.Name, m.spec.RPCName)
}
