// Package tracing adds opentracing support to clients.
//
// msgpack-rpc has no metadata, so span contexts are not propagated to the
// server: a client span records the call as seen by the client.
package tracing

import (
	"context"
	"fmt"

	ot "github.com/opentracing/opentracing-go"
	otext "github.com/opentracing/opentracing-go/ext"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/transport"
)

var (
	// ClientComponentTag is added to each client span.
	ClientComponentTag = ot.Tag{
		Key:   string(otext.Component),
		Value: "jubatus.client",
	}
)

var (
	// ClientOpName is used to generate operation name of a client span.
	ClientOpName = func(svcName string, method *rpc.Method) string {
		return fmt.Sprintf("RPC Client %s:%s", svcName, method.RPCName())
	}
)

// WrapClient adds opentracing support for clients. A span is only started
// when ctx carries a parent span.
func WrapClient(tracer ot.Tracer) rpc.Middleware {
	return func(svcName string, method *rpc.Method, handler rpc.Handler) rpc.Handler {
		opName := ClientOpName(svcName, method)
		return func(ctx context.Context, m *rpc.Method, params []interface{}) (reply transport.Reply, err error) {
			parentSpanCtx := SpanCtxFromCtx(ctx)
			if parentSpanCtx == nil {
				return handler(ctx, m, params)
			}

			span := tracer.StartSpan(
				opName,
				ot.ChildOf(parentSpanCtx),
				otext.SpanKindRPCClient,
				ClientComponentTag,
			)
			if len(params) > 0 {
				if name, ok := params[0].(string); ok && name != "" {
					span.SetTag("jubatus.target", name)
				}
			}
			defer func() {
				if reply.MsgID != 0 {
					span.SetTag("jubatus.msgid", reply.MsgID)
				}
				SetSpanError(span, err)
				span.Finish()
			}()

			return handler(ot.ContextWithSpan(ctx, span), m, params)
		}
	}
}

// SpanCtxFromCtx gets span context from context. Returns nil if there is no span set.
func SpanCtxFromCtx(ctx context.Context) ot.SpanContext {
	if span := ot.SpanFromContext(ctx); span != nil {
		return span.Context()
	}
	return nil
}

// SetSpanError set error on the span. If `err` is nil, then nop.
func SetSpanError(span ot.Span, err error) {
	if err != nil {
		otext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
		if code := jubatus.CodeOf(err); code != jubatus.UnknownError {
			span.SetTag("error.code", code.String())
		}
	}
}
