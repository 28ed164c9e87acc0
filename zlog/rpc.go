package zlog

import (
	"context"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/transport"
)

// RequestIDKey is the field name of the per call request id.
const RequestIDKey = "reqid"

// WrapClient logs each call and adds a zerolog.Logger carrying the call's
// request id to the context (use zerolog.Ctx to get it in inner handlers).
//
// Successful calls are logged at debug level, failed ones at warn level
// (error level for TransportError).
func WrapClient(logger *zerolog.Logger) rpc.Middleware {
	return func(svcName string, method *rpc.Method, handler rpc.Handler) rpc.Handler {
		return func(ctx context.Context, m *rpc.Method, params []interface{}) (reply transport.Reply, err error) {
			// Create a copy of the logger (including internal context slice)
			// to prevent data race when using UpdateContext.
			l := logger.With().
				Str(RequestIDKey, xid.New().String()).
				Str("svc", svcName).
				Str("method", m.RPCName()).
				Logger()
			if len(params) > 0 {
				if name, ok := params[0].(string); ok && name != "" {
					l = l.With().Str("target", name).Logger()
				}
			}
			ctx = l.WithContext(ctx)

			start := time.Now()
			reply, err = handler(ctx, m, params)
			elapsed := time.Since(start)

			var e *zerolog.Event
			switch {
			case err == nil:
				e = l.Debug()
			case jubatus.CodeOf(err) == jubatus.TransportError || jubatus.CodeOf(err) == jubatus.UnknownError:
				e = l.Error().Err(err)
			default:
				e = l.Warn().Err(err)
			}
			e.Uint32("msgid", reply.MsgID).
				Dur("elapsed", elapsed).
				Msg("RPC call")
			return
		}
	}
}
