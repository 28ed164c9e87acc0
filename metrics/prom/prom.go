// Package prom exports client metrics to Prometheus.
package prom

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/transport"
)

// NewRegistry creates a registry for the metrics.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns an HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ClientObserver records calls made by clients.
type ClientObserver struct {
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
}

// NewClientObserver registers client metrics on reg.
func NewClientObserver(reg prometheus.Registerer) *ClientObserver {
	o := &ClientObserver{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jubatus_client_calls_total",
			Help: "Calls by service, method and result.",
		}, []string{"svc", "method", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jubatus_client_call_latency_seconds",
			Help:    "Call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"svc", "method"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jubatus_client_calls_inflight",
			Help: "Calls waiting for a reply.",
		}, []string{"svc"}),
	}
	reg.MustRegister(
		o.calls,
		o.latency,
		o.inflight,
	)
	return o
}

// Result is the label value of a call outcome: "ok" or the error code name.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return jubatus.CodeOf(err).String()
}

// Middleware returns a middleware recording every call.
func (o *ClientObserver) Middleware() rpc.Middleware {
	return func(svcName string, method *rpc.Method, handler rpc.Handler) rpc.Handler {
		latency := o.latency.WithLabelValues(svcName, method.RPCName())
		inflight := o.inflight.WithLabelValues(svcName)
		return func(ctx context.Context, m *rpc.Method, params []interface{}) (transport.Reply, error) {
			inflight.Inc()
			start := time.Now()
			reply, err := handler(ctx, m, params)
			latency.Observe(time.Since(start).Seconds())
			inflight.Dec()
			o.calls.WithLabelValues(svcName, m.RPCName(), Result(err)).Inc()
			return reply, err
		}
	}
}
