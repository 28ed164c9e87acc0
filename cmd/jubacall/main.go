// Command jubacall calls one method of a Jubatus server and prints the
// result as JSON.
//
//	jubacall -port 9199 classifier getLabels
//	jubacall classifier train '[["baseball", [[["text", "homerun"]], [], []]]]'
//	jubacall -jaeger stat push key 1.5
//
// Arguments are JSON values. Those which are not valid JSON are sent as strings.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	ot "github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/tracing"
	"github.com/crow-misia/jubatus-go-client/transport"
	"github.com/crow-misia/jubatus-go-client/zlog"
)

var (
	host       string
	port       int
	timeoutSec float64
	name       string
	production bool
	useJaeger  bool
	verbose    bool
)

var newTracer = func(service string) (ot.Tracer, io.Closer, error) {
	cfg := jaegercfg.Configuration{
		Sampler: &jaegercfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
	}

	return cfg.New(service, jaegercfg.Logger(jaeger.StdLogger))
}

func main() {
	flag.StringVar(&host, "host", rpc.DefaultHost, "Server host.")
	flag.IntVar(&port, "port", rpc.DefaultPort, "Server port.")
	flag.Float64Var(&timeoutSec, "t", 10, "RPC timeout in seconds.")
	flag.StringVar(&name, "name", "", "Target name (cluster name). Empty for standalone servers.")
	flag.BoolVar(&production, "production", false, "Disable argument and return value validation.")
	flag.BoolVar(&useJaeger, "jaeger", false, "Report the call to jaeger.")
	flag.BoolVar(&verbose, "v", false, "Debug logging.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <service> <method> [args...]\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Services: %v\n", client.Services())
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zlog.DefaultZLogger
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	svcName, method := flag.Arg(0), flag.Arg(1)
	args, err := parseArgs(flag.Args()[2:])
	if err != nil {
		logger.Fatal().Err(err).Msg("Bad arguments")
	}

	os.Exit(run(&logger, svcName, method, args))
}

// run makes the call and returns the exit code. Deferred span and tracer
// cleanup always runs, so failed calls are reported too.
func run(logger *zerolog.Logger, svcName, method string, args []interface{}) int {
	mws := []rpc.Middleware{zlog.WrapClient(logger)}
	ctx := context.Background()
	var span ot.Span
	if useJaeger {
		tracer, closer, err := newTracer("jubacall")
		if err != nil {
			logger.Error().Err(err).Msg("Create tracer failed")
			return 1
		}
		defer closer.Close()
		mws = append([]rpc.Middleware{tracing.WrapClient(tracer)}, mws...)

		span = tracer.StartSpan("jubacall " + svcName + " " + method)
		defer span.Finish()
		ctx = ot.ContextWithSpan(ctx, span)
	}
	fail := func(err error, msg string) int {
		if span != nil {
			tracing.SetSpanError(span, err)
		}
		e := logger.Error().Err(err).Str("code", jubatus.CodeOf(err).String())
		if je, ok := err.(*jubatus.Error); ok && len(je.Violations) != 0 {
			e = e.Interface("violations", je.Violations)
		}
		e.Msg(msg)
		return 1
	}

	c, err := client.NewWithOptions(ctx, svcName, rpc.Config{
		Host:           host,
		Port:           port,
		TimeoutSeconds: timeoutSec,
		Name:           name,
	}, client.Options{
		Service: []rpc.ServiceOption{
			rpc.OptProduction(production),
			rpc.OptMiddlewares(mws...),
			rpc.OptLogger(logger),
		},
		Transport: []transport.Option{
			transport.OptLogger(logger),
		},
	})
	if err != nil {
		return fail(err, "Create client failed")
	}
	defer c.Close()

	start := time.Now()
	result, err := c.Call(ctx, method, args...)
	if err != nil {
		return fail(err, "Call failed")
	}

	v, err := result.Value()
	if err != nil {
		return fail(err, "Decode result failed")
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(err, "Encode result failed")
	}
	logger.Debug().
		Uint32("msgid", result.MsgID).
		Dur("elapsed", time.Since(start)).
		Msg("Call done")
	fmt.Println(string(out))
	return 0
}
