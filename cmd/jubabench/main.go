// Command jubabench measures call latency against a Jubatus server.
//
//	jubabench -port 9199 -svc stat -method push -args '["key", 1.5]' -n 10000 -c 10
//	jubabench -fake -n 100000 -c 20 -r 5000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/rs/zerolog"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/client"
	"github.com/crow-misia/jubatus-go-client/metrics/prom"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/testutil"
	"github.com/crow-misia/jubatus-go-client/throttle"
	"github.com/crow-misia/jubatus-go-client/zlog"
)

var (
	host        string
	port        int
	svcName     string
	method      string
	argsJSON    string
	rpcNum      int
	clientNum   int
	callRate    float64
	timeoutSec  float64
	production  bool
	fake        bool
	metricsAddr string
	cpuprofile  string
)

func main() {
	flag.StringVar(&host, "host", rpc.DefaultHost, "Server host.")
	flag.IntVar(&port, "port", rpc.DefaultPort, "Server port.")
	flag.StringVar(&svcName, "svc", "stat", "Service.")
	flag.StringVar(&method, "method", "push", "Method (public name).")
	flag.StringVar(&argsJSON, "args", `["bench", 1.0]`, "Arguments as a JSON array.")
	flag.IntVar(&rpcNum, "n", 10000, "Total RPC number.")
	flag.IntVar(&clientNum, "c", 10, "Client number.")
	flag.Float64Var(&callRate, "r", 0, "Call rate limit per second. 0 for no limit.")
	flag.Float64Var(&timeoutSec, "t", 3, "RPC timeout in seconds.")
	flag.BoolVar(&production, "production", false, "Disable validation.")
	flag.BoolVar(&fake, "fake", false, "Bench against an in-process fake server.")
	flag.StringVar(&metricsAddr, "metrics", "", "Serve prometheus metrics on this address (e.g. :2112).")
	flag.StringVar(&cpuprofile, "cpu", "", "CPU profile file name.")
	flag.Parse()

	logger := zlog.DefaultZLogger.With().Str("component", "jubabench").Logger()

	var args []interface{}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		logger.Fatal().Err(err).Msg("Bad -args")
	}

	if fake {
		srv, err := testutil.NewServer(func(req *testutil.Request) (interface{}, interface{}) {
			return true, nil
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Start fake server failed")
		}
		defer srv.Close()
		host, port = srv.Host(), srv.Port()
		// The fake server replies true to everything.
		production = true
	}

	logger.Info().
		Str("addr", host).
		Int("port", port).
		Str("call", svcName+"."+method).
		Int("n", rpcNum).
		Int("c", clientNum).
		Float64("r", callRate).
		Float64("t", timeoutSec).
		Msg("Bench params")

	var mws []rpc.Middleware
	if callRate > 0 {
		bucket, err := throttle.NewBucket(callRate, int64(clientNum))
		if err != nil {
			logger.Fatal().Err(err).Msg("Bad -r")
		}
		mws = append(mws, throttle.WrapClient(bucket))
	}
	if metricsAddr != "" {
		reg := prom.NewRegistry()
		mws = append(mws, prom.NewClientObserver(reg).Middleware())
		go func() {
			if err := http.ListenAndServe(metricsAddr, prom.Handler(reg)); err != nil {
				logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			logger.Fatal().Err(err).Msg("Create CPU profile failed")
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal().Err(err).Msg("Start CPU profile failed")
		}
	}

	r, err := bench(&logger, benchParams{
		Config: rpc.Config{
			Host:           host,
			Port:           port,
			TimeoutSeconds: timeoutSec,
		},
		Service:     svcName,
		Method:      method,
		Args:        args,
		RPCNum:      rpcNum,
		ClientNum:   clientNum,
		Middlewares: mws,
		Production:  production,
	})
	if cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Bench failed")
	}

	logger.Info().
		Dur("elapse", r.Elapse).
		Int("succ", r.Succ).
		Int("err", r.Err).
		Msg("Done")
	for _, q := range []float64{10, 50, 75, 90, 99, 99.99, 99.999, 100} {
		logger.Info().
			Float64("percentile", q).
			Str("latency", time.Duration(r.Histogram.ValueAtQuantile(q)).String()).
			Msg("Latency HDR")
	}
}

type benchParams struct {
	Config      rpc.Config
	Service     string
	Method      string
	Args        []interface{}
	RPCNum      int
	ClientNum   int
	Middlewares []rpc.Middleware
	Production  bool
}

type benchResult struct {
	Elapse    time.Duration
	Succ      int
	Err       int
	Histogram *hdrhistogram.Histogram
}

func bench(logger *zerolog.Logger, p benchParams) (*benchResult, error) {
	if p.ClientNum <= 0 {
		p.ClientNum = 1
	}
	rpcNumPerClient := p.RPCNum / p.ClientNum
	if rpcNumPerClient <= 0 {
		rpcNumPerClient = 1
	}
	durations := make([]time.Duration, p.ClientNum*rpcNumPerClient)

	// One connection per client.
	clients := make([]*rpc.Service, 0, p.ClientNum)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	for i := 0; i < p.ClientNum; i++ {
		c, err := client.New(p.Service, p.Config,
			rpc.OptProduction(p.Production),
			rpc.OptMiddlewares(p.Middlewares...),
			rpc.OptLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}

	// Fail fast on bad arguments.
	if m := clients[0].Method(p.Method); m != nil {
		if err := m.ValidateArgs(p.Args).Err(jubatus.ValidationError, "%s.%s", p.Service, p.Method); err != nil {
			return nil, err
		}
	}

	timeout := time.Duration(p.Config.TimeoutSeconds * float64(time.Second))
	mu := &sync.Mutex{}
	r := &benchResult{}
	wg := &sync.WaitGroup{}
	wg.Add(p.ClientNum)

	start := time.Now()
	for i, c := range clients {
		go func(i int, c *rpc.Service) {
			defer wg.Done()

			// Filling durations[offset: offset+rpcNumPerClient]
			offset := i * rpcNumPerClient
			succCnt, errCnt := 0, 0
			for j := 0; j < rpcNumPerClient; j++ {
				ctx, cancel := context.Background(), context.CancelFunc(func() {})
				if timeout > 0 {
					ctx, cancel = context.WithTimeout(ctx, timeout)
				}

				start := time.Now()
				_, err := c.Call(ctx, p.Method, p.Args...)
				durations[offset+j] = time.Since(start)
				cancel()

				if err != nil {
					errCnt++
				} else {
					succCnt++
				}
			}

			mu.Lock()
			r.Succ += succCnt
			r.Err += errCnt
			mu.Unlock()
		}(i, c)
	}
	wg.Wait()
	r.Elapse = time.Since(start)

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	max := int64(durations[len(durations)-1])
	if max < 2 {
		max = 2
	}
	r.Histogram = hdrhistogram.New(1, max, 5)
	for _, d := range durations {
		r.Histogram.RecordValue(int64(d))
	}
	return r, nil
}
