package rpc

import (
	"context"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/transport"
)

var (
	// DefaultPort is the default port of Jubatus servers and proxies.
	DefaultPort = 9199

	// DefaultHost is the default host.
	DefaultHost = "localhost"
)

// Config is the normalized form of construction arguments.
type Config struct {
	// Port of the server, DefaultPort if 0.
	Port int

	// Host of the server, DefaultHost if empty.
	Host string

	// TimeoutSeconds of each request. 0 means no timeout.
	TimeoutSeconds float64

	// Transport is reused as is when set: nothing is dialed and closing the
	// client does not close it.
	Transport Transport

	// Name is the initial target name. Empty for standalone mode.
	Name string
}

// ConfigFromArgs normalizes the supported construction styles:
//
//	ConfigFromArgs(port, [host, [timeoutSeconds]])
//	ConfigFromArgs(Config{...}) or ConfigFromArgs(&Config{...})
//	ConfigFromArgs(transport)
//	ConfigFromArgs()
func ConfigFromArgs(args ...interface{}) (Config, error) {
	if len(args) == 0 {
		return Config{}, nil
	}

	var cfg Config
	switch first := args[0].(type) {
	case Transport:
		cfg.Transport = first
		return cfg, expectNoMore(args, 1)
	case Config:
		return first, expectNoMore(args, 1)
	case *Config:
		if first == nil {
			return cfg, expectNoMore(args, 1)
		}
		return *first, expectNoMore(args, 1)
	}

	port, ok := toInt(args[0])
	if !ok {
		return cfg, jubatus.Errorf(jubatus.ConfigurationError, "unsupported construction argument %T", args[0])
	}
	cfg.Port = port

	if len(args) > 1 {
		host, ok := args[1].(string)
		if !ok {
			return cfg, jubatus.Errorf(jubatus.ConfigurationError, "host must be string but got %T", args[1])
		}
		cfg.Host = host
	}
	if len(args) > 2 {
		timeout, ok := toFloat(args[2])
		if !ok {
			return cfg, jubatus.Errorf(jubatus.ConfigurationError, "timeoutSeconds must be a number but got %T", args[2])
		}
		cfg.TimeoutSeconds = timeout
	}
	return cfg, expectNoMore(args, 3)
}

func expectNoMore(args []interface{}, n int) error {
	if len(args) > n {
		return jubatus.Errorf(jubatus.ConfigurationError, "too many construction arguments: %d", len(args))
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Base holds what every client shares: the transport and the target name.
type Base struct {
	transport Transport
	owned     bool
	name      atomic.Value // string
}

// NewBase creates a Base from cfg. A new transport.Client is dialed unless
// cfg.Transport is set. opts are passed to transport.Dial.
func NewBase(ctx context.Context, cfg Config, opts ...transport.Option) (*Base, error) {
	if cfg.Transport != nil {
		return newBase(cfg.Transport, false, cfg.Name), nil
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, jubatus.Errorf(jubatus.ConfigurationError, "invalid port %d", cfg.Port)
	}
	if cfg.TimeoutSeconds < 0 {
		return nil, jubatus.Errorf(jubatus.ConfigurationError, "invalid timeoutSeconds %v", cfg.TimeoutSeconds)
	}

	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	opts = append([]transport.Option{transport.OptTimeout(timeout)}, opts...)
	c, err := transport.Dial(ctx, cfg.Host, cfg.Port, opts...)
	if err != nil {
		return nil, jubatus.WrapError(jubatus.TransportError, err, "connect %s:%d", cfg.Host, cfg.Port)
	}
	return newBase(c, true, cfg.Name), nil
}

func newBase(t Transport, owned bool, name string) *Base {
	b := &Base{
		transport: t,
		owned:     owned,
	}
	b.name.Store(name)
	return b
}

// Client returns the underlying transport. It can be used to close the
// connection explicitly.
func (b *Base) Client() Transport {
	return b.transport
}

// Name returns the target name: the name of the task in a coordinated
// cluster, or "" in standalone mode.
func (b *Base) Name() string {
	return b.name.Load().(string)
}

// SetName changes the target name. Calls already dispatched keep the name
// they were dispatched with.
func (b *Base) SetName(name string) {
	b.name.Store(name)
}

// Close closes the transport if it was created by NewBase. A transport passed
// in by the caller is left open.
func (b *Base) Close() error {
	if !b.owned {
		return nil
	}
	return b.transport.Close()
}
