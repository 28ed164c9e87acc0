package rpc

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/schema"
	"github.com/crow-misia/jubatus-go-client/transport"
	"github.com/crow-misia/jubatus-go-client/validate"
)

// Service is a client of one service: a Base plus the method table
// synthesized from the service's merged schema.
type Service struct {
	*Base

	// Options.
	logger    zerolog.Logger
	validator *validate.Validator
	mws       []Middleware

	// Immutable fields.
	svcName  string
	methods  []*Method
	byName   map[string]*Method
	handlers map[*Method]Handler
}

// NewService synthesizes svc and binds it to base.
func NewService(svc *schema.ServiceSchema, base *Base, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		Base:      base,
		logger:    zerolog.Nop(),
		validator: validate.New(false),
		svcName:   svc.Name,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	methods, err := Synthesize(svc, s.validator)
	if err != nil {
		return nil, err
	}
	s.methods = methods
	s.byName = make(map[string]*Method, len(methods))
	s.handlers = make(map[*Method]Handler, len(methods))
	for _, m := range methods {
		s.byName[m.Name()] = m

		handler := s.request
		for i := len(s.mws) - 1; i >= 0; i-- {
			handler = s.mws[i](s.svcName, m, handler)
		}
		s.handlers[m] = handler
	}

	s.logger.Debug().
		Int("methods", len(methods)).
		Bool("production", s.validator.Production()).
		Msg("Service synthesized")
	return s, nil
}

// SvcName returns the service name.
func (s *Service) SvcName() string {
	return s.svcName
}

// Methods returns the method table in schema order.
func (s *Service) Methods() []*Method {
	return append([]*Method(nil), s.methods...)
}

// Method returns the method with the public name or nil if not found.
func (s *Service) Method(name string) *Method {
	return s.byName[name]
}

// Call calls method name and waits for the result.
func (s *Service) Call(ctx context.Context, name string, args ...interface{}) (*Result, error) {
	f, err := s.CallAsync(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return f.Result()
}

// CallAsync starts a call. The returned error is only a synchronous
// ValidationError; everything else is delivered by the Future.
func (s *Service) CallAsync(ctx context.Context, name string, args ...interface{}) (*Future, error) {
	f := newFuture()
	if err := s.dispatch(ctx, name, args, f.complete); err != nil {
		return nil, err
	}
	return f, nil
}

// CallWithCallback starts a call which completes by invoking cb exactly once
// from another goroutine. A synchronous ValidationError is returned instead
// and cb is not invoked.
func (s *Service) CallWithCallback(ctx context.Context, name string, args []interface{}, cb Callback) error {
	if cb == nil {
		return jubatus.Errorf(jubatus.ValidationError, "%s.%s: nil callback", s.svcName, name)
	}
	return s.dispatch(ctx, name, args, cb)
}

// Invoke keeps the trailing callback calling convention: when the last arg
// is a Callback (or a func with the same signature) it is removed and the call
// is callback style, returning a nil Future. Otherwise it is CallAsync.
func (s *Service) Invoke(ctx context.Context, name string, args ...interface{}) (*Future, error) {
	if n := len(args); n > 0 {
		var cb Callback
		switch last := args[n-1].(type) {
		case Callback:
			cb = last
		case func(error, *Result, uint32):
			cb = last
		}
		if cb != nil {
			return nil, s.CallWithCallback(ctx, name, args[:n-1], cb)
		}
	}
	return s.CallAsync(ctx, name, args...)
}

// dispatch is the single routine behind every entry point.
func (s *Service) dispatch(ctx context.Context, name string, args []interface{}, done Callback) error {
	m := s.byName[name]
	if m == nil {
		return jubatus.Errorf(jubatus.ValidationError, "%s: method %q not found", s.svcName, name)
	}

	if args == nil {
		args = []interface{}{}
	}
	if err := m.ValidateArgs(args).Err(jubatus.ValidationError, "%s.%s: invalid arguments", s.svcName, name); err != nil {
		return err
	}

	// Snapshot the target name now: later SetName must not affect this call.
	params := make([]interface{}, 0, len(args)+1)
	params = append(params, s.Name())
	params = append(params, args...)

	handler := s.handlers[m]
	go func() {
		reply, err := handler(ctx, m, params)
		if err != nil {
			done(s.transportError(m, reply.MsgID, err), nil, reply.MsgID)
			return
		}
		done(nil, &Result{MsgID: reply.MsgID, Raw: reply.Result}, reply.MsgID)
	}()
	return nil
}

// request is the innermost handler. Middlewares see its errors already
// classified: TransportError for wire failures, ContractViolation for a bad
// return value.
func (s *Service) request(ctx context.Context, m *Method, params []interface{}) (transport.Reply, error) {
	reply, err := s.Client().Request(ctx, m.RPCName(), params...)
	if err != nil {
		return reply, s.transportError(m, reply.MsgID, err)
	}
	if err := s.checkReturn(m, &Result{MsgID: reply.MsgID, Raw: reply.Result}); err != nil {
		return reply, err
	}
	return reply, nil
}

func (s *Service) checkReturn(m *Method, result *Result) error {
	if s.validator.Production() {
		return nil
	}

	var r validate.Result
	value, err := result.Value()
	if err != nil {
		r.Violations = []jubatus.Violation{{Path: "", Message: err.Error()}}
	} else {
		r = m.ValidateReturn(value)
	}
	if r.Valid {
		return nil
	}

	err = r.Err(jubatus.ContractViolation, "%s.%s: unexpected return value", s.svcName, m.Name())
	err.(*jubatus.Error).MsgID = result.MsgID
	s.logger.Warn().
		Str("method", m.RPCName()).
		Uint32("msgid", result.MsgID).
		Err(err).
		Msg("Contract violation")
	return err
}

func (s *Service) transportError(m *Method, msgID uint32, err error) error {
	if e, ok := err.(*jubatus.Error); ok {
		return e
	}
	e := jubatus.WrapError(jubatus.TransportError, err, "%s.%s", s.svcName, m.Name())
	e.MsgID = msgID
	return e
}
