package rpc

import (
	"context"

	"github.com/ugorji/go/codec"

	"github.com/crow-misia/jubatus-go-client/transport"
)

// Result is the successful result of a call.
type Result struct {
	// MsgID is the correlation identifier of the call.
	MsgID uint32

	// Raw is the msgpack encoded return value.
	Raw codec.Raw
}

// Decode decodes the return value into v (a pointer), e.g. *[]types.EstimateResult.
func (r *Result) Decode(v interface{}) error {
	return transport.Unmarshal(r.Raw, v)
}

// Value decodes the return value into its generic form.
func (r *Result) Value() (interface{}, error) {
	var v interface{}
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Callback is the completion handler of callback style calls. Exactly one of
// err and result is nil. msgID is 0 if the request never reached the wire.
type Callback func(err error, result *Result, msgID uint32)

// Future is the pending result of an asynchronous call.
type Future struct {
	done   chan struct{}
	result *Result
	msgID  uint32
	err    error
}

func newFuture() *Future {
	return &Future{
		done: make(chan struct{}),
	}
}

func (f *Future) complete(err error, result *Result, msgID uint32) {
	f.err = err
	f.result = result
	f.msgID = msgID
	close(f.done)
}

// Done is closed when the call completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the call completes.
func (f *Future) Result() (*Result, error) {
	<-f.done
	return f.result, f.err
}

// Wait is like Result but gives up when ctx is done. Giving up does not
// cancel the call.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MsgID returns the correlation identifier. Only meaningful after Done.
func (f *Future) MsgID() uint32 {
	<-f.done
	return f.msgID
}
