// Package throttle limits the call rate of clients with a token bucket.
package throttle

import (
	"context"
	"time"

	"github.com/juju/ratelimit"
	"github.com/pkg/errors"

	"github.com/crow-misia/jubatus-go-client"
	"github.com/crow-misia/jubatus-go-client/rpc"
	"github.com/crow-misia/jubatus-go-client/transport"
)

var (
	// ErrThrottled is the cause of the TransportError returned when a call can
	// not get a token before its context deadline.
	ErrThrottled = errors.New("throttle: rate limit exceeded")
)

// NewBucket creates a bucket filled at rate tokens per second and holding
// at most burst tokens.
func NewBucket(rate float64, burst int64) (*ratelimit.Bucket, error) {
	if rate <= 0 {
		return nil, errors.Errorf("throttle: rate must be positive but got %v", rate)
	}
	if burst <= 0 {
		return nil, errors.Errorf("throttle: burst must be positive but got %d", burst)
	}
	return ratelimit.NewBucketWithRate(rate, burst), nil
}

// WrapClient makes each call take a token from bucket before it is sent.
// The bucket can be shared between clients to limit them together.
//
// When ctx has a deadline and no token will be available before it, the call
// fails immediately without consuming a token. Otherwise it waits for the
// token or for ctx to be done.
func WrapClient(bucket *ratelimit.Bucket) rpc.Middleware {
	return func(svcName string, method *rpc.Method, handler rpc.Handler) rpc.Handler {
		return func(ctx context.Context, m *rpc.Method, params []interface{}) (transport.Reply, error) {
			if err := wait(ctx, bucket); err != nil {
				return transport.Reply{}, jubatus.WrapError(jubatus.TransportError, err, "%s.%s", svcName, m.Name())
			}
			return handler(ctx, m, params)
		}
	}
}

func wait(ctx context.Context, bucket *ratelimit.Bucket) error {
	var d time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		var ok bool
		d, ok = bucket.TakeMaxDuration(1, time.Until(deadline))
		if !ok {
			return ErrThrottled
		}
	} else {
		d = bucket.Take(1)
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
