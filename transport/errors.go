package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned when the client has been closed, either by Close
	// or because the connection broke.
	ErrClosed = errors.New("transport.Client closed")

	// ErrMalformedFrame is returned when the peer sends something which is not
	// a msgpack-rpc message.
	ErrMalformedFrame = errors.New("transport.Client malformed frame")
)

// Well known error values sent by msgpack-rpc servers (including Jubatus).
const (
	RemoteNoMethod     = 1
	RemoteArgumentType = 2
)

// RemoteError is an error object sent by the server in a response.
type RemoteError struct {
	// MsgID is the id of the failed request.
	MsgID uint32

	// Value is the error object as decoded from the wire.
	Value interface{}
}

// Error implements error interface.
func (err *RemoteError) Error() string {
	switch v := err.Value.(type) {
	case int64:
		return fmt.Sprintf("remote error %d (%s)", v, remoteCodeText(v))
	case uint64:
		return fmt.Sprintf("remote error %d (%s)", v, remoteCodeText(int64(v)))
	case string:
		return "remote error: " + v
	default:
		return fmt.Sprintf("remote error: %v", v)
	}
}

func remoteCodeText(code int64) string {
	switch code {
	case RemoteNoMethod:
		return "no such method"
	case RemoteArgumentType:
		return "argument type error"
	default:
		return "unknown"
	}
}
