package jubatus

import (
	"strconv"
)

// ErrorCode describes the reason of Error.
//
// Range -32768 ~ -32000 are reserved (like json-rpc).
type ErrorCode int16

const (
	// UnknownError is reported by CodeOf for errors not produced by this module.
	UnknownError ErrorCode = -32000

	// ConfigurationError is fatal at startup, for example:
	//   - The common schema is missing.
	//   - A method name is duplicated within one schema.
	//   - A schema fragment can't be compiled.
	//   - Construction arguments are of an unknown shape.
	ConfigurationError ErrorCode = -32700

	// ValidationError is a programmer error detected before dispatch: unknown
	// method, wrong arity or wrong argument types. Never retried.
	ValidationError ErrorCode = -32600

	// ContractViolation is returned when the server replied successfully but
	// the reply does not conform to the declared return schema.
	ContractViolation ErrorCode = -32500

	// TransportError covers network failure, remote side error and timeout.
	TransportError ErrorCode = -32300
)

// Retryable returns true when the caller may reasonably try again.
// Nothing in this module retries by itself.
func (ec ErrorCode) Retryable() bool {
	return ec == TransportError
}

func (ec ErrorCode) String() string {
	switch ec {
	case UnknownError:
		return "UnknownError"
	case ConfigurationError:
		return "ConfigurationError"
	case ValidationError:
		return "ValidationError"
	case ContractViolation:
		return "ContractViolation"
	case TransportError:
		return "TransportError"
	}
	return "ErrorCode(" + strconv.Itoa(int(ec)) + ")"
}
