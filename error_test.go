package jubatus

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert := assert.New(t)

	assert.False(ConfigurationError.Retryable())

	assert.False(ValidationError.Retryable())

	assert.False(ContractViolation.Retryable())

	assert.True(TransportError.Retryable())

	assert.Equal("ErrorCode(-1)", ErrorCode(-1).String())

}

func TestCodeOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(ErrorCode(0), CodeOf(nil))
	assert.Equal(UnknownError, CodeOf(errors.New("x")))

	err := WrapError(TransportError, context.DeadlineExceeded, "request %q", "get_status")
	assert.Equal(TransportError, CodeOf(err))
	assert.True(errors.Is(err, context.DeadlineExceeded))

	wrapped := Wrapf(err, "classifier")
	assert.True(IsCode(wrapped, TransportError))
	assert.False(IsCode(wrapped, ContractViolation))
}

func TestErrorString(t *testing.T) {
	assert := assert.New(t)

	err := Errorf(ValidationError, "train: invalid arguments")
	err.Violations = []Violation{
		{Path: "/0", Message: "expected array"},
	}
	assert.Equal("jubatus.Error(ValidationError: train: invalid arguments; /0: expected array)", err.Error())
}
