package transport

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Option is option in creating Client.
type Option func(*Client) error

// OptLogger sets logger.
func OptLogger(logger *zerolog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			nop := zerolog.Nop()
			logger = &nop
		}
		c.logger = logger.With().Str("component", "jubatus.transport.Client").Logger()
		return nil
	}
}

// OptTimeout sets the timeout of requests whose context has no deadline.
// 0 means waiting indefinitely.
func OptTimeout(t time.Duration) Option {
	return func(c *Client) error {
		if t < 0 {
			return errors.Errorf("OptTimeout got negative duration %s", t.String())
		}
		c.timeout = t
		return nil
	}
}
