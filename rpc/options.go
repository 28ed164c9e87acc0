package rpc

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/crow-misia/jubatus-go-client/validate"
)

// ServiceOption is option in creating Service.
type ServiceOption func(*Service) error

// OptProduction sets the production switch: true disables validation of
// both arguments and return values. Default false.
func OptProduction(production bool) ServiceOption {
	return func(s *Service) error {
		s.validator = validate.New(production)
		return nil
	}
}

// OptValidator sets the validator, e.g. to share one between services.
func OptValidator(v *validate.Validator) ServiceOption {
	return func(s *Service) error {
		if v == nil {
			return errors.New("OptValidator got nil validator")
		}
		s.validator = v
		return nil
	}
}

// OptMiddlewares appends middlewares. The first one is the outermost.
func OptMiddlewares(mws ...Middleware) ServiceOption {
	return func(s *Service) error {
		for _, mw := range mws {
			if mw == nil {
				return errors.New("OptMiddlewares got nil middleware")
			}
		}
		s.mws = append(s.mws, mws...)
		return nil
	}
}

// OptLogger sets logger.
func OptLogger(logger *zerolog.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			nop := zerolog.Nop()
			logger = &nop
		}
		s.logger = logger.With().Str("component", "jubatus.rpc.Service").Str("svc", s.svcName).Logger()
		return nil
	}
}
