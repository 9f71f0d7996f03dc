// Package login runs the homeserver login flows: create a connection,
// request an OIDC authorization URL and finish the OIDC login.
//
// Each flow is a request/response pair. Service exposes them as methods and
// Run drives them from channels, one goroutine per flow. Responses of one
// flow are emitted in request order; there is no ordering between flows.
// Callers must wait for the RequestOidcURL response before sending
// FinishOidcLogin for the same session.
package login

import (
	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service coordinates the login flows over a shared session registry.
type Service struct {
	connector           homeserver.Connector
	sessions            *sessions.Registry
	staticRegistrations map[string]string
	logger              zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger sets the logger used by the flows.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStaticRegistrations sets the pre-registered client ids (homeserver or
// issuer URL to client id) offered with every authorization request.
func WithStaticRegistrations(registrations map[string]string) ServiceOption {
	return func(s *Service) {
		s.staticRegistrations = make(map[string]string, len(registrations))
		for issuer, clientID := range registrations {
			s.staticRegistrations[issuer] = clientID
		}
	}
}

// NewService initializes a Service with its required dependencies.
func NewService(connector homeserver.Connector, registry *sessions.Registry, options ...ServiceOption) (*Service, error) {
	if connector == nil {
		return nil, errors.Wrapf(errors.ErrMissingField, "[NewService] connector is required")
	}
	if registry == nil {
		return nil, errors.Wrapf(errors.ErrMissingField, "[NewService] session registry is required")
	}

	s := &Service{
		connector: connector,
		sessions:  registry,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}
