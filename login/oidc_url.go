package login

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/internal/utils"
	"github.com/jrsteele09/go-homeserver-login/oauth2"
	"github.com/jrsteele09/go-homeserver-login/oauthmodel"
	"github.com/jrsteele09/go-homeserver-login/sessions"
)

// RequestOidcURL discards the session stored under msg.SessionID, builds a
// fresh connection and asks it for an authorization URL. Consent is always
// prompted for. The new connection is stored only on success. Empty
// client_name, logo_uri, tos_uri and policy_uri are treated as absent rather
// than malformed. A blank but non-empty session id is rejected before any
// connection is made.
func (s *Service) RequestOidcURL(ctx context.Context, msg RequestOidcURL) OidcURL {
	logger := s.logger.With().Str("flow", "request_oidc_url").Str("session_id", msg.SessionID).Logger()
	logger.Debug().Str("homeserver", msg.NameOrHomeserverURL).Msg("Received request")

	if msg.SessionID != "" && strings.TrimSpace(msg.SessionID) == "" {
		err := errors.Wrapf(errors.ErrMissingField, "[Service.RequestOidcURL] session id")
		logger.Warn().Err(err).Msg("Rejected request")
		return OidcURL{SessionID: msg.SessionID, Error: TranslateError(err).Error()}
	}

	if msg.SessionID != "" && s.sessions.Remove(msg.SessionID) {
		logger.Debug().Msg("Discarded previous session")
	}

	conn, data, err := s.oidcURL(ctx, msg)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get OIDC authorization URL")
		return OidcURL{SessionID: msg.SessionID, Error: TranslateError(err).Error()}
	}

	id := msg.SessionID
	if id == "" {
		id = s.sessions.Insert(conn)
		s.sessions.Advance(id, conn, sessions.StateAuthorizationRequested)
	} else if err := s.sessions.Store(id, conn, sessions.StateAuthorizationRequested); err != nil {
		logger.Error().Err(err).Msg("Failed to store session")
		return OidcURL{SessionID: msg.SessionID, Error: TranslateError(err).Error()}
	}

	logger.Debug().Str("session_id", id).Msg("Issued OIDC authorization URL")
	return OidcURL{SessionID: id, URL: data.URL.String()}
}

func (s *Service) oidcURL(ctx context.Context, msg RequestOidcURL) (homeserver.Connection, *homeserver.AuthorizationData, error) {
	conn, err := s.connector.Connect(ctx, msg.NameOrHomeserverURL)
	if err != nil {
		return nil, nil, err
	}

	cfg := s.flowConfig(msg)
	registration, err := cfg.RegistrationData()
	if err != nil {
		return nil, nil, err
	}
	redirectURI, err := cfg.RedirectURL()
	if err != nil {
		return nil, nil, err
	}

	data, err := conn.AuthorizationURL(ctx, homeserver.AuthorizationRequest{
		RedirectURI:  redirectURI,
		Registration: registration,
		Prompt:       []oauth2.Prompt{oauth2.PromptConsent},
	})
	if err != nil {
		return nil, nil, err
	}
	return conn, data, nil
}

func (s *Service) flowConfig(msg RequestOidcURL) *oauthmodel.OidcFlowConfig {
	return &oauthmodel.OidcFlowConfig{
		ClientName:          utils.OptionalString(msg.ClientName),
		RedirectURI:         msg.RedirectURI,
		ClientURI:           msg.ClientURI,
		LogoURI:             utils.OptionalString(msg.LogoURI),
		TosURI:              utils.OptionalString(msg.TosURI),
		PolicyURI:           utils.OptionalString(msg.PolicyURI),
		StaticRegistrations: s.staticRegistrations,
	}
}
