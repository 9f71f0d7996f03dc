package login

import (
	"context"

	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/oauth2"
)

// HomeserverLoginDetails summarizes the login capabilities of a homeserver.
type HomeserverLoginDetails struct {
	URL                   string
	SlidingSyncVersion    homeserver.SlidingSyncVersion
	SupportsOidcLogin     bool
	SupportedOidcPrompts  []oauth2.Prompt
	SupportsSsoLogin      bool
	SupportsPasswordLogin bool
}

// CreateConnection builds a connection, discovers its login capabilities and
// registers it as a new session. A connection build failure is answered with
// an empty SessionID and the failure in Error.
func (s *Service) CreateConnection(ctx context.Context, msg CreateConnection) ConnectionCreated {
	logger := s.logger.With().Str("flow", "create_connection").Str("homeserver", msg.NameOrHomeserverURL).Logger()
	logger.Debug().Msg("Received request")

	conn, err := s.connector.Connect(ctx, msg.NameOrHomeserverURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build homeserver connection")
		return ConnectionCreated{Error: TranslateError(err).Error()}
	}

	details := s.homeserverLoginDetails(ctx, conn)
	id := s.sessions.Insert(conn)
	logger.Debug().Str("session_id", id).Bool("oidc", details.SupportsOidcLogin).Msg("Session created")

	prompts := make([]string, 0, len(details.SupportedOidcPrompts))
	for _, p := range details.SupportedOidcPrompts {
		prompts = append(prompts, p.String())
	}
	return ConnectionCreated{
		SessionID:             id,
		SupportsOidcLogin:     details.SupportsOidcLogin,
		SupportedOidcPrompts:  prompts,
		SupportsPasswordLogin: details.SupportsPasswordLogin,
		SupportsSsoLogin:      details.SupportsSsoLogin,
		SlidingSyncVersion:    string(details.SlidingSyncVersion),
		HomeserverURL:         details.URL,
	}
}

// homeserverLoginDetails never fails: a discovery error leaves the matching
// capability unset.
func (s *Service) homeserverLoginDetails(ctx context.Context, conn homeserver.Connection) HomeserverLoginDetails {
	details := HomeserverLoginDetails{
		URL:                conn.Homeserver(),
		SlidingSyncVersion: conn.SlidingSyncVersion(),
	}

	metadata, err := conn.ServerMetadata(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Str("homeserver", details.URL).Msg("Failed to fetch OIDC provider metadata")
	} else {
		details.SupportsOidcLogin = true
		details.SupportedOidcPrompts = metadata.PromptValuesSupported
	}

	loginTypes, err := conn.LoginTypes(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Str("homeserver", details.URL).Msg("Failed to fetch login types")
	}
	for _, lt := range loginTypes {
		switch lt {
		case homeserver.LoginTypePassword:
			details.SupportsPasswordLogin = true
		case homeserver.LoginTypeSSO:
			details.SupportsSsoLogin = true
		}
	}

	if details.SlidingSyncVersion == "" {
		details.SlidingSyncVersion = homeserver.SlidingSyncNone
	}
	return details
}
