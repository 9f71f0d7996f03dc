package login

import (
	"context"

	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/utils"
	"github.com/jrsteele09/go-homeserver-login/oauth2"
	"github.com/jrsteele09/go-homeserver-login/oauthmodel"
	"github.com/jrsteele09/go-homeserver-login/sessions"
)

// FinishOidcLogin completes the authorization code exchange for the session
// stored under msg.SessionID. The registry lock is not held while the
// connection talks to the server.
func (s *Service) FinishOidcLogin(ctx context.Context, msg FinishOidcLogin) OidcTokens {
	logger := s.logger.With().Str("flow", "finish_oidc_login").Str("session_id", msg.SessionID).Logger()
	logger.Debug().Msg("Received request")

	conn, ok := s.sessions.Connection(msg.SessionID)
	if !ok {
		logger.Warn().Msg("No session found")
		return OidcTokens{SessionID: msg.SessionID, Error: oauthmodel.ErrSessionNotFound.Error()}
	}

	meta, tokens, err := finishLogin(ctx, conn, msg.CallbackURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to finish OIDC login")
		return OidcTokens{SessionID: msg.SessionID, Error: TranslateError(err).Error()}
	}

	if !s.sessions.Advance(msg.SessionID, conn, sessions.StateAuthorized) {
		logger.Warn().Msg("Session was replaced while finishing login")
	}

	logger.Debug().Str("user_id", meta.UserID).Str("device_id", meta.DeviceID).Msg("Logged in")
	return OidcTokens{
		SessionID:    msg.SessionID,
		DeviceID:     meta.DeviceID,
		UserID:       meta.UserID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: utils.Value(tokens.RefreshToken),
	}
}

// finishLogin hands the callback to the connection and reads back the
// session. Identity and tokens are only valid together.
func finishLogin(ctx context.Context, conn homeserver.Connection, callbackURL string) (*homeserver.SessionMeta, *oauth2.SessionTokens, error) {
	callback, err := oauthmodel.ParseCallbackURL(callbackURL)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.FinishLogin(ctx, callback); err != nil {
		return nil, nil, err
	}

	meta := conn.SessionMeta()
	tokens := conn.SessionTokens()
	if meta == nil || tokens == nil {
		return nil, nil, oauthmodel.ErrCancelled
	}
	return meta, tokens, nil
}
