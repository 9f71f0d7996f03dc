package matrix

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/oauth2"
	"github.com/jrsteele09/go-homeserver-login/oauthmodel"
	xoauth2 "golang.org/x/oauth2"
)

const (
	scopeClientAPI    = "urn:matrix:org.matrix.msc2967.client:api:*"
	scopeDevicePrefix = "urn:matrix:org.matrix.msc2967.client:device:"

	deviceIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	deviceIDLength   = 10
	stateLength      = 16

	errorAccessDenied = "access_denied"
)

var (
	errNoAuthorization = errors.New("no authorization in progress")
	errStateMismatch   = errors.New("state does not match the authorization request")
	errMissingCode     = errors.New("callback carries no authorization code")
	errNoRegistration  = errors.New("no client registration data")
)

// pendingAuthorization is the state of one authorization attempt between
// AuthorizationURL and FinishLogin.
type pendingAuthorization struct {
	config      *xoauth2.Config
	issuer      string
	redirectURI *url.URL
	state       string
	verifier    string
	deviceID    string
}

// AuthorizationURL builds a PKCE authorization code URL. A new call replaces
// any attempt that has not been finished.
func (c *Client) AuthorizationURL(ctx context.Context, req homeserver.AuthorizationRequest) (*homeserver.AuthorizationData, error) {
	if req.RedirectURI == nil {
		return nil, errors.Wrapf(errors.ErrMissingField, "[Client.AuthorizationURL] redirect URI")
	}

	metadata, err := c.ServerMetadata(ctx)
	if err != nil {
		return nil, err
	}
	clientID, err := c.clientID(ctx, metadata, req.Registration)
	if err != nil {
		return nil, err
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		if deviceID, err = generateDeviceID(); err != nil {
			return nil, errors.Wrapf(err, "[Client.AuthorizationURL] generate device id")
		}
	}

	config := &xoauth2.Config{
		ClientID: clientID,
		Endpoint: xoauth2.Endpoint{
			AuthURL:   metadata.AuthorizationEndpoint,
			TokenURL:  metadata.TokenEndpoint,
			AuthStyle: xoauth2.AuthStyleInParams,
		},
		RedirectURL: req.RedirectURI.String(),
		Scopes:      []string{scopeClientAPI, scopeDevicePrefix + deviceID},
	}

	state, err := generateRandomString(stateLength)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.AuthorizationURL] generate state")
	}
	verifier := xoauth2.GenerateVerifier()

	opts := []xoauth2.AuthCodeOption{xoauth2.S256ChallengeOption(verifier)}
	if len(req.Prompt) > 0 {
		opts = append(opts, xoauth2.SetAuthURLParam("prompt", joinPrompts(req.Prompt)))
	}
	if req.LoginHint != "" {
		opts = append(opts, xoauth2.SetAuthURLParam("login_hint", req.LoginHint))
	}

	authURL, err := url.Parse(config.AuthCodeURL(state, opts...))
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.AuthorizationURL] parse authorization URL")
	}

	redirect := *req.RedirectURI
	c.mu.Lock()
	c.pending = &pendingAuthorization{
		config:      config,
		issuer:      metadata.Issuer,
		redirectURI: &redirect,
		state:       state,
		verifier:    verifier,
		deviceID:    deviceID,
	}
	c.mu.Unlock()

	return &homeserver.AuthorizationData{URL: authURL, State: state}, nil
}

// clientID prefers a static registration for the issuer or homeserver and
// falls back to dynamic client registration.
func (c *Client) clientID(ctx context.Context, metadata *homeserver.ServerMetadata, registration *oauthmodel.RegistrationData) (string, error) {
	if registration == nil {
		return "", homeserver.NewOAuthError(homeserver.KindClientRegistration, errNoRegistration)
	}
	if id, ok := registration.StaticClientID(metadata.Issuer, c.Homeserver()); ok {
		return id, nil
	}
	if registration.Metadata == nil {
		return "", homeserver.NewOAuthError(homeserver.KindClientRegistration, errNoRegistration)
	}
	if metadata.RegistrationEndpoint == "" {
		return "", homeserver.NewOAuthError(homeserver.KindClientRegistration,
			errors.Wrapf(errors.ErrUnsupported, "dynamic client registration at %s", metadata.Issuer))
	}

	resp, err := c.connector.registerClient(ctx, metadata.RegistrationEndpoint, registration.Metadata)
	if err != nil {
		return "", homeserver.NewOAuthError(homeserver.KindClientRegistration, err)
	}
	c.connector.logger.Debug().Str("issuer", metadata.Issuer).Str("client_id", resp.ClientID).Msg("Registered OAuth client")
	return resp.ClientID, nil
}

// FinishLogin validates the callback against the pending attempt, exchanges
// the code and resolves the session identity.
func (c *Client) FinishLogin(ctx context.Context, callback *url.URL) error {
	if callback == nil {
		return errors.Wrapf(errors.ErrMissingField, "[Client.FinishLogin] callback URL")
	}

	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil {
		return homeserver.NewOAuthError(homeserver.KindInvalidState, errNoAuthorization)
	}

	if !sameRedirect(callback, pending.redirectURI) {
		return homeserver.NewOAuthError(homeserver.KindRedirectURIMismatch,
			fmt.Errorf("callback %s does not match redirect URI %s", stripQuery(callback), pending.redirectURI))
	}

	query := callback.Query()
	if query.Get("state") != pending.state {
		return homeserver.NewOAuthError(homeserver.KindInvalidState, errStateMismatch)
	}
	if code := query.Get("error"); code != "" {
		err := fmt.Errorf("%s: %s", code, query.Get("error_description"))
		if code == errorAccessDenied {
			return homeserver.NewOAuthError(homeserver.KindCancelled, err)
		}
		return homeserver.NewOAuthError(homeserver.KindAuthorizationCode, err)
	}
	code := query.Get("code")
	if code == "" {
		return homeserver.NewOAuthError(homeserver.KindAuthorizationCode, errMissingCode)
	}

	token, err := pending.config.Exchange(c.oidcContext(ctx), code, xoauth2.VerifierOption(pending.verifier))
	if err != nil {
		return homeserver.NewOAuthError(homeserver.KindTokenExchange, err)
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		subject, err := idTokenSubject(rawIDToken, pending.issuer)
		if err != nil {
			return homeserver.NewOAuthError(homeserver.KindTokenExchange, err)
		}
		c.connector.logger.Debug().Str("sub", subject).Msg("ID token accepted")
	}

	identity, err := c.whoami(ctx, token.AccessToken)
	if err != nil {
		return err
	}
	deviceID := identity.DeviceID
	if deviceID == "" {
		deviceID = pending.deviceID
	}

	tokens := &oauth2.SessionTokens{AccessToken: token.AccessToken}
	if token.RefreshToken != "" {
		refreshToken := token.RefreshToken
		tokens.RefreshToken = &refreshToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == pending {
		c.pending = nil
	}
	c.meta = &homeserver.SessionMeta{UserID: identity.UserID, DeviceID: deviceID}
	c.tokens = tokens
	return nil
}

// idTokenSubject checks the issuer of an ID token and returns its subject.
// The signature is not verified: the token arrives directly from the token
// endpoint over TLS.
func idTokenSubject(raw, issuer string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", errors.Wrapf(err, "parse id_token")
	}
	iss, err := claims.GetIssuer()
	if err != nil {
		return "", errors.Wrapf(err, "id_token iss")
	}
	if normalize(iss) != normalize(issuer) {
		return "", fmt.Errorf("id_token issuer %q does not match %q", iss, issuer)
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return "", errors.Wrapf(err, "id_token sub")
	}
	return subject, nil
}

func sameRedirect(callback, redirect *url.URL) bool {
	return strings.EqualFold(callback.Scheme, redirect.Scheme) &&
		callback.Opaque == redirect.Opaque &&
		strings.EqualFold(callback.Host, redirect.Host) &&
		normalize(callback.Path) == normalize(redirect.Path)
}

func stripQuery(u *url.URL) *url.URL {
	stripped := *u
	stripped.RawQuery = ""
	stripped.Fragment = ""
	return &stripped
}

func normalize(s string) string {
	return strings.TrimSuffix(s, "/")
}

func joinPrompts(prompts []oauth2.Prompt) string {
	values := make([]string, len(prompts))
	for i, p := range prompts {
		values[i] = p.String()
	}
	return strings.Join(values, " ")
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateDeviceID() (string, error) {
	b := make([]byte, deviceIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = deviceIDAlphabet[int(b[i])%len(deviceIDAlphabet)]
	}
	return string(b), nil
}
