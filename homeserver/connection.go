// Package homeserver defines the boundary between the login core and the
// homeserver protocol implementation.
//
// A Connector resolves a server name or homeserver URL into a Connection.
// A Connection exposes login capability discovery and the OAuth 2.0
// authorization code flow: build an authorization URL, complete the callback,
// then read back the session identity and tokens.
package homeserver

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-homeserver-login/oauth2"
	"github.com/jrsteele09/go-homeserver-login/oauthmodel"
)

// Connector builds connections to homeservers.
type Connector interface {
	// Connect resolves nameOrHomeserverURL. Failures are reported as
	// *ClientBuildError.
	Connect(ctx context.Context, nameOrHomeserverURL string) (Connection, error)
}

// Connection is a live handle to one homeserver. It carries the OAuth state
// of at most one authorization attempt at a time.
type Connection interface {
	// Homeserver returns the resolved homeserver base URL.
	Homeserver() string

	// ServerMetadata discovers the authorization server metadata.
	ServerMetadata(ctx context.Context) (*ServerMetadata, error)

	// LoginTypes lists the legacy login flows offered by the homeserver.
	LoginTypes(ctx context.Context) ([]LoginType, error)

	// SlidingSyncVersion reports the sliding sync support detected when the
	// connection was built.
	SlidingSyncVersion() SlidingSyncVersion

	// AuthorizationURL starts an authorization attempt and returns the URL
	// the user must open.
	AuthorizationURL(ctx context.Context, req AuthorizationRequest) (*AuthorizationData, error)

	// FinishLogin completes the attempt with the callback URL returned by
	// the user's web authentication.
	FinishLogin(ctx context.Context, callback *url.URL) error

	// SessionMeta returns the identity of the logged in device, or nil.
	SessionMeta() *SessionMeta

	// SessionTokens returns the issued token pair, or nil.
	SessionTokens() *oauth2.SessionTokens
}

// ServerMetadata is the subset of the authorization server metadata used by
// the login flows.
type ServerMetadata struct {
	Issuer                      string
	AuthorizationEndpoint       string
	TokenEndpoint               string
	RegistrationEndpoint        string
	DeviceAuthorizationEndpoint string
	RevocationEndpoint          string
	PromptValuesSupported       []oauth2.Prompt
}

// LoginType is one entry of the homeserver's /login flows.
type LoginType string

const (
	LoginTypePassword LoginType = "m.login.password"
	LoginTypeSSO      LoginType = "m.login.sso"
)

// SlidingSyncVersion is the sliding sync protocol the homeserver speaks.
type SlidingSyncVersion string

const (
	SlidingSyncNone   SlidingSyncVersion = "none"
	SlidingSyncNative SlidingSyncVersion = "native"
)

// AuthorizationRequest parameterizes one authorization URL.
type AuthorizationRequest struct {
	// RedirectURI receives the authorization response.
	RedirectURI *url.URL

	// Registration is used to obtain a client id for the server.
	Registration *oauthmodel.RegistrationData

	// Prompt is sent as the prompt parameter when not empty.
	// Example: []oauth2.Prompt{oauth2.PromptConsent}
	Prompt []oauth2.Prompt

	// LoginHint pre-fills the login form. Empty means no hint.
	LoginHint string

	// DeviceID reuses an existing device. Empty means a new one is generated.
	DeviceID string
}

// AuthorizationData is the result of AuthorizationURL.
type AuthorizationData struct {
	URL   *url.URL
	State string
}

// SessionMeta identifies a logged in device.
type SessionMeta struct {
	UserID   string
	DeviceID string
}
