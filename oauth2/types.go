package oauth2

// ResponseType represents the OAuth 2.0 response type a client registers for.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Used in: Authorization Code Flow, the only flow a native homeserver client uses.
	// Example: /authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type declared in client metadata.
// Determines which token endpoint exchanges the registered client may perform.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Web authentication through an external browser or web view
	// Requires: At least one registered redirect URI
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// Registered implicitly alongside the authorization code grant.
	RefreshTokenGrant GrantType = "refresh_token"

	// DeviceCodeGrant is the device authorization grant (RFC 8628).
	// Used in: Logging in a device without a browser by scanning a code elsewhere
	DeviceCodeGrant GrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// ApplicationType is the kind of client being registered (OIDC Dynamic Registration).
type ApplicationType string

const (
	// NativeApplication is a desktop or mobile application.
	// Redirect URIs may use private-use URI schemes such as "uz.efael.app:/".
	NativeApplication ApplicationType = "native"
)

// TokenEndpointAuthMethodNone marks a public client authenticating with PKCE only.
const TokenEndpointAuthMethodNone = "none"

// Prompt is a hint to the authorization server about the desired user experience.
type Prompt string

const (
	// PromptCreate asks the server to show account registration.
	// Defined in: Initiating User Registration via OpenID Connect
	PromptCreate Prompt = "create"

	// PromptLogin asks the server to reauthenticate the user.
	PromptLogin Prompt = "login"

	// PromptConsent asks the server to solicit consent before returning to the client.
	PromptConsent Prompt = "consent"
)

// ParsePrompt maps a raw prompt value onto a Prompt. Unknown values are kept
// verbatim so they survive a round trip to the server.
func ParsePrompt(value string) Prompt {
	return Prompt(value)
}

func (p Prompt) String() string {
	return string(p)
}
