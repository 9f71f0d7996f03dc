package login

// CreateConnection asks for a new session against a homeserver.
type CreateConnection struct {
	NameOrHomeserverURL string `json:"name_or_homeserver_url"`
}

// ConnectionCreated answers CreateConnection. SessionID is empty and Error is
// set when no connection could be built.
type ConnectionCreated struct {
	SessionID             string   `json:"session_id"`
	SupportsOidcLogin     bool     `json:"supports_oidc_login"`
	SupportedOidcPrompts  []string `json:"supported_oidc_prompts"`
	SupportsPasswordLogin bool     `json:"supports_password_login"`
	SupportsSsoLogin      bool     `json:"supports_sso_login"`
	SlidingSyncVersion    string   `json:"sliding_sync_version"`
	HomeserverURL         string   `json:"homeserver_url"`
	Error                 string   `json:"error"`
}

// RequestOidcURL asks for an OIDC authorization URL. Any session stored
// under SessionID is discarded and replaced by a fresh connection.
type RequestOidcURL struct {
	SessionID           string `json:"session_id"`
	NameOrHomeserverURL string `json:"name_or_homeserver_url"`
	ClientName          string `json:"client_name"`
	RedirectURI         string `json:"redirect_uri"`
	ClientURI           string `json:"client_uri"`
	LogoURI             string `json:"logo_uri"`
	TosURI              string `json:"tos_uri"`
	PolicyURI           string `json:"policy_uri"`
}

// OidcURL answers RequestOidcURL. Error is empty on success.
type OidcURL struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Error     string `json:"error"`
}

// FinishOidcLogin completes the authorization with the callback URL.
type FinishOidcLogin struct {
	SessionID   string `json:"session_id"`
	CallbackURL string `json:"callback_url"`
}

// OidcTokens answers FinishOidcLogin. On error every field except SessionID
// and Error is empty.
type OidcTokens struct {
	SessionID    string `json:"session_id"`
	DeviceID     string `json:"device_id"`
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Error        string `json:"error"`
}
