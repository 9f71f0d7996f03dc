package oauth2

// SessionTokens is the token pair issued to a device at the end of an
// authorization code exchange.
type SessionTokens struct {
	// AccessToken authorizes client-server API calls for the device.
	// Example: "mat_Zb2ZwBeMY0Bf9rBdICg9rndmuiJPhy_nwfSS2"
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Only present: When the server issues refresh tokens for the grant
	// Security: Should be stored securely, rotates on each use
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// Clone returns an independent copy of the token pair.
func (t *SessionTokens) Clone() *SessionTokens {
	if t == nil {
		return nil
	}
	c := *t
	if t.RefreshToken != nil {
		rt := *t.RefreshToken
		c.RefreshToken = &rt
	}
	return &c
}
