package oauthmodel

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/go-homeserver-login/oauth2"
)

// Localized is a human readable client metadata value with optional
// translations keyed by BCP 47 language tag.
type Localized[T any] struct {
	Value        T
	Translations map[string]T
}

// NewLocalized returns a single-locale value with no translations.
func NewLocalized[T any](value T) *Localized[T] {
	return &Localized[T]{Value: value}
}

// Grant is one OAuth 2.0 grant the client registers for.
type Grant struct {
	Type oauth2.GrantType

	// RedirectURIs are the callback targets of the authorization code grant.
	// Only used with: oauth2.AuthorizationCodeGrant
	RedirectURIs []*url.URL
}

// ClientMetadata is the client registration request (RFC 7591) submitted to
// the authorization server when the client is not statically registered.
type ClientMetadata struct {
	// ApplicationType is always "native" for this client.
	ApplicationType oauth2.ApplicationType

	// Grants lists the grants requested by the client.
	// Example: authorization code (with redirect URIs) + device code
	Grants []Grant

	// ClientURI is a page describing the client.
	// Required: Yes
	// Example: "https://efael.uz"
	ClientURI Localized[*url.URL]

	// The following fields are shown by the server when asking for consent.
	ClientName *Localized[string]
	LogoURI    *Localized[*url.URL]
	PolicyURI  *Localized[*url.URL]
	TosURI     *Localized[*url.URL]
}

// RedirectURIs returns the redirect URIs of every authorization code grant.
func (m *ClientMetadata) RedirectURIs() []*url.URL {
	var uris []*url.URL
	for _, g := range m.Grants {
		if g.Type == oauth2.AuthorizationCodeGrant {
			uris = append(uris, g.RedirectURIs...)
		}
	}
	return uris
}

// GrantTypes returns the grant_types field. The authorization code grant
// implies the refresh token grant.
func (m *ClientMetadata) GrantTypes() []oauth2.GrantType {
	var types []oauth2.GrantType
	for _, g := range m.Grants {
		types = append(types, g.Type)
		if g.Type == oauth2.AuthorizationCodeGrant {
			types = append(types, oauth2.RefreshTokenGrant)
		}
	}
	return types
}

// ResponseTypes returns the response_types field.
func (m *ClientMetadata) ResponseTypes() []oauth2.ResponseType {
	for _, g := range m.Grants {
		if g.Type == oauth2.AuthorizationCodeGrant {
			return []oauth2.ResponseType{oauth2.CodeResponseType}
		}
	}
	return nil
}

// MarshalJSON flattens the metadata into the RFC 7591 wire format, encoding
// translations as "<field>#<language>" members.
func (m ClientMetadata) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"application_type":           m.ApplicationType,
		"grant_types":                m.GrantTypes(),
		"token_endpoint_auth_method": oauth2.TokenEndpointAuthMethodNone,
	}
	if redirects := m.RedirectURIs(); len(redirects) > 0 {
		out["redirect_uris"] = urlStrings(redirects)
	}
	if responseTypes := m.ResponseTypes(); len(responseTypes) > 0 {
		out["response_types"] = responseTypes
	}

	putLocalized(out, "client_uri", &m.ClientURI, urlString)
	putLocalized(out, "client_name", m.ClientName, func(s string) string { return s })
	putLocalized(out, "logo_uri", m.LogoURI, urlString)
	putLocalized(out, "policy_uri", m.PolicyURI, urlString)
	putLocalized(out, "tos_uri", m.TosURI, urlString)

	return json.Marshal(out)
}

func putLocalized[T any](out map[string]any, field string, l *Localized[T], format func(T) string) {
	if l == nil {
		return
	}
	out[field] = format(l.Value)
	langs := make([]string, 0, len(l.Translations))
	for lang := range l.Translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		out[field+"#"+lang] = format(l.Translations[lang])
	}
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func urlStrings(uris []*url.URL) []string {
	s := make([]string, 0, len(uris))
	for _, u := range uris {
		s = append(s, u.String())
	}
	return s
}

// RegistrationData is what the connection layer needs to obtain a client id:
// metadata for dynamic registration and any pre-shared client ids.
type RegistrationData struct {
	Metadata *ClientMetadata

	// StaticRegistrations maps a normalized homeserver or issuer URL to a
	// client id registered out of band.
	StaticRegistrations map[string]string
}

// StaticClientID returns the pre-shared client id registered for the first
// matching candidate URL.
func (r *RegistrationData) StaticClientID(candidates ...string) (string, bool) {
	if r == nil || len(r.StaticRegistrations) == 0 {
		return "", false
	}
	for _, c := range candidates {
		if id, ok := r.StaticRegistrations[normalizeIssuer(c)]; ok {
			return id, true
		}
	}
	return "", false
}

func normalizeIssuer(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}
