package oauthmodel

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-homeserver-login/oauth2"
	"github.com/rs/zerolog/log"
)

// OidcFlowConfig holds the client metadata shown to the user during a single
// OIDC authorization attempt. It is built per request and not modified after.
type OidcFlowConfig struct {
	// ClientName is shown by the authorization server on the consent screen.
	// Required: No
	// Example: "Efael"
	ClientName *string

	// RedirectURI receives the authorization response.
	// Required: Yes
	// Example: "uz.efael.app:/" (private-use scheme for native apps)
	RedirectURI string

	// ClientURI is a page with information about the client.
	// Required: Yes
	// Example: "https://efael.uz"
	ClientURI string

	// Optional display URIs. A malformed value invalidates the whole config.
	LogoURI   *string
	TosURI    *string
	PolicyURI *string

	// StaticRegistrations maps homeserver or issuer URLs to client ids for
	// servers that do not support dynamic client registration.
	StaticRegistrations map[string]string
}

// RedirectURL parses the configured redirect URI.
func (c *OidcFlowConfig) RedirectURL() (*url.URL, error) {
	u, err := ParseURI(c.RedirectURI)
	if err != nil {
		return nil, ErrMetadataInvalid
	}
	return u, nil
}

// ClientMetadata builds the dynamic registration request. It fails with
// ErrMetadataInvalid if any configured URI is malformed.
func (c *OidcFlowConfig) ClientMetadata() (*ClientMetadata, error) {
	redirectURI, err := c.RedirectURL()
	if err != nil {
		return nil, err
	}
	clientURI, err := localizedURL(c.ClientURI)
	if err != nil {
		return nil, err
	}
	logoURI, err := optionalLocalizedURL(c.LogoURI)
	if err != nil {
		return nil, err
	}
	policyURI, err := optionalLocalizedURL(c.PolicyURI)
	if err != nil {
		return nil, err
	}
	tosURI, err := optionalLocalizedURL(c.TosURI)
	if err != nil {
		return nil, err
	}

	var clientName *Localized[string]
	if c.ClientName != nil {
		clientName = NewLocalized(*c.ClientName)
	}

	return &ClientMetadata{
		ApplicationType: oauth2.NativeApplication,
		Grants: []Grant{
			{Type: oauth2.AuthorizationCodeGrant, RedirectURIs: []*url.URL{redirectURI}},
			{Type: oauth2.DeviceCodeGrant},
		},
		ClientURI:  *clientURI,
		ClientName: clientName,
		LogoURI:    logoURI,
		PolicyURI:  policyURI,
		TosURI:     tosURI,
	}, nil
}

// RegistrationData wraps the client metadata together with the static
// registrations. Static registration keys that do not parse are skipped.
func (c *OidcFlowConfig) RegistrationData() (*RegistrationData, error) {
	metadata, err := c.ClientMetadata()
	if err != nil {
		return nil, err
	}

	data := &RegistrationData{Metadata: metadata}
	if len(c.StaticRegistrations) == 0 {
		return data, nil
	}

	data.StaticRegistrations = make(map[string]string, len(c.StaticRegistrations))
	for issuer, clientID := range c.StaticRegistrations {
		u, err := ParseURI(issuer)
		if err != nil {
			log.Warn().Str("issuer", issuer).Msg("Skipping static registration with unparsable issuer")
			continue
		}
		data.StaticRegistrations[normalizeIssuer(u.String())] = clientID
	}
	return data, nil
}

// ParseURI parses an absolute URI. Relative references and strings without
// a scheme are rejected.
func ParseURI(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errMissingScheme}
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errMissingHost}
	}
	return u, nil
}

// ParseCallbackURL parses the URL the authorization server redirected to.
func ParseCallbackURL(raw string) (*url.URL, error) {
	u, err := ParseURI(raw)
	if err != nil {
		return nil, ErrCallbackURLInvalid
	}
	return u, nil
}

func localizedURL(raw string) (*Localized[*url.URL], error) {
	u, err := ParseURI(raw)
	if err != nil {
		return nil, ErrMetadataInvalid
	}
	return NewLocalized(u), nil
}

func optionalLocalizedURL(raw *string) (*Localized[*url.URL], error) {
	if raw == nil {
		return nil, nil
	}
	return localizedURL(*raw)
}
