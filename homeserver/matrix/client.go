package matrix

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/oauth2"
)

var _ homeserver.Connection = (*Client)(nil)

// Client is a connection to one resolved homeserver.
type Client struct {
	connector   *Connector
	base        *url.URL
	slidingSync homeserver.SlidingSyncVersion

	mu       sync.Mutex
	metadata *homeserver.ServerMetadata
	pending  *pendingAuthorization
	meta     *homeserver.SessionMeta
	tokens   *oauth2.SessionTokens
}

func (c *Client) Homeserver() string {
	return c.base.String()
}

func (c *Client) SlidingSyncVersion() homeserver.SlidingSyncVersion {
	return c.slidingSync
}

// providerClaims are the metadata fields go-oidc does not surface itself.
type providerClaims struct {
	RegistrationEndpoint        string   `json:"registration_endpoint"`
	DeviceAuthorizationEndpoint string   `json:"device_authorization_endpoint"`
	RevocationEndpoint          string   `json:"revocation_endpoint"`
	PromptValuesSupported       []string `json:"prompt_values_supported"`
}

// ServerMetadata discovers the issuer through auth_issuer and loads its
// OpenID configuration. The result is cached for the life of the Client.
func (c *Client) ServerMetadata(ctx context.Context) (*homeserver.ServerMetadata, error) {
	c.mu.Lock()
	cached := c.metadata
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	issuer, err := c.authIssuer(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(c.oidcContext(ctx), issuer)
	if err != nil {
		return nil, homeserver.NewOAuthError(homeserver.KindDiscovery, err)
	}
	var claims providerClaims
	if err := provider.Claims(&claims); err != nil {
		return nil, homeserver.NewOAuthError(homeserver.KindDiscovery, err)
	}

	endpoint := provider.Endpoint()
	metadata := &homeserver.ServerMetadata{
		Issuer:                      issuer,
		AuthorizationEndpoint:       endpoint.AuthURL,
		TokenEndpoint:               endpoint.TokenURL,
		RegistrationEndpoint:        claims.RegistrationEndpoint,
		DeviceAuthorizationEndpoint: claims.DeviceAuthorizationEndpoint,
		RevocationEndpoint:          claims.RevocationEndpoint,
	}
	for _, p := range claims.PromptValuesSupported {
		metadata.PromptValuesSupported = append(metadata.PromptValuesSupported, oauth2.ParsePrompt(p))
	}

	c.mu.Lock()
	c.metadata = metadata
	c.mu.Unlock()
	return metadata, nil
}

// authIssuer asks the homeserver which issuer it delegates to, falling back
// to the unstable endpoint when the stable one is unknown.
func (c *Client) authIssuer(ctx context.Context) (string, error) {
	var lastErr error
	for _, path := range []string{pathAuthIssuer, pathAuthIssuerUnstable} {
		var resp struct {
			Issuer string `json:"issuer"`
		}
		err := c.connector.getJSON(ctx, endpoint(c.base, path), "", &resp)
		if err == nil && resp.Issuer != "" {
			return resp.Issuer, nil
		}
		if err == nil {
			lastErr = errors.Wrapf(errors.ErrMissingField, "issuer in %s", path)
			continue
		}
		lastErr = err
		if !unrecognized(err) {
			return "", homeserver.NewOAuthError(homeserver.KindDiscovery, err)
		}
	}
	return "", homeserver.NewOAuthError(homeserver.KindDiscoveryNotSupported, lastErr)
}

func unrecognized(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound || statusErr.ErrCode == "M_UNRECOGNIZED"
}

func (c *Client) LoginTypes(ctx context.Context) ([]homeserver.LoginType, error) {
	var resp struct {
		Flows []struct {
			Type string `json:"type"`
		} `json:"flows"`
	}
	if err := c.connector.getJSON(ctx, endpoint(c.base, pathLogin), "", &resp); err != nil {
		return nil, errors.Wrapf(err, "[Client.LoginTypes] fetch login flows")
	}

	types := make([]homeserver.LoginType, 0, len(resp.Flows))
	for _, flow := range resp.Flows {
		types = append(types, homeserver.LoginType(flow.Type))
	}
	return types, nil
}

type whoamiResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

func (c *Client) whoami(ctx context.Context, accessToken string) (*whoamiResponse, error) {
	var resp whoamiResponse
	if err := c.connector.getJSON(ctx, endpoint(c.base, pathWhoami), accessToken, &resp); err != nil {
		return nil, errors.Wrapf(err, "[Client.whoami] fetch session identity")
	}
	if resp.UserID == "" {
		return nil, errors.Wrapf(errors.ErrMissingField, "[Client.whoami] user_id")
	}
	return &resp, nil
}

func (c *Client) SessionMeta() *homeserver.SessionMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meta == nil {
		return nil
	}
	meta := *c.meta
	return &meta
}

func (c *Client) SessionTokens() *oauth2.SessionTokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.Clone()
}

func (c *Client) oidcContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.connector.httpClient)
}
