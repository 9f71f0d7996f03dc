// Package matrix implements homeserver.Connection for Matrix homeservers
// that delegate authentication to an OAuth 2.0 authorization server.
package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	pathWellKnown          = "/.well-known/matrix/client"
	pathVersions           = "/_matrix/client/versions"
	pathLogin              = "/_matrix/client/v3/login"
	pathWhoami             = "/_matrix/client/v3/account/whoami"
	pathAuthIssuer         = "/_matrix/client/v1/auth_issuer"
	pathAuthIssuerUnstable = "/_matrix/client/unstable/org.matrix.msc2965/auth_issuer"

	featureSimplifiedSlidingSync = "org.matrix.simplified_msc3575"

	defaultUserAgent     = "go-homeserver-login"
	defaultTimeout       = 30 * time.Second
	defaultProbeTries    = 3
	defaultProbeInterval = 250 * time.Millisecond
)

var (
	_ homeserver.Connector = (*Connector)(nil)

	errNotMatrix = errors.New("server did not advertise any client-server API version")
)

// Connector resolves server names and homeserver URLs into Clients.
type Connector struct {
	httpClient    *http.Client
	userAgent     string
	probeTries    uint
	probeInterval time.Duration
	logger        zerolog.Logger
}

// ConnectorOption defines a function type to modify the Connector instance.
type ConnectorOption func(*Connector)

func WithHTTPClient(client *http.Client) ConnectorOption {
	return func(c *Connector) {
		c.httpClient = client
	}
}

func WithUserAgent(userAgent string) ConnectorOption {
	return func(c *Connector) {
		c.userAgent = userAgent
	}
}

// WithProbeRetries sets how often the /versions probe is attempted and the
// initial delay between attempts.
func WithProbeRetries(tries uint, interval time.Duration) ConnectorOption {
	return func(c *Connector) {
		if tries > 0 {
			c.probeTries = tries
		}
		if interval > 0 {
			c.probeInterval = interval
		}
	}
}

func WithLogger(logger zerolog.Logger) ConnectorOption {
	return func(c *Connector) {
		c.logger = logger
	}
}

func NewConnector(options ...ConnectorOption) *Connector {
	c := &Connector{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		userAgent:     defaultUserAgent,
		probeTries:    defaultProbeTries,
		probeInterval: defaultProbeInterval,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Connect resolves nameOrHomeserverURL and checks that it serves the Matrix
// client-server API.
func (c *Connector) Connect(ctx context.Context, nameOrHomeserverURL string) (homeserver.Connection, error) {
	base, err := c.resolve(ctx, nameOrHomeserverURL)
	if err != nil {
		return nil, &homeserver.ClientBuildError{NameOrHomeserverURL: nameOrHomeserverURL, Err: err}
	}
	versions, err := c.probe(ctx, base)
	if err != nil {
		return nil, &homeserver.ClientBuildError{NameOrHomeserverURL: nameOrHomeserverURL, Err: err}
	}

	slidingSync := homeserver.SlidingSyncNone
	if versions.UnstableFeatures[featureSimplifiedSlidingSync] {
		slidingSync = homeserver.SlidingSyncNative
	}
	c.logger.Debug().Str("homeserver", base.String()).Strs("versions", versions.Versions).Msg("Connected to homeserver")
	return &Client{connector: c, base: base, slidingSync: slidingSync}, nil
}

func (c *Connector) resolve(ctx context.Context, raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Wrapf(errors.ErrMissingField, "server name or homeserver URL")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse homeserver URL")
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "homeserver URL %q", raw)
		}
		return baseURL(u), nil
	}

	if strings.ContainsAny(raw, "/?#@ ") {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "server name %q", raw)
	}
	serverURL := &url.URL{Scheme: "https", Host: raw}

	base, err := c.wellKnown(ctx, serverURL)
	if err != nil {
		c.logger.Debug().Err(err).Str("server_name", raw).Msg("No usable well-known, using server name as homeserver")
		return serverURL, nil
	}
	return base, nil
}

func (c *Connector) wellKnown(ctx context.Context, serverURL *url.URL) (*url.URL, error) {
	var resp struct {
		Homeserver struct {
			BaseURL string `json:"base_url"`
		} `json:"m.homeserver"`
	}
	if err := c.getJSON(ctx, endpoint(serverURL, pathWellKnown), "", &resp); err != nil {
		return nil, err
	}
	u, err := url.Parse(resp.Homeserver.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse well-known base_url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "well-known base_url %q", resp.Homeserver.BaseURL)
	}
	return baseURL(u), nil
}

type versionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features"`
}

// probe calls /versions with exponential backoff. Client errors are not retried.
func (c *Connector) probe(ctx context.Context, base *url.URL) (*versionsResponse, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.probeInterval
	expBackoff.MaxInterval = 20 * c.probeInterval
	expBackoff.Reset()

	attempt := 0
	operation := func() (*versionsResponse, error) {
		attempt++
		var versions versionsResponse
		err := c.getJSON(ctx, endpoint(base, pathVersions), "", &versions)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Str("homeserver", base.String()).Msg("Homeserver probe failed")
			return nil, err
		}
		if len(versions.Versions) == 0 {
			return nil, backoff.Permanent(errNotMatrix)
		}
		return &versions, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(c.probeTries),
	)
}

// StatusError is a non-success response from the homeserver or the
// authorization server.
type StatusError struct {
	StatusCode int
	ErrCode    string // Matrix errcode, e.g. M_UNRECOGNIZED
	Message    string
}

func (e *StatusError) Error() string {
	if e.ErrCode != "" {
		return fmt.Sprintf("%s %d: %s %s", errors.ErrUnexpectedStatus, e.StatusCode, e.ErrCode, e.Message)
	}
	return fmt.Sprintf("%s %d", errors.ErrUnexpectedStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return errors.ErrUnexpectedStatus
}

func (c *Connector) getJSON(ctx context.Context, target, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrapf(err, "create request")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.doJSON(req, out, http.StatusOK)
}

func (c *Connector) doJSON(req *http.Request, out any, accepted ...int) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if !statusAccepted(resp.StatusCode, accepted) {
		return readStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", req.URL.Path)
	}
	return nil
}

func statusAccepted(status int, accepted []int) bool {
	for _, a := range accepted {
		if status == a {
			return true
		}
	}
	return false
}

func readStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var body struct {
		ErrCode string `json:"errcode"`
		Error   string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil {
		statusErr.ErrCode = body.ErrCode
		statusErr.Message = body.Error
	}
	return statusErr
}

func baseURL(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimSuffix(u.Path, "/")}
}

func endpoint(base *url.URL, path string) string {
	return strings.TrimSuffix(base.String(), "/") + path
}
