package fakeconn

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/oauth2"
)

var (
	_ homeserver.Connector  = (*FakeConnector)(nil)
	_ homeserver.Connection = (*FakeConnection)(nil)
)

// FakeConnector hands out FakeConnections built by Build and records every
// name it was asked to connect to.
type FakeConnector struct {
	// Build returns the connection for a name. Defaults to NewFakeConnection("https://" + name).
	Build func(nameOrHomeserverURL string) (*FakeConnection, error)

	lock        sync.Mutex
	requested   []string
	connections []*FakeConnection
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{}
}

func (c *FakeConnector) Connect(_ context.Context, nameOrHomeserverURL string) (homeserver.Connection, error) {
	c.lock.Lock()
	c.requested = append(c.requested, nameOrHomeserverURL)
	build := c.Build
	c.lock.Unlock()

	var (
		conn *FakeConnection
		err  error
	)
	if build != nil {
		conn, err = build(nameOrHomeserverURL)
	} else {
		conn = NewFakeConnection("https://" + nameOrHomeserverURL)
	}
	if err != nil {
		return nil, &homeserver.ClientBuildError{NameOrHomeserverURL: nameOrHomeserverURL, Err: err}
	}

	c.lock.Lock()
	c.connections = append(c.connections, conn)
	c.lock.Unlock()
	return conn, nil
}

// Requested returns the names passed to Connect, in call order.
func (c *FakeConnector) Requested() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.requested...)
}

// Connections returns the connections handed out, in call order.
func (c *FakeConnector) Connections() []*FakeConnection {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]*FakeConnection(nil), c.connections...)
}

// FakeConnection is a scripted homeserver connection. Exported fields set the
// results; the recorded calls are read through accessor methods.
type FakeConnection struct {
	HomeserverURL string
	Metadata      *homeserver.ServerMetadata
	MetadataErr   error
	Logins        []homeserver.LoginType
	LoginsErr     error
	SlidingSync   homeserver.SlidingSyncVersion
	AuthData      *homeserver.AuthorizationData
	AuthErr       error
	FinishErr     error

	// Meta and Tokens are reported only after a successful FinishLogin.
	Meta   *homeserver.SessionMeta
	Tokens *oauth2.SessionTokens

	// BeforeFinish runs inside FinishLogin before it returns.
	BeforeFinish func()

	lock          sync.Mutex
	authRequests  []homeserver.AuthorizationRequest
	finishedCalls []*url.URL
	loggedIn      bool
}

func NewFakeConnection(homeserverURL string) *FakeConnection {
	authURL, _ := url.Parse(homeserverURL + "/oauth2/authorize?state=fake-state")
	return &FakeConnection{
		HomeserverURL: homeserverURL,
		Metadata:      &homeserver.ServerMetadata{Issuer: homeserverURL + "/"},
		SlidingSync:   homeserver.SlidingSyncNone,
		AuthData:      &homeserver.AuthorizationData{URL: authURL, State: "fake-state"},
		Meta:          &homeserver.SessionMeta{UserID: "@alice:example.org", DeviceID: "FAKEDEVICE"},
		Tokens:        &oauth2.SessionTokens{AccessToken: "fake-access-token"},
	}
}

func (c *FakeConnection) Homeserver() string {
	return c.HomeserverURL
}

func (c *FakeConnection) ServerMetadata(_ context.Context) (*homeserver.ServerMetadata, error) {
	if c.MetadataErr != nil {
		return nil, c.MetadataErr
	}
	if c.Metadata == nil {
		return nil, homeserver.NewOAuthError(homeserver.KindDiscoveryNotSupported, errors.New("no issuer"))
	}
	return c.Metadata, nil
}

func (c *FakeConnection) LoginTypes(_ context.Context) ([]homeserver.LoginType, error) {
	if c.LoginsErr != nil {
		return nil, c.LoginsErr
	}
	return c.Logins, nil
}

func (c *FakeConnection) SlidingSyncVersion() homeserver.SlidingSyncVersion {
	return c.SlidingSync
}

func (c *FakeConnection) AuthorizationURL(_ context.Context, req homeserver.AuthorizationRequest) (*homeserver.AuthorizationData, error) {
	c.lock.Lock()
	c.authRequests = append(c.authRequests, req)
	c.lock.Unlock()
	if c.AuthErr != nil {
		return nil, c.AuthErr
	}
	return c.AuthData, nil
}

func (c *FakeConnection) FinishLogin(_ context.Context, callback *url.URL) error {
	c.lock.Lock()
	c.finishedCalls = append(c.finishedCalls, callback)
	c.lock.Unlock()
	if c.BeforeFinish != nil {
		c.BeforeFinish()
	}
	if c.FinishErr != nil {
		return c.FinishErr
	}
	c.lock.Lock()
	c.loggedIn = true
	c.lock.Unlock()
	return nil
}

func (c *FakeConnection) SessionMeta() *homeserver.SessionMeta {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.loggedIn {
		return nil
	}
	return c.Meta
}

func (c *FakeConnection) SessionTokens() *oauth2.SessionTokens {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.loggedIn {
		return nil
	}
	return c.Tokens.Clone()
}

// AuthorizationRequests returns the captured AuthorizationURL arguments.
func (c *FakeConnection) AuthorizationRequests() []homeserver.AuthorizationRequest {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]homeserver.AuthorizationRequest(nil), c.authRequests...)
}

// FinishLoginCalls returns the captured FinishLogin callbacks.
func (c *FakeConnection) FinishLoginCalls() []*url.URL {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]*url.URL(nil), c.finishedCalls...)
}
