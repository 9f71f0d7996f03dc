package login_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-homeserver-login/login"
	"github.com/stretchr/testify/require"
)

func TestRun_ServesAllFlows(t *testing.T) {
	f := setupTestFixture(t)

	createIn := make(chan login.CreateConnection)
	urlIn := make(chan login.RequestOidcURL)
	finishIn := make(chan login.FinishOidcLogin)
	createOut := make(chan login.ConnectionCreated, 1)
	urlOut := make(chan login.OidcURL, 1)
	finishOut := make(chan login.OidcTokens, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.service.Run(t.Context(),
			login.Inbound{CreateConnection: createIn, RequestOidcURL: urlIn, FinishOidcLogin: finishIn},
			login.Outbound{ConnectionCreated: createOut, OidcURL: urlOut, OidcTokens: finishOut},
		)
	}()

	createIn <- login.CreateConnection{NameOrHomeserverURL: testHomeserver}
	created := <-createOut
	require.Empty(t, created.Error)
	require.NotEmpty(t, created.SessionID)

	urlIn <- oidcURLRequest(created.SessionID)
	issued := <-urlOut
	require.Empty(t, issued.Error)
	require.Equal(t, created.SessionID, issued.SessionID)

	finishIn <- login.FinishOidcLogin{SessionID: created.SessionID, CallbackURL: testCallbackURL}
	tokens := <-finishOut
	require.Empty(t, tokens.Error)
	require.NotEmpty(t, tokens.AccessToken)

	finishIn <- login.FinishOidcLogin{SessionID: "abc", CallbackURL: testCallbackURL}
	require.Equal(t, "missing client", (<-finishOut).Error)

	close(createIn)
	close(urlIn)
	close(finishIn)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after inbound channels closed")
	}
}

func TestRun_ResponsesFollowRequestOrder(t *testing.T) {
	f := setupTestFixture(t)

	finishIn := make(chan login.FinishOidcLogin, 3)
	finishOut := make(chan login.OidcTokens, 3)
	for _, id := range []string{"first", "second", "third"} {
		finishIn <- login.FinishOidcLogin{SessionID: id, CallbackURL: testCallbackURL}
	}
	close(finishIn)

	f.service.Run(t.Context(), login.Inbound{FinishOidcLogin: finishIn}, login.Outbound{OidcTokens: finishOut})

	require.Equal(t, "first", (<-finishOut).SessionID)
	require.Equal(t, "second", (<-finishOut).SessionID)
	require.Equal(t, "third", (<-finishOut).SessionID)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.service.Run(ctx,
			login.Inbound{CreateConnection: make(chan login.CreateConnection)},
			login.Outbound{ConnectionCreated: make(chan login.ConnectionCreated)},
		)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
