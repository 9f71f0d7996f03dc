package signals_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jrsteele09/go-homeserver-login/homeserver/fakeconn"
	"github.com/jrsteele09/go-homeserver-login/internal/signals"
	"github.com/jrsteele09/go-homeserver-login/login"
	"github.com/jrsteele09/go-homeserver-login/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelopes(t *testing.T, out *bytes.Buffer) []signals.Envelope {
	t.Helper()

	var envelopes []signals.Envelope
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var envelope signals.Envelope
		require.NoError(t, json.Unmarshal([]byte(line), &envelope))
		envelopes = append(envelopes, envelope)
	}
	return envelopes
}

func TestBridge_Decode(t *testing.T) {
	bridge := signals.NewBridge(4, zerolog.Nop())
	input := strings.Join([]string{
		`{"type":"create_connection","message":{"name_or_homeserver_url":"matrix.org"}}`,
		`not json`,
		`{"type":"unknown","message":{}}`,
		``,
		`{"type":"request_oidc_url","message":{"session_id":"s1","redirect_uri":"uz.efael.app:/"}}`,
		`{"type":"finish_oidc_login","message":{"session_id":"s1","callback_url":"uz.efael.app:/?code=x"}}`,
	}, "\n")

	require.NoError(t, bridge.Decode(t.Context(), strings.NewReader(input)))

	in := bridge.Inbound()
	assert.Equal(t, login.CreateConnection{NameOrHomeserverURL: "matrix.org"}, <-in.CreateConnection)
	assert.Equal(t, login.RequestOidcURL{SessionID: "s1", RedirectURI: "uz.efael.app:/"}, <-in.RequestOidcURL)
	assert.Equal(t, login.FinishOidcLogin{SessionID: "s1", CallbackURL: "uz.efael.app:/?code=x"}, <-in.FinishOidcLogin)

	_, open := <-in.CreateConnection
	assert.False(t, open)
	_, open = <-in.RequestOidcURL
	assert.False(t, open)
	_, open = <-in.FinishOidcLogin
	assert.False(t, open)
}

func TestBridge_Encode(t *testing.T) {
	bridge := signals.NewBridge(4, zerolog.Nop())
	out := bridge.Outbound()
	out.OidcURL <- login.OidcURL{SessionID: "s1", URL: "https://auth.example.org/authorize"}
	out.OidcTokens <- login.OidcTokens{SessionID: "s1", Error: "missing client"}
	bridge.CloseOutbound()

	var buf bytes.Buffer
	require.NoError(t, bridge.Encode(t.Context(), &buf))

	envelopes := decodeEnvelopes(t, &buf)
	require.Len(t, envelopes, 2)

	byType := map[string]json.RawMessage{}
	for _, e := range envelopes {
		byType[e.Type] = e.Message
	}

	var url login.OidcURL
	require.NoError(t, json.Unmarshal(byType[signals.TypeOidcURL], &url))
	assert.Equal(t, "https://auth.example.org/authorize", url.URL)

	var tokens login.OidcTokens
	require.NoError(t, json.Unmarshal(byType[signals.TypeOidcTokens], &tokens))
	assert.Equal(t, "missing client", tokens.Error)
}

func TestBridge_ServesLoginService(t *testing.T) {
	service, err := login.NewService(fakeconn.NewFakeConnector(), sessions.NewRegistry(), login.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	bridge := signals.NewBridge(4, zerolog.Nop())
	input := strings.Join([]string{
		`{"type":"create_connection","message":{"name_or_homeserver_url":"matrix.org"}}`,
		`{"type":"finish_oidc_login","message":{"session_id":"unknown","callback_url":"uz.efael.app:/?state=x&code=y"}}`,
	}, "\n")
	require.NoError(t, bridge.Decode(t.Context(), strings.NewReader(input)))

	service.Run(t.Context(), bridge.Inbound(), bridge.Outbound())
	bridge.CloseOutbound()

	var buf bytes.Buffer
	require.NoError(t, bridge.Encode(t.Context(), &buf))

	envelopes := decodeEnvelopes(t, &buf)
	require.Len(t, envelopes, 2)
	for _, e := range envelopes {
		switch e.Type {
		case signals.TypeConnectionCreated:
			var created login.ConnectionCreated
			require.NoError(t, json.Unmarshal(e.Message, &created))
			assert.NotEmpty(t, created.SessionID)
			assert.Equal(t, "https://matrix.org", created.HomeserverURL)
		case signals.TypeOidcTokens:
			var tokens login.OidcTokens
			require.NoError(t, json.Unmarshal(e.Message, &tokens))
			assert.Equal(t, "unknown", tokens.SessionID)
			assert.Equal(t, "missing client", tokens.Error)
		default:
			t.Fatalf("unexpected envelope type %q", e.Type)
		}
	}
}

func TestBridge_SkipsOversizedLines(t *testing.T) {
	service, err := login.NewService(fakeconn.NewFakeConnector(), sessions.NewRegistry(), login.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	bridge := signals.NewBridge(4, zerolog.Nop())
	input := strings.Repeat("x", 2<<20) + "\n" +
		`{"type":"finish_oidc_login","message":{"session_id":"after-junk","callback_url":"uz.efael.app:/?state=x&code=y"}}` + "\n"
	require.NoError(t, bridge.Decode(t.Context(), strings.NewReader(input)))

	service.Run(t.Context(), bridge.Inbound(), bridge.Outbound())
	bridge.CloseOutbound()

	var buf bytes.Buffer
	require.NoError(t, bridge.Encode(t.Context(), &buf))

	envelopes := decodeEnvelopes(t, &buf)
	require.Len(t, envelopes, 1)
	require.Equal(t, signals.TypeOidcTokens, envelopes[0].Type)

	var tokens login.OidcTokens
	require.NoError(t, json.Unmarshal(envelopes[0].Message, &tokens))
	assert.Equal(t, "after-junk", tokens.SessionID)
	assert.Equal(t, "missing client", tokens.Error)
}
