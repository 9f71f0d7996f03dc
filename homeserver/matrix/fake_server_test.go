package matrix_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testAccessToken  = "at-123"
	testRefreshToken = "rt-456"
	testGoodCode     = "good-code"
	testClientID     = "dyn-client"
	testUserID       = "@alice:example.org"
)

// fakeServer serves both the homeserver client-server API and the
// authorization server it delegates to.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu              sync.Mutex
	versionFailures int
	versionStatus   int
	versionCalls    int
	issuerMode      string // "stable", "unstable", "none" or "broken"
	noRegistration  bool
	noWellKnown     bool
	idTokenIssuer   string
	registrations   []map[string]any
	tokenForms      []url.Values
}

func newFakeServer(t *testing.T, useTLS bool) *fakeServer {
	t.Helper()

	f := &fakeServer{t: t, issuerMode: "stable"}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/matrix/client", f.handleWellKnown)
	mux.HandleFunc("GET /_matrix/client/versions", f.handleVersions)
	mux.HandleFunc("GET /_matrix/client/v1/auth_issuer", f.handleAuthIssuer("stable"))
	mux.HandleFunc("GET /_matrix/client/unstable/org.matrix.msc2965/auth_issuer", f.handleAuthIssuer("unstable"))
	mux.HandleFunc("GET /_matrix/client/v3/login", f.handleLogin)
	mux.HandleFunc("GET /_matrix/client/v3/account/whoami", f.handleWhoami)
	mux.HandleFunc("GET /auth/.well-known/openid-configuration", f.handleDiscovery)
	mux.HandleFunc("POST /auth/oauth2/registration", f.handleRegistration)
	mux.HandleFunc("POST /auth/oauth2/token", f.handleToken)

	if useTLS {
		f.srv = httptest.NewTLSServer(mux)
	} else {
		f.srv = httptest.NewServer(mux)
	}
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) issuer() string {
	return f.srv.URL + "/auth/"
}

func (f *fakeServer) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	if f.noWellKnown {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"m.homeserver": map[string]string{"base_url": f.srv.URL + "/"},
	})
}

func (f *fakeServer) handleVersions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.versionCalls++
	failing := f.versionFailures > 0
	if failing {
		f.versionFailures--
	}
	status := f.versionStatus
	f.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusBadGateway, map[string]string{"errcode": "M_UNKNOWN"})
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"errcode": "M_UNRECOGNIZED", "error": "Unrecognized request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"versions":          []string{"v1.10", "v1.11"},
		"unstable_features": map[string]bool{"org.matrix.simplified_msc3575": true},
	})
}

func (f *fakeServer) handleAuthIssuer(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case f.issuerMode == "broken":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"errcode": "M_UNKNOWN"})
		case f.issuerMode == mode:
			writeJSON(w, http.StatusOK, map[string]string{"issuer": f.issuer()})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"errcode": "M_UNRECOGNIZED", "error": "Unrecognized request"})
		}
	}
}

func (f *fakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"flows": []map[string]string{{"type": "m.login.password"}, {"type": "m.login.sso"}},
	})
}

func (f *fakeServer) handleWhoami(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"errcode": "M_UNKNOWN_TOKEN"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": testUserID})
}

func (f *fakeServer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	issuer := f.issuer()
	doc := map[string]any{
		"issuer":                        issuer,
		"authorization_endpoint":        issuer + "authorize",
		"token_endpoint":                issuer + "oauth2/token",
		"jwks_uri":                      issuer + "oauth2/keys.json",
		"device_authorization_endpoint": issuer + "oauth2/device",
		"revocation_endpoint":           issuer + "oauth2/revoke",
		"response_types_supported":      []string{"code"},
		"prompt_values_supported":       []string{"create", "consent"},
	}
	if !f.noRegistration {
		doc["registration_endpoint"] = issuer + "oauth2/registration"
	}
	writeJSON(w, http.StatusOK, doc)
}

func (f *fakeServer) handleRegistration(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
		return
	}
	f.mu.Lock()
	f.registrations = append(f.registrations, body)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"client_id": testClientID, "client_id_issued_at": time.Now().Unix()})
}

func (f *fakeServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	f.mu.Lock()
	f.tokenForms = append(f.tokenForms, r.PostForm)
	idTokenIssuer := f.idTokenIssuer
	f.mu.Unlock()

	if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != testGoodCode {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	if idTokenIssuer == "" {
		idTokenIssuer = f.issuer()
	}

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": idTokenIssuer,
		"sub": "alice",
		"aud": r.PostForm.Get("client_id"),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		f.t.Errorf("sign id_token: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  testAccessToken,
		"refresh_token": testRefreshToken,
		"token_type":    "Bearer",
		"expires_in":    300,
		"id_token":      idToken,
	})
}

func (f *fakeServer) registrationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registrations)
}

func (f *fakeServer) lastRegistration() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.registrations) == 0 {
		return nil
	}
	return f.registrations[len(f.registrations)-1]
}

func (f *fakeServer) lastTokenForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokenForms) == 0 {
		return nil
	}
	return f.tokenForms[len(f.tokenForms)-1]
}

func (f *fakeServer) probeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versionCalls
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
