package sessions

import (
	"time"

	"github.com/jrsteele09/go-homeserver-login/homeserver"
)

// State tracks how far a session has progressed through the login flows.
type State string

const (
	StateCreated                State = "created"                 // connection built, capabilities discovered
	StateAuthorizationRequested State = "authorization_requested" // authorization URL issued
	StateAuthorized             State = "authorized"              // callback completed, tokens issued
)

// Session binds an opaque id to one live homeserver connection.
type Session struct {
	ID         string                // Opaque unique identifier (UUID unless supplied by the caller)
	Connection homeserver.Connection // Owned by the session, only reached through the registry
	State      State                 // Progress through the login flows
	CreatedAt  time.Time             // When the session was stored
	UpdatedAt  time.Time             // Last state change
}
