package homeserver

import "fmt"

// ErrorKind classifies connection-layer OAuth failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindDiscovery
	KindDiscoveryNotSupported
	KindClientRegistration
	KindRedirectURIMismatch
	KindInvalidState
	KindCancelled
	KindAuthorizationCode
	KindTokenExchange
)

func (k ErrorKind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery"
	case KindDiscoveryNotSupported:
		return "discovery not supported"
	case KindClientRegistration:
		return "client registration"
	case KindRedirectURIMismatch:
		return "redirect uri mismatch"
	case KindInvalidState:
		return "invalid state"
	case KindCancelled:
		return "cancelled"
	case KindAuthorizationCode:
		return "authorization code"
	case KindTokenExchange:
		return "token exchange"
	default:
		return "unknown"
	}
}

// OAuthError is a classified failure of the OAuth flow.
type OAuthError struct {
	Kind ErrorKind
	Err  error
}

func NewOAuthError(kind ErrorKind, err error) *OAuthError {
	return &OAuthError{Kind: kind, Err: err}
}

func (e *OAuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("oauth %s", e.Kind)
	}
	return fmt.Sprintf("oauth %s: %v", e.Kind, e.Err)
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}

// ClientBuildError reports that a connection could not be built for the
// given server name or URL.
type ClientBuildError struct {
	NameOrHomeserverURL string
	Err                 error
}

func (e *ClientBuildError) Error() string {
	return fmt.Sprintf("failed to build client for %q: %v", e.NameOrHomeserverURL, e.Err)
}

func (e *ClientBuildError) Unwrap() error {
	return e.Err
}
