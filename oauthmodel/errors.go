package oauthmodel

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one member of the closed set of login errors that can
// be reported to the presentation layer.
type ErrorCode int

const (
	CodeGeneric ErrorCode = iota
	CodeNotSupported
	CodeMetadataInvalid
	CodeCallbackURLInvalid
	CodeCancelled
	CodeSessionNotFound
	CodeClientBuild
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotSupported:
		return "not_supported"
	case CodeMetadataInvalid:
		return "metadata_invalid"
	case CodeCallbackURLInvalid:
		return "callback_url_invalid"
	case CodeCancelled:
		return "cancelled"
	case CodeSessionNotFound:
		return "session_not_found"
	case CodeClientBuild:
		return "client_build"
	default:
		return "generic"
	}
}

// Error is a login error in the stable domain taxonomy. Message is only
// meaningful for CodeGeneric and CodeClientBuild.
type Error struct {
	Code    ErrorCode
	Message string
}

var (
	ErrNotSupported       = &Error{Code: CodeNotSupported}
	ErrMetadataInvalid    = &Error{Code: CodeMetadataInvalid}
	ErrCallbackURLInvalid = &Error{Code: CodeCallbackURLInvalid}
	ErrCancelled          = &Error{Code: CodeCancelled}
	ErrSessionNotFound    = &Error{Code: CodeSessionNotFound}
)

// Generic wraps an unclassified failure message.
func Generic(message string) *Error {
	return &Error{Code: CodeGeneric, Message: message}
}

// ClientBuild carries a connection build failure verbatim.
func ClientBuild(err error) *Error {
	return &Error{Code: CodeClientBuild, Message: err.Error()}
}

// Error returns the user facing message for the error.
func (e *Error) Error() string {
	switch e.Code {
	case CodeNotSupported:
		return "The homeserver doesn't provide an authentication issuer in its well-known configuration."
	case CodeMetadataInvalid:
		return "Unable to use OIDC as the supplied client metadata is invalid."
	case CodeCallbackURLInvalid:
		return "The supplied callback URL used to complete OIDC is invalid."
	case CodeCancelled:
		return "The OIDC login was cancelled by the user."
	case CodeSessionNotFound:
		return "missing client"
	case CodeClientBuild:
		return e.Message
	default:
		return fmt.Sprintf("An error occurred: %s", e.Message)
	}
}

// Is matches on the error code so that errors.Is(err, ErrCancelled) works for
// any *Error value carrying CodeCancelled.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	errMissingScheme = errors.New("missing scheme")
	errMissingHost   = errors.New("missing host")
)
