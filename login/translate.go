package login

import (
	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/oauthmodel"
)

// TranslateError maps any failure onto the domain taxonomy. It is total:
// errors it does not recognize become oauthmodel.Generic.
func TranslateError(err error) *oauthmodel.Error {
	if err == nil {
		return nil
	}

	var domainErr *oauthmodel.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var buildErr *homeserver.ClientBuildError
	if errors.As(err, &buildErr) {
		return oauthmodel.ClientBuild(buildErr)
	}

	var oauthErr *homeserver.OAuthError
	if errors.As(err, &oauthErr) {
		switch oauthErr.Kind {
		case homeserver.KindDiscoveryNotSupported:
			return oauthmodel.ErrNotSupported
		case homeserver.KindRedirectURIMismatch, homeserver.KindInvalidState:
			return oauthmodel.ErrCallbackURLInvalid
		case homeserver.KindCancelled:
			return oauthmodel.ErrCancelled
		}
	}

	return oauthmodel.Generic(err.Error())
}
