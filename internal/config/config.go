package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
)

type Config interface {
	EnvConfig
	HomeserverConfig
	OidcConfig
	ChannelConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type HomeserverConfig interface {
	GetRequestTimeout() time.Duration
	GetProbeRetries() uint
	GetProbeInterval() time.Duration
	GetUserAgent() string
}

type OidcConfig interface {
	// GetStaticRegistrations maps issuer or homeserver URLs to client ids
	// registered out of band.
	GetStaticRegistrations() map[string]string
}

type ChannelConfig interface {
	GetSignalBufferSize() int
}

type mainConfig struct {
	EnvVars
}

// New reads the configuration from the environment.
func New() (Config, error) {
	var vars EnvVars
	if err := env.Parse(&vars); err != nil {
		return nil, errors.Wrapf(err, "parse env")
	}
	if vars.SignalBufferSize < 0 {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "SIGNAL_BUFFER_SIZE must not be negative")
	}
	return mainConfig{EnvVars: vars}, nil
}
