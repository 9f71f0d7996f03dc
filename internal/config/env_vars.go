package config

import (
	"maps"
	"time"
)

type EnvVars struct {
	AppName  string `env:"APP_NAME"  envDefault:"Homeserver Login"`
	Env      string `env:"ENV"       envDefault:"DEV"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RequestTimeout time.Duration `env:"HOMESERVER_REQUEST_TIMEOUT" envDefault:"30s"`
	ProbeRetries   uint          `env:"HOMESERVER_PROBE_RETRIES"   envDefault:"3"`
	ProbeInterval  time.Duration `env:"HOMESERVER_PROBE_INTERVAL"  envDefault:"250ms"`
	UserAgent      string        `env:"HOMESERVER_USER_AGENT"      envDefault:"go-homeserver-login"`

	// Example: OIDC_STATIC_REGISTRATIONS="https://auth.example.org/=01HV7K,https://matrix.example.com=mobile"
	StaticRegistrations map[string]string `env:"OIDC_STATIC_REGISTRATIONS" envSeparator:"," envKeyValSeparator:"="`

	SignalBufferSize int `env:"SIGNAL_BUFFER_SIZE" envDefault:"16"`
}

var _ Config = mainConfig{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetRequestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e EnvVars) GetProbeRetries() uint {
	return e.ProbeRetries
}

func (e EnvVars) GetProbeInterval() time.Duration {
	return e.ProbeInterval
}

func (e EnvVars) GetUserAgent() string {
	return e.UserAgent
}

func (e EnvVars) GetStaticRegistrations() map[string]string {
	return maps.Clone(e.StaticRegistrations)
}

func (e EnvVars) GetSignalBufferSize() int {
	return e.SignalBufferSize
}
