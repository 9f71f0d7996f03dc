package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/go-homeserver-login/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the variables for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t, "ENV", "LOG_LEVEL", "HOMESERVER_REQUEST_TIMEOUT", "HOMESERVER_PROBE_RETRIES",
		"HOMESERVER_PROBE_INTERVAL", "OIDC_STATIC_REGISTRATIONS", "SIGNAL_BUFFER_SIZE")

	cfg, err := config.New()
	require.NoError(t, err)

	assert.Equal(t, "DEV", cfg.GetEnv())
	assert.Equal(t, "info", cfg.GetLogLevel())
	assert.Equal(t, 30*time.Second, cfg.GetRequestTimeout())
	assert.Equal(t, uint(3), cfg.GetProbeRetries())
	assert.Equal(t, 250*time.Millisecond, cfg.GetProbeInterval())
	assert.Equal(t, 16, cfg.GetSignalBufferSize())
	assert.Empty(t, cfg.GetStaticRegistrations())
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HOMESERVER_REQUEST_TIMEOUT", "5s")
	t.Setenv("HOMESERVER_PROBE_RETRIES", "7")
	t.Setenv("HOMESERVER_USER_AGENT", "efael/1.0")
	t.Setenv("OIDC_STATIC_REGISTRATIONS", "https://auth.example.org/=01HV7K,https://matrix.example.com=mobile")
	t.Setenv("SIGNAL_BUFFER_SIZE", "4")

	cfg, err := config.New()
	require.NoError(t, err)

	assert.Equal(t, "PROD", cfg.GetEnv())
	assert.Equal(t, "debug", cfg.GetLogLevel())
	assert.Equal(t, 5*time.Second, cfg.GetRequestTimeout())
	assert.Equal(t, uint(7), cfg.GetProbeRetries())
	assert.Equal(t, "efael/1.0", cfg.GetUserAgent())
	assert.Equal(t, 4, cfg.GetSignalBufferSize())
	assert.Equal(t, map[string]string{
		"https://auth.example.org/":  "01HV7K",
		"https://matrix.example.com": "mobile",
	}, cfg.GetStaticRegistrations())
}

func TestNew_Invalid(t *testing.T) {
	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("HOMESERVER_PROBE_INTERVAL", "soon")

		_, err := config.New()
		require.Error(t, err)
	})

	t.Run("negative buffer", func(t *testing.T) {
		t.Setenv("SIGNAL_BUFFER_SIZE", "-1")

		_, err := config.New()
		require.Error(t, err)
	})
}
