package oauth2_test

import (
	"testing"

	"github.com/jrsteele09/go-homeserver-login/oauth2"
	"github.com/stretchr/testify/require"
)

func TestParsePrompt(t *testing.T) {
	require.Equal(t, oauth2.PromptConsent, oauth2.ParsePrompt("consent"))
	require.Equal(t, oauth2.PromptCreate, oauth2.ParsePrompt("create"))

	unknown := oauth2.ParsePrompt("select_account")
	require.Equal(t, "select_account", unknown.String())
}

func TestSessionTokens_Clone(t *testing.T) {
	var nilTokens *oauth2.SessionTokens
	require.Nil(t, nilTokens.Clone())

	refresh := "refresh"
	original := &oauth2.SessionTokens{AccessToken: "access", RefreshToken: &refresh}
	clone := original.Clone()
	require.Equal(t, original, clone)

	*clone.RefreshToken = "changed"
	require.Equal(t, "refresh", *original.RefreshToken)
}
