package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-homeserver-login/internal/errors"
	"github.com/jrsteele09/go-homeserver-login/oauthmodel"
)

// clientRegistrationResponse is the part of an RFC 7591 response we keep.
type clientRegistrationResponse struct {
	ClientID string `json:"client_id"`
}

// registerClient performs dynamic client registration for a public client.
func (c *Connector) registerClient(ctx context.Context, registrationEndpoint string, metadata *oauthmodel.ClientMetadata) (*clientRegistrationResponse, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrapf(err, "[Connector.registerClient] marshal client metadata")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "[Connector.registerClient] create request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp clientRegistrationResponse
	if err := c.doJSON(req, &resp, http.StatusOK, http.StatusCreated); err != nil {
		return nil, errors.Wrapf(err, "[Connector.registerClient] register client")
	}
	if resp.ClientID == "" {
		return nil, errors.Wrapf(errors.ErrMissingField, "[Connector.registerClient] client_id")
	}
	return &resp, nil
}
