package upstream

import (
	"context"
	"fmt"
	"net/http"
)

// CheckActivation returns the raw check payload. The field names vary across
// backend versions, so normalization happens in models, not here; this layer
// only strips the transport envelope.
func (c *Client) CheckActivation(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := c.doJSON(ctx, http.MethodGet, "/activation/teacher/check", accessToken, nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty activation payload", ErrBadPayload)
	}
	return unwrapData(raw), nil
}

func (c *Client) Activate(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := c.doJSON(ctx, http.MethodPost, "/activation/teacher/activate", accessToken, nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty activation payload", ErrBadPayload)
	}
	return unwrapData(raw), nil
}
