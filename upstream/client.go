package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Error taxonomy for marketplace API calls. Handlers map these onto HTTP
// statuses; services treat ErrUnavailable as transient and keep prior state.
var (
	ErrUnauthorized = errors.New("invalid or expired credentials")
	ErrUnavailable  = errors.New("marketplace API unavailable")
	ErrBadPayload   = errors.New("malformed marketplace response")
)

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API returned %d: %s", e.Status, e.Message)
}

// Client is a thin typed wrapper over the marketplace REST API. It holds no
// session state; callers pass the access token per request.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Warn("marketplace API request failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (%s %s)", ErrUnauthorized, method, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %s", ErrUnavailable, method, path, resp.Status)
	case resp.StatusCode >= 400:
		return &APIError{Status: resp.StatusCode, Message: decodeAPIMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func decodeAPIMessage(r io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return "request rejected"
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return "request rejected"
}

// unwrapData peels the {"data": {...}} envelope some endpoints use. Payloads
// without the envelope come back untouched.
func unwrapData(raw map[string]interface{}) map[string]interface{} {
	if inner, ok := raw["data"].(map[string]interface{}); ok {
		return inner
	}
	return raw
}
