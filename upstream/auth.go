package upstream

import (
	"context"
	"net/http"
)

// TokenPayload is the shape of both the login and refresh responses. Role,
// status and preference id may be absent on older backend versions; callers
// fall back to the JWT claims inside AccessToken.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	PreferenceID *int   `json:"preference_id"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*TokenPayload, error) {
	body := map[string]string{"email": email, "password": password}
	var payload TokenPayload
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPayload, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var payload TokenPayload
	if err := c.doJSON(ctx, http.MethodPost, "/auth/refresh-token", "", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
