package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

// AccountClient talks to the identity service that owns user records.
type AccountClient struct {
	client      *Client
	registerURL string
	loginURL    string
}

func NewAccountClient(client *Client, registerURL, loginURL string) *AccountClient {
	return &AccountClient{client: client, registerURL: registerURL, loginURL: loginURL}
}

func (a *AccountClient) Register(ctx context.Context, req *models.RegisterRequest) error {
	_, err := a.client.PostJSON(ctx, a.registerURL, req)
	return err
}

// Login returns the user id the identity service assigned to the credentials.
func (a *AccountClient) Login(ctx context.Context, req *models.LoginRequest) (string, error) {
	resp, err := a.client.PostJSON(ctx, a.loginURL, req)
	if err != nil {
		return "", err
	}

	var body struct {
		UserID json.RawMessage `json:"user_id"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%w: login response is not JSON: %v", pkgerrors.ErrUpstreamResponse, err)
	}
	subject, err := parseUserID(body.UserID)
	if err != nil {
		return "", err
	}
	return subject, nil
}

// parseUserID accepts the id as a JSON string or number.
func parseUserID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: login response has no user_id", pkgerrors.ErrUpstreamResponse)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: login response has empty user_id", pkgerrors.ErrUpstreamResponse)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return n.String(), nil
		}
	}
	return "", fmt.Errorf("%w: unsupported user_id %s", pkgerrors.ErrUpstreamResponse, raw)
}
