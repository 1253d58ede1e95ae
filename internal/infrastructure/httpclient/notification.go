package httpclient

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

type NotificationClient struct {
	client           *Client
	registerURL      string
	resetPasswordURL string
}

func NewNotificationClient(client *Client, registerURL, resetPasswordURL string) *NotificationClient {
	return &NotificationClient{client: client, registerURL: registerURL, resetPasswordURL: resetPasswordURL}
}

func (n *NotificationClient) NotifyRegistration(ctx context.Context, email string) (json.RawMessage, error) {
	return n.send(ctx, n.registerURL, email)
}

func (n *NotificationClient) NotifyPasswordReset(ctx context.Context, email string) (json.RawMessage, error) {
	if n.resetPasswordURL == "" {
		return nil, fmt.Errorf("%w: password reset notifications", pkgerrors.ErrNotConfigured)
	}
	return n.send(ctx, n.resetPasswordURL, email)
}

func (n *NotificationClient) send(ctx context.Context, url, email string) (json.RawMessage, error) {
	resp, err := n.client.PostJSON(ctx, url, map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("%w: notification response is not JSON", pkgerrors.ErrUpstreamResponse)
	}
	return json.RawMessage(resp.Body), nil
}
