package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

const (
	CorrelationHeader = "correlation-id"
	maxBodyBytes      = 1 << 20
)

type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// Client posts JSON to one collaborator service. Calls are never retried.
type Client struct {
	service string
	http    *http.Client
	timeout time.Duration
}

func NewClient(service string, timeout time.Duration, transport http.RoundTripper) *Client {
	return &Client{
		service: service,
		http:    &http.Client{Transport: transport},
		timeout: timeout,
	}
}

func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", c.service, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set(CorrelationHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.CollaboratorDuration.WithLabelValues(c.service, "error").Observe(time.Since(start).Seconds())
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s did not answer within %s", pkgerrors.ErrTimeout, c.service, c.timeout)
		}
		return nil, fmt.Errorf("%w: %s unreachable: %v", pkgerrors.ErrUpstreamResponse, c.service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: reading %s response", pkgerrors.ErrTimeout, c.service)
		}
		return nil, fmt.Errorf("%w: reading %s response: %v", pkgerrors.ErrUpstreamResponse, c.service, err)
	}
	observability.CollaboratorDuration.WithLabelValues(c.service, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	out := &Response{
		Status:      resp.StatusCode,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.Logger(ctx).Warn("collaborator returned error status",
			"service", c.service, "status", resp.StatusCode)
		return nil, &pkgerrors.CollaboratorError{
			Service:     c.service,
			Status:      out.Status,
			Body:        out.Body,
			ContentType: out.ContentType,
		}
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
