// Package client calls a remote image-search HTTP server.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ironsheep/image-search-mcp/internal/httpapi"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

// DefaultTimeout bounds one request, including the search itself.
const DefaultTimeout = 30 * time.Second

// Client talks to the /api endpoints of an image-search server.
type Client struct {
	http *resty.Client
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:8080". A timeout of zero uses DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
}

// Ping checks that the server is up.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/ping")
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	return nil
}

// Search posts req to /api/search. A non-empty requestID is sent as the
// X-Request-ID header.
func (c *Client) Search(ctx context.Context, requestID string, req httpapi.SearchRequest) (*service.Response, error) {
	var out service.Response
	var apiErr httpapi.ErrorResponse

	r := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr)
	if requestID != "" {
		r.SetHeader(httpapi.RequestIDHeader, requestID)
	}

	resp, err := r.Post("/api/search")
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode(),
			Message:    msg,
			RequestID:  resp.Header().Get(httpapi.RequestIDHeader),
		}
	}
	return &out, nil
}
