// Package httpc is a small client for the marionette web API, with the
// transport timeouts set.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-marionette/pkg/animation"
	"github.com/teslashibe/go-marionette/pkg/protocol"
	"github.com/teslashibe/go-marionette/pkg/web"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultConnectTimeout  = 5 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewHTTPClient creates an HTTP client with the specified timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpc: status %d: %s", e.Code, e.Body)
}

// Client talks to one running figure.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the API at base, e.g. "http://localhost:5001".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: NewHTTPClient(DefaultTimeout),
	}
}

// Play starts f on the remotely controlled animation.
func (c *Client) Play(ctx context.Context, f animation.File) error {
	return c.do(ctx, http.MethodPost, "/marionette/play", web.PlayRequest{Animation: f}, nil)
}

// Pause stops ad-hoc playback.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/marionette/pause", nil, nil)
}

// SetEnabled switches slider control on or off.
func (c *Client) SetEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPost, "/marionette/enabled", web.EnabledBody{Enabled: enabled}, nil)
}

// Status fetches the latest status snapshot.
func (c *Client) Status(ctx context.Context) (protocol.StatusData, error) {
	var st protocol.StatusData
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
