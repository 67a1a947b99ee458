package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/mahtabnejad90/calabash/pkg/core"
)

const (
	// DevicePort is the fixed port the test server listens on inside the
	// device. The host port is forwarded onto it.
	DevicePort = 7102

	// DefaultLocalPort is the default forwarded host port.
	DefaultLocalPort = 34777
)

// Routes exposed by the test server.
const (
	routeAction  = "/"
	routeMap     = "/map"
	routeGesture = "/gesture"
	routePing    = "/ping"
	routeReady   = "/ready"
	routeKill    = "/kill"
)

const (
	defaultCallTimeout = 30 * time.Second
	probeTimeout       = 2 * time.Second
	probeRetries       = 1
)

// Client issues RPC requests to the test server through its forwarded port.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a client for the given forwarded host port.
func NewClient(port int) *Client {
	return &Client{
		http:    &http.Client{},
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
	}
}

// callOptions bound a single RPC: per-call timeout and transport retry count.
type callOptions struct {
	timeout time.Duration
	retries int
}

// call sends one JSON request and returns the raw response body. Transport
// failures are retried up to opts.retries additional times with no delay;
// any other failure is returned immediately.
func (c *Client) call(ctx context.Context, path string, body interface{}, opts callOptions) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= opts.retries; attempt++ {
		data, err := c.do(ctx, path, payload, opts.timeout)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !core.IsTransport(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs a single HTTP round trip under the per-call timeout.
func (c *Client) do(ctx context.Context, path string, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.NewError(core.ErrCategoryTransport, "request_failed", "request to test server failed").
			WithCause(err).
			WithDetails(map[string]interface{}{"route": path})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.ErrCategoryTransport, "read_failed", "read test server response").
			WithCause(err).
			WithDetails(map[string]interface{}{"route": path})
	}

	if resp.StatusCode >= 400 {
		return nil, core.Errorf(core.ErrCategoryTransport, "http_status",
			"test server returned status %d", resp.StatusCode).
			WithDetails(map[string]interface{}{"route": path, "body": string(data)})
	}
	return data, nil
}

// Ping probes liveness. The server is live only when the body is exactly
// "pong".
func (c *Client) Ping(ctx context.Context) error {
	data, err := c.call(ctx, routePing, nil, callOptions{timeout: probeTimeout, retries: probeRetries})
	if err != nil {
		return err
	}
	if string(data) != "pong" {
		return core.Errorf(core.ErrCategoryTransport, "unexpected_probe",
			"unexpected liveness probe response %q", string(data)).
			WithDetails(map[string]interface{}{"probe": "ping"})
	}
	return nil
}

// Ready probes readiness. The harness is ready only when the body is exactly
// "true".
func (c *Client) Ready(ctx context.Context) error {
	data, err := c.call(ctx, routeReady, nil, callOptions{timeout: probeTimeout, retries: probeRetries})
	if err != nil {
		return err
	}
	if string(data) != "true" {
		return core.Errorf(core.ErrCategoryTransport, "unexpected_probe",
			"unexpected readiness probe response %q", string(data)).
			WithDetails(map[string]interface{}{"probe": "ready"})
	}
	return nil
}

// Kill asks the server to shut itself down. One transport retry, no delay.
func (c *Client) Kill(ctx context.Context) error {
	_, err := c.call(ctx, routeKill, nil, callOptions{timeout: probeTimeout, retries: probeRetries})
	return err
}

// IsConnectionError reports whether err is a connection-level transport
// failure: the peer is definitely not accepting connections. Timeouts are
// excluded; a timed-out probe proves nothing about the peer.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
