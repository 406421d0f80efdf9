// Package dispatcher sends buffered events to the remote collector.
package dispatcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request is one POST to the collector.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Response is what the dispatcher needs to know about the collector's answer.
type Response struct {
	StatusCode int
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs the network request. Implementations own the request timeout;
// a timeout is returned as an error.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// HTTPDoer abstracts HTTP client operations for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements HTTPDoer.
var _ HTTPDoer = (*http.Client)(nil)

// HTTPTransport is the default Transport, backed by net/http.
type HTTPTransport struct {
	client HTTPDoer
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client for testing.
func WithHTTPClient(client HTTPDoer) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// NewHTTPTransport creates a transport whose requests give up after timeout.
// The default client propagates trace context to the collector.
func NewHTTPTransport(timeout time.Duration, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send performs the request and drains the response body so the connection can be reused.
func (t *HTTPTransport) Send(ctx context.Context, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return Response{StatusCode: resp.StatusCode}, nil
}
