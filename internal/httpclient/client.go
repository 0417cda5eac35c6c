package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	ierr "github.com/packlane/packlane/internal/errors"
)

// Request represents an HTTP request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Client interface for making HTTP requests
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// DefaultClient implements the Client interface with bounded retries on
// transient failures
type DefaultClient struct {
	client *retryablehttp.Client
}

// NewDefaultClient creates a new DefaultClient
func NewDefaultClient() Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil
	return &DefaultClient{client: rc}
}

// Send executes the request and returns the response
func (c *DefaultClient) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build HTTP request").
			Mark(ierr.ErrHTTPClient)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("HTTP request failed").
			WithReportableDetails(map[string]any{
				"url":    req.URL,
				"method": req.Method,
			}).
			Mark(ierr.ErrHTTPClient)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read HTTP response body").
			Mark(ierr.ErrHTTPClient)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    make(map[string]string, len(httpResp.Header)),
	}
	for k := range httpResp.Header {
		resp.Headers[k] = httpResp.Header.Get(k)
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return resp, ierr.NewError("http request returned an error status").
			WithHint("Upstream service rejected the request").
			WithReportableDetails(map[string]any{
				"url":         req.URL,
				"method":      req.Method,
				"status_code": httpResp.StatusCode,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	return resp, nil
}
