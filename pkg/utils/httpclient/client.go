// Package httpclient provides the outbound HTTP client shared by the
// upstream providers. Retries are not done here; callers wrap calls in a
// resilience.Policy and use StatusError to decide what is retryable.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/mycvconnect/mhire/pkg/utils/json"
)

// maxErrorBody bounds how much of an error body is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is parsed from the Retry-After header when present.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// Client is a wrapper around http.Client with trace propagation.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new HTTP client wrapper.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWith wraps an existing http.Client, mostly for tests.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// Do sends the request after injecting the W3C trace context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.injectTraceContext(req)
	return c.httpClient.Do(req)
}

// DoJSON executes a request and decodes a 2xx JSON body into v. Non-2xx
// responses are returned as *StatusError.
func (c *Client) DoJSON(req *http.Request, v any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckStatus(resp); err != nil {
		return err
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CheckStatus turns a non-2xx response into a *StatusError. It consumes
// at most maxErrorBody bytes of the body on failure.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}

// injectTraceContext 将 W3C Trace Context 头注入到 HTTP 请求中。
// Context 中无活跃 Span 时不写入任何头。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil {
		return
	}
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}
	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
