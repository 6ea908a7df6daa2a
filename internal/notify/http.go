package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/manav03panchal/livedesk/internal/config"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
)

// errClientStatus marks 4xx responses. They are final for the request but
// say nothing about the host's health, so they do not count against its
// breaker.
var errClientStatus = errors.New("client error")

// HTTPClient posts webhook payloads with retries. Each destination host has
// its own circuit breaker, so one dead endpoint does not slow delivery to
// the others.
type HTTPClient struct {
	client     *http.Client
	maxRetries int
	retryDelay []time.Duration

	breakerFailures uint32
	breakerTimeout  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPClient creates a client from config.Global.HTTP.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(config.Global.HTTP)
}

// NewHTTPClientWithConfig creates a client from cfg.
func NewHTTPClientWithConfig(cfg config.HTTPConfig) *HTTPClient {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPClient{
		client:          &http.Client{Timeout: cfg.Timeout},
		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelays,
		breakerFailures: failures,
		breakerTimeout:  timeout,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
}

// breaker returns the circuit breaker for rawURL's host.
func (c *HTTPClient) breaker(rawURL string) *gobreaker.CircuitBreaker {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClientStatus)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("webhook circuit state changed",
				"host", name,
				"from", from.String(),
				"to", to.String())
		},
	})
	c.breakers[host] = cb
	return cb
}

// BreakerState reports the circuit state for rawURL's host.
func (c *HTTPClient) BreakerState(rawURL string) gobreaker.State {
	return c.breaker(rawURL).State()
}

// Send posts body to url, retrying transport errors, 429 and 5xx. An open
// circuit fails fast with a recoverable error.
func (c *HTTPClient) Send(ctx context.Context, url string, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()
	cb := c.breaker(url)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		if attempt > 0 && attempt < len(c.retryDelay) {
			select {
			case <-ctx.Done():
				result.Error = ctx.Err()
				result.Duration = time.Since(start)
				return result
			case <-time.After(c.retryDelay[attempt]):
			}
		}

		status, err := cb.Execute(func() (interface{}, error) {
			return c.post(ctx, url, contentType, body)
		})
		if code, ok := status.(int); ok {
			result.StatusCode = code
		}

		switch {
		case err == nil:
			result.Error = nil
			result.Duration = time.Since(start)
			return result
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			result.Error = lderrors.NewRecoverableError("webhook host unavailable", err, 0)
			result.Duration = time.Since(start)
			return result
		case errors.Is(err, errClientStatus):
			result.Error = err
			result.Duration = time.Since(start)
			return result
		default:
			result.Error = err
		}
	}

	result.Duration = time.Since(start)
	if result.Error == nil {
		result.Error = fmt.Errorf("max retries exceeded")
	}
	return result
}

// post performs one request and maps the status to an error.
func (c *HTTPClient) post(ctx context.Context, url, contentType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %v", errClientStatus, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "livedesk/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, fmt.Errorf("rate limited (HTTP 429)")
	case resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, string(bodyBytes))
	default:
		return resp.StatusCode, fmt.Errorf("%w (HTTP %d): %s", errClientStatus, resp.StatusCode, string(bodyBytes))
	}
}

// SendWithTimeout sends a request with a specific timeout.
func (c *HTTPClient) SendWithTimeout(url string, contentType string, body []byte, timeout time.Duration) *SendResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Send(ctx, url, contentType, body)
}
