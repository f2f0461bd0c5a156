package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Timeout is the fixed per-request timeout every Upstream Adapter call
// is subject to.
const Timeout = 10 * time.Second

// UserAgent is the static User-Agent every adapter sends.
const UserAgent = "aggrun/1.0"

// HTTPError wraps a non-2xx response. StatusCode tells 4xx from 5xx;
// the Retry wrapper treats both as retryable.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.Status)
}

// Client performs GET requests for an upstream, applying a fixed timeout,
// static User-Agent and a circuit breaker so a persistently failing
// upstream stops being hammered every tick.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a Client for the given breaker name (normally the
// upstream tag).
func NewClient(name string) *Client {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
	}

	return &Client{
		http:    &http.Client{Timeout: Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Get performs one GET against url and returns the response body, or an
// error. Any non-2xx response is surfaced as an *HTTPError, which Retry
// treats as retryable.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		}

		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}
