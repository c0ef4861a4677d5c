// Package external holds the clients for the two services the bridge depends
// on: the hazard prediction service and the SMS provider. Every outbound call
// goes through BaseClient, which adds trace propagation, circuit breaking
// and error mapping.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"impactalert/internal/types"

	"github.com/sony/gobreaker/v2"
)

// BaseClient wraps an *http.Client and an optional circuit breaker. Every
// call is a single attempt; a failed call is reported and never replayed.
type BaseClient struct {
	client        *http.Client
	breaker       *gobreaker.CircuitBreaker[*http.Response]
	userAgent     string
	finalResponse bool
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithFinalResponse makes Do hand back a 429/5xx response instead of a mapped
// error, so the caller can read the upstream's own error body.
func WithFinalResponse() BaseClientOption {
	return func(c *BaseClient) {
		c.finalResponse = true
	}
}

// NewBaseClient creates a BaseClient whose breaker opens after more than five
// consecutive failures and probes again after 30 seconds.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewBaseClientWithBreaker(httpClient, cb, userAgent, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. A nil breaker sends every request straight to the upstream.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	bc := &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from the request ID in context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping, when a breaker is set
//  4. Error mapping to types.AppError
//
// Any response other than 429/5xx is returned as-is; the caller closes the
// body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}

	if resp != nil {
		if c.finalResponse {
			return resp, nil
		}
		resp.Body.Close()
	}
	return nil, c.mapError(resp, err)
}

func (c *BaseClient) execute(call func() (*http.Response, error)) (*http.Response, error) {
	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(call)
}

// mapError translates transport-level failures into AppErrors. The message
// keeps the underlying error text so callers can surface it verbatim.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d", resp.StatusCode),
				err,
			)
		}
	}

	msg := "upstream request failed"
	if err != nil {
		msg = err.Error()
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, msg, err)
}
