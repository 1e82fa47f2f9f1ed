package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// maxBodyBytes caps a response body read.
const maxBodyBytes = 4 << 20

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithResilience executes the HTTP request through a circuit breaker,
// retrying with exponential backoff up to cfg.Backoff.MaxRetries times, and
// returns the response body. Every failure wraps weather.ErrTransport; non-2xx
// statuses are reported as a *weather.StatusError.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", weather.ErrTransport, err)
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
				return nil, &weather.StatusError{Code: strconv.Itoa(resp.StatusCode), Transport: true}
			}
			return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		})

		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrTransport, errCircuitOpen, err)
		}

		var se *weather.StatusError
		if !errors.As(err, &se) {
			err = fmt.Errorf("%w: %w", weather.ErrTransport, err)
		}
		if attempt >= cfg.Backoff.MaxRetries || !retryable(se) {
			return nil, err
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", weather.ErrTransport, ctx.Err())
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// retryable reports whether a failed exchange is worth another attempt.
// Client errors other than rate limiting are not.
func retryable(se *weather.StatusError) bool {
	if se == nil {
		return true
	}
	code, _ := strconv.Atoi(se.Code)
	return code == http.StatusTooManyRequests || code >= 500
}
