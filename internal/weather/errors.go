package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers network failures, timeouts, open circuits and non-2xx responses.
	ErrTransport = errors.New("transport failure")
	// ErrLogical is a successful transport whose body signals a non-success status.
	ErrLogical = errors.New("logical failure")
	// ErrCoordinatesUnavailable is returned when neither the store nor geocoding yields coordinates.
	ErrCoordinatesUnavailable = errors.New("coordinates unavailable")
	// ErrMalformedSample marks a single data point that failed to parse.
	ErrMalformedSample = errors.New("malformed sample")
	// ErrUnavailable is the terminal outcome of an exhausted fallback chain.
	ErrUnavailable = errors.New("category unavailable")

	ErrLocationNotFound = errors.New("location not found")
	ErrNoDashboard      = errors.New("no dashboard for location")
	ErrLocationExists   = errors.New("location already exists")
	// ErrNoLocation means nothing is saved and no default is configured.
	ErrNoLocation = errors.New("no location configured")
	// ErrNotConfigured is returned when the provider API key is missing.
	ErrNotConfigured = errors.New("weather provider is not configured")
)

// SuccessCode is the provider's status code for a usable response.
const SuccessCode = "200"

// StatusError carries a non-success status. Transport is set for HTTP-level
// statuses, otherwise the code came from the response body.
type StatusError struct {
	Code      string
	Transport bool
}

func (e *StatusError) Error() string {
	if e.Transport {
		return fmt.Sprintf("http status %s", e.Code)
	}
	return fmt.Sprintf("provider status %s", e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Transport {
		return ErrTransport
	}
	return ErrLogical
}

// StatusCode extracts the provider or HTTP status from err, if any.
func StatusCode(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// shouldFallback reports whether a primary failure advances to the coordinate-based step.
func shouldFallback(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrLogical)
}
