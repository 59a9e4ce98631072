package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProviderStatus is a non-success HTTP status from a provider.
	ErrProviderStatus = errors.New("provider returned an error status")
	// ErrProviderResponse is a response that could not be decoded.
	ErrProviderResponse = errors.New("provider response is malformed")
	// ErrNoCredentials means neither a reader token nor a service key is available.
	ErrNoCredentials = errors.New("no credentials for provider call")
)

// StatusError carries the provider's HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrProviderStatus }

// IsQuotaExceeded reports billing or rate refusals, which asset generation treats as
// "no asset" instead of a failure.
func IsQuotaExceeded(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusPaymentRequired || se.StatusCode == http.StatusTooManyRequests
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case IsQuotaExceeded(err):
		return "quota"
	default:
		return "error"
	}
}
