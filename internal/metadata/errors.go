package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrProvider      = errors.New("provider error")
	ErrTransport     = errors.New("transport error")
	ErrNotConfigured = errors.New("provider credential not configured")
	ErrUnknown       = errors.New("unknown provider")
)

// ErrorKind classifies a SearchError.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindProvider    ErrorKind = "provider_error"
	KindTransport   ErrorKind = "transport_error"
)

// SearchError is the terminal failure of a provider search. A provider
// error with no StatusCode carries the provider's own Message.
// It matches ErrRateLimited, ErrProvider or ErrTransport with errors.Is.
type SearchError struct {
	Kind       ErrorKind
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *SearchError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("%s: rate limited, retries exhausted", e.Provider.Service())
	case KindProvider:
		if e.StatusCode == 0 {
			return fmt.Sprintf("%s error: %s", e.Provider.Service(), e.Message)
		}
		return fmt.Sprintf("%s error: HTTP %d", e.Provider.Service(), e.StatusCode)
	default:
		return fmt.Sprintf("%s request failed: %s", e.Provider.Service(), e.Message)
	}
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func (e *SearchError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrProvider:
		return e.Kind == KindProvider
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}
