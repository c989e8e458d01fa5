package artwork

import (
	"errors"
	"fmt"
)

var (
	ErrTransport  = errors.New("artwork transport error")
	ErrIO         = errors.New("artwork io error")
	ErrInvalidURL = errors.New("invalid artwork URL")
)

// ErrorKind classifies a CacheError.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport_error"
	KindIO        ErrorKind = "io_error"
)

// CacheError reports a failed Materialize. It matches ErrTransport or ErrIO
// with errors.Is.
type CacheError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("artwork %s for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func (e *CacheError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrIO:
		return e.Kind == KindIO
	}
	return false
}

func transportErr(url string, err error) error {
	return &CacheError{Kind: KindTransport, URL: url, Err: err}
}

func ioErr(url string, err error) error {
	return &CacheError{Kind: KindIO, URL: url, Err: err}
}
