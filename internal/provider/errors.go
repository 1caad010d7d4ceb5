package provider

import (
	"errors"
	"fmt"
)

// ErrTimeout matches any FetchError caused by the per-call deadline.
var ErrTimeout = errors.New("request timed out")

// FetchError reports a transport failure, a non-2xx status or a timeout.
type FetchError struct {
	Status  int
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return "fetch failed: " + ErrTimeout.Error()
	case e.Status != 0:
		return fmt.Sprintf("fetch failed: HTTP %d", e.Status)
	case e.Err != nil:
		return "fetch failed: " + e.Err.Error()
	default:
		return "fetch failed"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimeout) match timed-out fetches.
func (e *FetchError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}

// ProviderError is a semantic failure reported by the provider itself,
// such as rejected tags or missing credentials.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// ParseError reports a malformed provider payload.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse response: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// IsFetchFailure reports whether err is a transport or parse failure,
// the two kinds callers treat the same way.
func IsFetchFailure(err error) bool {
	var fe *FetchError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}
