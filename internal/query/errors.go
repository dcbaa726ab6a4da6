package query

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNetwork       = errors.New("query: network failure")
	ErrHTTPStatus    = errors.New("query: unexpected http status")
	ErrEmptyResponse = errors.New("query: empty response")
	ErrBodyTooLarge  = errors.New("query: response body too large")
)

// Error describes a failed query. Kind is one of the package sentinels.
type Error struct {
	Kind       error
	URL        string
	StatusCode int // set for ErrHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrHTTPStatus:
		return fmt.Sprintf("%s: %d (%s)", e.Kind, e.StatusCode, e.URL)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s (%s)", e.Kind, e.URL)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.StatusCode
	}
	return 0
}
