package updatexml

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned for documents that cannot be parsed.
var ErrMalformed = errors.New("updatexml: malformed document")

// CodeNoSuchKey is the vendor error code for an unknown title.
const CodeNoSuchKey = "NoSuchKey"

// VendorError is an error document returned by the vendor instead of an
// update document.
type VendorError struct {
	Code    string
	Message string
}

func (e *VendorError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("vendor error %s: %s", e.Code, e.Message)
	}
	return "vendor error " + e.Code
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
