// Package titleid validates the fixed-format title identifiers (serials)
// used by the vendor update service, e.g. BCUS98148 or CUSA00127.
package titleid

import (
	"errors"
	"fmt"
	"strings"
)

// Length is the fixed length of a title identifier.
const Length = 9

// Platform is the console family a title identifier belongs to.
type Platform string

const (
	PlatformPS3 Platform = "PS3"
	PlatformPS4 Platform = "PS4"
)

// Prefixes mapped to their platform. Checked in order.
var platformPrefixes = []struct {
	prefix   string
	platform Platform
}{
	{"NP", PlatformPS3},
	{"BL", PlatformPS3},
	{"BC", PlatformPS3},
	{"CUSA", PlatformPS4},
}

// ErrInvalidTitleID is the kind of every validation failure.
var ErrInvalidTitleID = errors.New("titleid: invalid title id")

// Reason describes why an identifier was rejected.
type Reason string

const (
	ReasonEmpty           Reason = "empty"
	ReasonLength          Reason = "length"
	ReasonCharset         Reason = "charset"
	ReasonUnknownPlatform Reason = "unknown platform"
)

// InvalidError is returned by Validate.
type InvalidError struct {
	Input  string
	Reason Reason
}

func (e *InvalidError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "invalid title id: empty input"
	case ReasonLength:
		return fmt.Sprintf("invalid title id %q: expected %d characters, got %d", e.Input, Length, len(e.Input))
	case ReasonCharset:
		return fmt.Sprintf("invalid title id %q: expected 4 uppercase letters followed by 5 digits", e.Input)
	default:
		return fmt.Sprintf("invalid title id %q: %s", e.Input, e.Reason)
	}
}

func (e *InvalidError) Unwrap() error { return ErrInvalidTitleID }

// TitleID is a validated title identifier.
type TitleID string

func (id TitleID) String() string { return string(id) }

// Platform returns the console family of the identifier.
func (id TitleID) Platform() Platform {
	p, _ := platformOf(string(id))
	return p
}

// Validate accepts only strings of the exact vendor shape: four uppercase
// ASCII letters with a known platform prefix followed by five digits. The
// input is returned unchanged on success.
func Validate(raw string) (TitleID, error) {
	if raw == "" {
		return "", &InvalidError{Input: raw, Reason: ReasonEmpty}
	}
	if len(raw) != Length {
		return "", &InvalidError{Input: raw, Reason: ReasonLength}
	}
	for i := 0; i < Length; i++ {
		c := raw[i]
		if i < 4 && (c < 'A' || c > 'Z') {
			return "", &InvalidError{Input: raw, Reason: ReasonCharset}
		}
		if i >= 4 && (c < '0' || c > '9') {
			return "", &InvalidError{Input: raw, Reason: ReasonCharset}
		}
	}
	if _, ok := platformOf(raw); !ok {
		return "", &InvalidError{Input: raw, Reason: ReasonUnknownPlatform}
	}
	return TitleID(raw), nil
}

// Normalize cleans up identifiers as they are commonly written by users and
// web sites: surrounding space is trimmed, dashes are dropped
// ("BCES-01234") and letters are upper-cased.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToUpper(s)
}

// Parse normalizes raw and validates the result.
func Parse(raw string) (TitleID, error) {
	return Validate(Normalize(raw))
}

func platformOf(s string) (Platform, bool) {
	for _, p := range platformPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p.platform, true
		}
	}
	return "", false
}
