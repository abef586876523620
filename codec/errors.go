// Package codec serializes configuration snapshots to and from their
// JSON wire format. Decode is schema-directed and sits on a trust
// boundary: the compiled feature schema dictates every value type, and
// payload-provided class names are parsed but never used to locate a
// feature or select a decoder. Failures are always returned as a typed
// *ParseError, never panicked.
package codec

import (
	"fmt"

	"github.com/TimurManjosov/konditional/feature"
)

// ErrorKind discriminates the parse-error taxonomy.
type ErrorKind string

const (
	KindInvalidJSON     ErrorKind = "INVALID_JSON"
	KindInvalidSnapshot ErrorKind = "INVALID_SNAPSHOT"
	KindFeatureNotFound ErrorKind = "FEATURE_NOT_FOUND"
	KindInvalidHexID    ErrorKind = "INVALID_HEX_ID"
	KindInvalidRollout  ErrorKind = "INVALID_ROLLOUT"
	KindInvalidVersion  ErrorKind = "INVALID_VERSION"
	KindTypeMismatch    ErrorKind = "TYPE_MISMATCH"
	KindSchemaViolation ErrorKind = "SCHEMA_VIOLATION"
)

// ParseError is the typed failure of every codec operation.
type ParseError struct {
	Kind ErrorKind
	// Key is the feature the error is attached to, when known.
	Key feature.ID
	// Detail is the human-readable reason.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	if e.Key != "" {
		msg = fmt.Sprintf("%s (feature %s)", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches two ParseErrors by kind, so callers can probe with
// errors.Is(err, &ParseError{Kind: KindInvalidRollout}).
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	return ok && t.Kind == e.Kind && (t.Key == "" || t.Key == e.Key)
}

func parseErrf(kind ErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func keyedErr(kind ErrorKind, key feature.ID, detail string, err error) *ParseError {
	return &ParseError{Kind: kind, Key: key, Detail: detail, Err: err}
}
