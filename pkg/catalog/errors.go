package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned when a Query cannot be sent upstream.
	ErrInvalidQuery = errors.New("invalid catalog query")

	// ErrNotFound is returned when a slug or id matches no record.
	ErrNotFound = errors.New("catalog record not found")
)

// ParseError reports a response body that does not match the JSON:API shape.
type ParseError struct {
	// Reason names the part of the document that failed (e.g. "data", "next link").
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Reason, e.Err)
	}
	return "parse " + e.Reason
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err will fail again if the same request is
// repeated (unknown slug, invalid query, 4xx). Errors that do not classify
// themselves are treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidQuery) || errors.Is(err, ErrNotFound) {
		return true
	}
	var p interface{ Permanent() bool }
	if errors.As(err, &p) {
		return p.Permanent()
	}
	return false
}
