package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
)

// ErrRateLimited is returned when a request is refused locally because the
// upstream asked us to back off.
var ErrRateLimited = errors.New("request blocked: kitsu backoff active")

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 404 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassNotFound represents 404 responses and unknown slugs.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassRateLimit represents 429 responses and locally blocked requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassParse represents bodies that are not valid JSON:API documents.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassInvalidQuery represents queries rejected before any request.
	ErrorClassInvalidQuery ErrorClass = "invalid_query"
)

// FetchError is returned by FetchPage and FetchRecord. It carries the
// attempted query and cursor so callers can report or retry from the same point.
type FetchError struct {
	Query      catalog.Query
	Cursor     catalog.Cursor
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("kitsu %s error fetching %s at offset %d", e.Class, e.Query, e.Cursor)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Permanent reports whether repeating the same request is pointless.
func (e *FetchError) Permanent() bool {
	switch e.Class {
	case ErrorClassClient, ErrorClassNotFound, ErrorClassInvalidQuery:
		return true
	default:
		return false
	}
}

// classifyStatus maps a non-success HTTP status to an error class.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == 404:
		return ErrorClassNotFound
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
