package client

import (
	"errors"
	"testing"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{status: 200, expected: ""},
		{status: 304, expected: ""},
		{status: 400, expected: ErrorClassClient},
		{status: 401, expected: ErrorClassClient},
		{status: 404, expected: ErrorClassNotFound},
		{status: 429, expected: ErrorClassRateLimit},
		{status: 500, expected: ErrorClassServer},
		{status: 503, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		if result := classifyStatus(tt.status); result != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, result, tt.expected)
		}
	}
}

func TestFetchError_Permanent(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected bool
	}{
		{class: ErrorClassClient, expected: true},
		{class: ErrorClassNotFound, expected: true},
		{class: ErrorClassInvalidQuery, expected: true},
		{class: ErrorClassRateLimit, expected: false},
		{class: ErrorClassServer, expected: false},
		{class: ErrorClassNetwork, expected: false},
		{class: ErrorClassParse, expected: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			err := &FetchError{Class: tt.class}
			if result := err.Permanent(); result != tt.expected {
				t.Errorf("Permanent() = %v, want %v", result, tt.expected)
			}
			if result := catalog.IsPermanent(err); result != tt.expected {
				t.Errorf("catalog.IsPermanent() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFetchError_Error(t *testing.T) {
	q := catalog.Search(catalog.MediaAnime, "naruto")

	tests := []struct {
		name     string
		err      *FetchError
		expected string
	}{
		{
			name:     "status and message",
			err:      &FetchError{Query: q, Cursor: 20, StatusCode: 500, Class: ErrorClassServer, Message: "Internal Server Error"},
			expected: "kitsu server error fetching search:anime:naruto at offset 20 (status 500): Internal Server Error",
		},
		{
			name:     "wrapped error only",
			err:      &FetchError{Query: q, Class: ErrorClassNetwork, Err: errors.New("connection refused")},
			expected: "kitsu network error fetching search:anime:naruto at offset 0: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.err.Error(); result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	err := &FetchError{Class: ErrorClassNotFound, Err: catalog.ErrNotFound}

	if !errors.Is(err, catalog.ErrNotFound) {
		t.Error("errors.Is should find the wrapped error")
	}

	var fe *FetchError
	if !errors.As(error(err), &fe) {
		t.Error("errors.As should match *FetchError")
	}
}
