// Package testutil provides testing utilities for the Kitsu catalog client.
package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
)

// DefaultPageSize is served when a request carries no page[limit].
const DefaultPageSize = 10

// MockResponse defines the behavior for a mock Kitsu endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Collection is a paged listing served by the mock.
type Collection struct {
	Items []catalog.Entity

	// Indirect serves Items in the included side-table with join stubs in data,
	// the way castings and media relationships are shaped.
	Indirect bool

	// Total overrides meta.count. Zero reports len(Items).
	Total int
}

// MockKitsu is a configurable mock Kitsu server for testing.
// Unless overridden, /{anime,manga} serve slug lookups, text search and
// plain listing over the media registered with AddMedia, and
// /trending/{anime,manga} serve the first registered media.
type MockKitsu struct {
	server      *httptest.Server
	mu          sync.RWMutex
	handlers    map[string]func(w http.ResponseWriter, r *http.Request)
	collections map[string]Collection
	failures    map[string][]MockResponse
	media       map[string][]catalog.Entity

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	requests          []string
}

// NewMockKitsu creates a new mock Kitsu server.
func NewMockKitsu() *MockKitsu {
	mock := &MockKitsu{
		handlers:    make(map[string]func(w http.ResponseWriter, r *http.Request)),
		collections: make(map[string]Collection),
		failures:    make(map[string][]MockResponse),
		media:       make(map[string][]catalog.Entity),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.requests = append(mock.requests, r.URL.Path+"?"+r.URL.RawQuery)

		if r.Header.Get("If-None-Match") != "" {
			mock.ConditionalCount++
		}

		var failure *MockResponse
		if queued := mock.failures[r.URL.Path]; len(queued) > 0 {
			failure = &queued[0]
			mock.failures[r.URL.Path] = queued[1:]
		}
		handler, hasHandler := mock.handlers[r.URL.Path]
		collection, hasCollection := mock.collections[r.URL.Path]
		mock.mu.Unlock()

		switch {
		case failure != nil:
			writeResponse(w, *failure)
		case hasHandler:
			handler(w, r)
		case hasCollection:
			WriteJSON(w, r, PageDocument(r, collection))
		default:
			mock.defaultHandler(w, r)
		}
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockKitsu) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockKitsu) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockKitsu) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockKitsu) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockKitsu) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetCollection serves items at path, paged by page[offset] and page[limit].
func (m *MockKitsu) SetCollection(path string, c Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[path] = c
}

// FailNext makes the next times requests to path answer with resp before
// normal handling resumes.
func (m *MockKitsu) FailNext(path string, resp MockResponse, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < times; i++ {
		m.failures[path] = append(m.failures[path], resp)
	}
}

// AddMedia registers anime or manga records for the default handlers.
func (m *MockKitsu) AddMedia(items ...catalog.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range items {
		m.media[e.Type] = append(m.media[e.Type], e)
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockKitsu) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockKitsu) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// Requests returns the path and raw query of every request, in arrival order.
func (m *MockKitsu) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// defaultHandler serves the registered media like the Kitsu edge API.
func (m *MockKitsu) defaultHandler(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(segments) == 2 && segments[0] == "trending":
		items := m.mediaOf(segments[1])
		limit := DefaultPageSize
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = v
		}
		if len(items) > limit {
			items = items[:limit]
		}
		WriteJSON(w, r, map[string]any{"data": items})

	case len(segments) == 2 && isMediaType(segments[0]):
		for _, e := range m.mediaOf(segments[0]) {
			if e.ID == segments[1] {
				WriteJSON(w, r, map[string]any{"data": e})
				return
			}
		}
		WriteNotFound(w)

	case len(segments) == 1 && isMediaType(segments[0]):
		items := m.mediaOf(segments[0])
		query := r.URL.Query()
		if slug := query.Get("filter[slug]"); slug != "" {
			var matched []catalog.Entity
			for _, e := range items {
				if e.Slug() == slug {
					matched = append(matched, e)
				}
			}
			WriteJSON(w, r, map[string]any{"data": emptyIfNil(matched)})
			return
		}
		if text := catalog.NormalizeTitle(query.Get("filter[text]")); text != "" {
			var matched []catalog.Entity
			for _, e := range items {
				if strings.Contains(catalog.NormalizeTitle(e.CanonicalTitle()), text) {
					matched = append(matched, e)
				}
			}
			items = matched
		}
		WriteJSON(w, r, PageDocument(r, Collection{Items: items}))

	default:
		WriteNotFound(w)
	}
}

func (m *MockKitsu) mediaOf(typ string) []catalog.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.Entity(nil), m.media[typ]...)
}

func isMediaType(s string) bool {
	return s == catalog.TypeAnime || s == catalog.TypeManga
}

func emptyIfNil(items []catalog.Entity) []catalog.Entity {
	if items == nil {
		return []catalog.Entity{}
	}
	return items
}

// PageDocument renders the window of c selected by the request's
// page[offset] and page[limit], with a links.next when more items follow.
func PageDocument(r *http.Request, c Collection) map[string]any {
	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get("page[offset]"))
	if offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(query.Get("page[limit]"))
	if err != nil || limit <= 0 {
		limit = DefaultPageSize
	}

	start := min(offset, len(c.Items))
	end := min(offset+limit, len(c.Items))
	window := c.Items[start:end]

	total := c.Total
	if total == 0 {
		total = len(c.Items)
	}

	doc := map[string]any{
		"meta":  map[string]any{"count": total},
		"links": map[string]any{},
	}
	if c.Indirect {
		stubs := make([]catalog.Entity, len(window))
		for i := range window {
			stubs[i] = catalog.Entity{ID: strconv.Itoa(offset + i + 1), Type: "joins"}
		}
		doc["data"] = stubs
		doc["included"] = emptyIfNil(window)
	} else {
		doc["data"] = emptyIfNil(window)
	}

	if end < len(c.Items) {
		next := url.Values{}
		for k, v := range query {
			next[k] = v
		}
		next.Set("page[offset]", strconv.Itoa(end))
		next.Set("page[limit]", strconv.Itoa(limit))
		doc["links"] = map[string]any{
			"next": "http://" + r.Host + r.URL.Path + "?" + next.Encode(),
		}
	}
	return doc
}

// WriteJSON writes v as a JSON:API body with a content-derived ETag and
// answers 304 to matching conditional requests.
func WriteJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`

	w.Header().Set("Content-Type", catalogContentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "max-age=0, private, must-revalidate")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// WriteNotFound writes a JSON:API 404 error document.
func WriteNotFound(w http.ResponseWriter) {
	writeResponse(w, NewNotFoundResponse())
}

const catalogContentType = "application/vnd.api+json"

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewNotFoundResponse creates a 404 response with a JSON:API errors array.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"errors":[{"title":"Record not found","detail":"The record identified by the request could not be found.","code":"404","status":"404"}]}`,
		Headers:    map[string]string{"Content-Type": catalogContentType},
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":[{"title":"Too Many Requests","status":"429"}]}`,
		Headers: map[string]string{
			"Content-Type": catalogContentType,
			"Retry-After":  strconv.Itoa(retryAfter),
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":[{"title":"Internal Server Error","status":"500"}]}`,
		Headers:    map[string]string{"Content-Type": catalogContentType},
	}
}

// NewBadRequestResponse creates a 400 response, as Kitsu answers malformed filters.
func NewBadRequestResponse(detail string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"errors": []map[string]string{{"title": "Invalid filter", "detail": detail, "status": "400"}},
	})
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": catalogContentType},
	}
}
