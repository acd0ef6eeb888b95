package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/kitsu-catalog/internal/testutil"
	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
)

const testUserAgent = "KitsuCatalogTest/1.0.0 (test@example.com)"

// newTestClient creates a client against baseURL without client-side throttling.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig(testUserAgent)
	cfg.BaseURL = baseURL
	cfg.RateLimit = 0
	cfg.Timeout = 5 * time.Second

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// requireFetchError asserts err is a *FetchError of the given class.
func requireFetchError(t *testing.T, err error, class ErrorClass) *FetchError {
	t.Helper()

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v (%T), want *FetchError", err, err)
	}
	if fe.Class != class {
		t.Fatalf("Class = %q, want %q (err: %v)", fe.Class, class, err)
	}
	return fe
}

func requestQuery(t *testing.T, request string) url.Values {
	t.Helper()
	_, raw, _ := strings.Cut(request, "?")
	values, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q) error = %v", raw, err)
	}
	return values
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(testUserAgent),
			expectError: false,
		},
		{
			name:        "empty base url uses default",
			config:      Config{UserAgent: testUserAgent},
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      DefaultConfig(""),
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "relative base url",
			config:      Config{UserAgent: testUserAgent, BaseURL: "/api/edge"},
			expectError: true,
			errorMsg:    "base url must be absolute",
		},
		{
			name:        "negative timeout",
			config:      Config{UserAgent: testUserAgent, Timeout: -time.Second},
			expectError: true,
			errorMsg:    "timeout must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error = %q, want containing %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.baseURL == "" {
				t.Error("baseURL should be set")
			}
		})
	}
}

func TestFetchPage_Search(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()
	mock.AddMedia(testutil.AnimeSeries("Naruto", 1, 25)...)
	mock.AddMedia(testutil.Media(catalog.TypeAnime, "99", "bleach", "Bleach"))

	c := newTestClient(t, mock.URL())
	ctx := context.Background()

	page, err := c.FetchPage(ctx, catalog.Search(catalog.MediaAnime, "naruto"), 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Items) != catalog.DefaultSearchLimit {
		t.Errorf("len(Items) = %d, want %d", len(page.Items), catalog.DefaultSearchLimit)
	}
	if !page.HasNext() || *page.Next != 10 {
		t.Errorf("Next = %v, want 10", page.Next)
	}
	if page.Total != 25 {
		t.Errorf("Total = %d, want 25", page.Total)
	}
	if page.Items[0].ID != "1" {
		t.Errorf("first item = %s, want anime/1", page.Items[0].Identity())
	}

	if ua := mock.LastRequestHeader.Get("User-Agent"); ua != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, testUserAgent)
	}
	if accept := mock.LastRequestHeader.Get("Accept"); accept != MediaTypeJSONAPI {
		t.Errorf("Accept = %q, want %q", accept, MediaTypeJSONAPI)
	}

	// Last page: no next cursor.
	page, err = c.FetchPage(ctx, catalog.Search(catalog.MediaAnime, "naruto"), 20)
	if err != nil {
		t.Fatalf("FetchPage(20) error = %v", err)
	}
	if len(page.Items) != 5 {
		t.Errorf("len(Items) = %d, want 5", len(page.Items))
	}
	if page.HasNext() {
		t.Errorf("Next = %v, want nil", *page.Next)
	}

	values := requestQuery(t, mock.Requests()[1])
	if got := values.Get("page[offset]"); got != "20" {
		t.Errorf("page[offset] = %q, want 20", got)
	}
	if got := values.Get("filter[text]"); got != "naruto" {
		t.Errorf("filter[text] = %q, want naruto", got)
	}
}

func TestFetchPage_CastingsResolvesSlug(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()
	mock.AddMedia(testutil.Media(catalog.TypeAnime, "7", "fullmetal-alchemist", "Fullmetal Alchemist"))
	mock.SetCollection("/castings", testutil.Collection{Items: testutil.Characters(1, 30), Indirect: true})

	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), catalog.Characters(catalog.MediaAnime, "fullmetal-alchemist"), 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Items) != catalog.DefaultRelationLimit {
		t.Errorf("len(Items) = %d, want %d", len(page.Items), catalog.DefaultRelationLimit)
	}
	for _, item := range page.Items {
		if item.Type != catalog.TypeCharacters {
			t.Fatalf("item type = %q, want items from the included side-table", item.Type)
		}
	}
	if !page.HasNext() || *page.Next != 20 {
		t.Errorf("Next = %v, want 20", page.Next)
	}

	requests := mock.Requests()
	if len(requests) != 2 {
		t.Fatalf("requests = %v, want slug lookup then castings", requests)
	}
	if !strings.HasPrefix(requests[0], "/anime?") {
		t.Errorf("first request = %q, want slug lookup", requests[0])
	}
	if got := requestQuery(t, requests[0]).Get("filter[slug]"); got != "fullmetal-alchemist" {
		t.Errorf("filter[slug] = %q", got)
	}

	castings := requestQuery(t, requests[1])
	wantFilters := map[string]string{
		"filter[media_id]":     "7",
		"filter[media_type]":   "Anime",
		"filter[is_character]": "true",
		"filter[language]":     "Japanese",
		"include":              "character,person",
		"sort":                 "-featured",
		"page[limit]":          "20",
		"page[offset]":         "0",
	}
	for key, want := range wantFilters {
		if got := castings.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestFetchPage_UnknownSlug(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	q := catalog.Franchises(catalog.MediaManga, "does-not-exist")
	_, err := c.FetchPage(context.Background(), q, 0)

	fe := requireFetchError(t, err, ErrorClassNotFound)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Error("error should wrap catalog.ErrNotFound")
	}
	if !catalog.IsPermanent(err) {
		t.Error("unknown slug should be permanent")
	}
	if fe.Query.Kind != catalog.KindMediaRelationships {
		t.Errorf("Query.Kind = %q, want the requested collection", fe.Query.Kind)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("requests = %d, want only the slug lookup", got)
	}
}

func TestFetchPage_ErrorResponses(t *testing.T) {
	tests := []struct {
		name          string
		response      testutil.MockResponse
		wantClass     ErrorClass
		wantPermanent bool
		wantMessage   string
	}{
		{
			name:          "server error",
			response:      testutil.NewServerErrorResponse(),
			wantClass:     ErrorClassServer,
			wantPermanent: false,
			wantMessage:   "Internal Server Error",
		},
		{
			name:          "bad request",
			response:      testutil.NewBadRequestResponse("filter[text] is invalid"),
			wantClass:     ErrorClassClient,
			wantPermanent: true,
			wantMessage:   "Invalid filter: filter[text] is invalid",
		},
		{
			name:          "not found",
			response:      testutil.NewNotFoundResponse(),
			wantClass:     ErrorClassNotFound,
			wantPermanent: true,
			wantMessage:   "Record not found",
		},
		{
			name:          "rate limited",
			response:      testutil.NewRateLimitResponse(30),
			wantClass:     ErrorClassRateLimit,
			wantPermanent: false,
			wantMessage:   "Too Many Requests",
		},
		{
			name:          "plain text error",
			response:      testutil.MockResponse{StatusCode: http.StatusBadGateway, Body: "upstream down"},
			wantClass:     ErrorClassServer,
			wantPermanent: false,
			wantMessage:   "502 Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockKitsu()
			defer mock.Close()
			mock.SetResponse("/anime", tt.response)

			c := newTestClient(t, mock.URL())

			_, err := c.FetchPage(context.Background(), catalog.Search(catalog.MediaAnime, "x"), 30)
			fe := requireFetchError(t, err, tt.wantClass)

			if fe.StatusCode != tt.response.StatusCode {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.response.StatusCode)
			}
			if fe.Cursor != 30 {
				t.Errorf("Cursor = %d, want 30", fe.Cursor)
			}
			if fe.Permanent() != tt.wantPermanent {
				t.Errorf("Permanent() = %v, want %v", fe.Permanent(), tt.wantPermanent)
			}
			if fe.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", fe.Message, tt.wantMessage)
			}
		})
	}
}

func TestFetchPage_BackoffBlocksFollowingRequests(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()
	mock.AddMedia(testutil.AnimeSeries("Naruto", 1, 3)...)
	mock.FailNext("/anime", testutil.NewRateLimitResponse(60), 1)

	c := newTestClient(t, mock.URL())
	ctx := context.Background()
	q := catalog.Search(catalog.MediaAnime, "naruto")

	_, err := c.FetchPage(ctx, q, 0)
	requireFetchError(t, err, ErrorClassRateLimit)

	_, err = c.FetchPage(ctx, q, 0)
	requireFetchError(t, err, ErrorClassRateLimit)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("second error = %v, want ErrRateLimited", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1 (second refused locally)", got)
	}
}

func TestFetchPage_MalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "not json", body: "<html>oops</html>"},
		{name: "missing data", body: `{"meta":{"count":3}}`},
		{name: "bad next link", body: `{"data":[],"links":{"next":"https://kitsu.io/api/edge/anime?page%5Boffset%5D=ten"}}`, wantErr: catalog.ErrMalformedLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockKitsu()
			defer mock.Close()
			mock.SetResponse("/anime", testutil.MockResponse{StatusCode: http.StatusOK, Body: tt.body})

			c := newTestClient(t, mock.URL())

			_, err := c.FetchPage(context.Background(), catalog.Search(catalog.MediaAnime, "x"), 0)
			requireFetchError(t, err, ErrorClassParse)

			var pe *catalog.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error should wrap *catalog.ParseError: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want wrapping %v", err, tt.wantErr)
			}
			if catalog.IsPermanent(err) {
				t.Error("parse errors should not be permanent")
			}
		})
	}
}

func TestFetchPage_InvalidQuery(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()

	c := newTestClient(t, mock.URL())
	ctx := context.Background()

	tests := []struct {
		name  string
		query catalog.Query
	}{
		{name: "blank search", query: catalog.Search(catalog.MediaAnime, "   ")},
		{name: "unknown media", query: catalog.Search("music", "x")},
		{name: "record kind", query: catalog.BySlug(catalog.MediaAnime, "naruto")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchPage(ctx, tt.query, 0)
			requireFetchError(t, err, ErrorClassInvalidQuery)
			if !errors.Is(err, catalog.ErrInvalidQuery) {
				t.Errorf("error should wrap ErrInvalidQuery: %v", err)
			}
			if !catalog.IsPermanent(err) {
				t.Error("invalid query should be permanent")
			}
		})
	}

	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("requests = %d, want none for invalid queries", got)
	}
}

func TestFetchPage_Trending(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()
	mock.AddMedia(testutil.AnimeSeries("Show", 1, 25)...)

	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), catalog.Trending(catalog.MediaAnime), 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Items) != catalog.DefaultTrendingLimit {
		t.Errorf("len(Items) = %d, want %d", len(page.Items), catalog.DefaultTrendingLimit)
	}
	if page.HasNext() {
		t.Error("trending is a single page")
	}
	if got := requestQuery(t, mock.Requests()[0]).Get("limit"); got != "18" {
		t.Errorf("limit = %q, want 18", got)
	}
}

func TestFetchPage_NetworkError(t *testing.T) {
	mock := testutil.NewMockKitsu()
	baseURL := mock.URL()
	mock.Close()

	c := newTestClient(t, baseURL)

	_, err := c.FetchPage(context.Background(), catalog.Search(catalog.MediaAnime, "x"), 0)
	fe := requireFetchError(t, err, ErrorClassNetwork)
	if fe.Permanent() {
		t.Error("network errors should not be permanent")
	}
}

func TestFetchPage_ContextCanceled(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()
	mock.SetResponse("/anime", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"data":[]}`, Delay: time.Second})

	c := newTestClient(t, mock.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchPage(ctx, catalog.Search(catalog.MediaAnime, "x"), 0)
	requireFetchError(t, err, ErrorClassNetwork)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want wrapping context.DeadlineExceeded", err)
	}
}

func TestFetchRecord(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()
	mock.AddMedia(testutil.Media(catalog.TypeManga, "12", "berserk", "Berserk"))

	c := newTestClient(t, mock.URL())
	ctx := context.Background()

	rec, err := c.FetchRecord(ctx, catalog.BySlug(catalog.MediaManga, "berserk"))
	if err != nil {
		t.Fatalf("FetchRecord(slug) error = %v", err)
	}
	if rec.Entity.CanonicalTitle() != "Berserk" {
		t.Errorf("CanonicalTitle() = %q, want Berserk", rec.Entity.CanonicalTitle())
	}
	if got := requestQuery(t, mock.Requests()[0]).Get("include"); got != "categories" {
		t.Errorf("include = %q, want categories for manga", got)
	}

	rec, err = c.FetchRecord(ctx, catalog.ByID(catalog.MediaManga, "12"))
	if err != nil {
		t.Fatalf("FetchRecord(id) error = %v", err)
	}
	if rec.Entity.Slug() != "berserk" {
		t.Errorf("Slug() = %q, want berserk", rec.Entity.Slug())
	}

	_, err = c.FetchRecord(ctx, catalog.BySlug(catalog.MediaManga, "missing"))
	requireFetchError(t, err, ErrorClassNotFound)

	_, err = c.FetchRecord(ctx, catalog.ByID(catalog.MediaManga, "404"))
	requireFetchError(t, err, ErrorClassNotFound)

	_, err = c.FetchRecord(ctx, catalog.Search(catalog.MediaManga, "berserk"))
	requireFetchError(t, err, ErrorClassInvalidQuery)
}

func TestDo_SetsHeaders(t *testing.T) {
	mock := testutil.NewMockKitsu()
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, mock.URL()+"/trending/anime", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if ua := mock.LastRequestHeader.Get("User-Agent"); ua != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, testUserAgent)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/api/edge/anime", want: "/api/edge/anime"},
		{path: "/api/edge/anime/1234", want: "/api/edge/anime/:id"},
		{path: "/castings", want: "/castings"},
		{path: "/trending/manga", want: "/trending/manga"},
	}

	for _, tt := range tests {
		if got := endpointLabel(tt.path); got != tt.want {
			t.Errorf("endpointLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
