// Package client provides the Kitsu catalog API client with rate limiting,
// upstream backoff tracking and error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/Sternrassler/kitsu-catalog/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Kitsu client operations.
var (
	kitsuRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsu_requests_total",
		Help: "Total Kitsu requests by endpoint and status",
	}, []string{"endpoint", "status"})

	kitsuRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kitsu_request_duration_seconds",
		Help:    "Kitsu request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	kitsuErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsu_errors_total",
		Help: "Total Kitsu fetch errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the public Kitsu API root.
	DefaultBaseURL = "https://kitsu.io/api/edge"

	// MediaTypeJSONAPI is the content type Kitsu speaks.
	MediaTypeJSONAPI = "application/vnd.api+json"
)

// Client fetches pages and records from the Kitsu API.
// It holds no per-collection state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	tracker    *ratelimit.Tracker
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Client-side token bucket. RateLimit <= 0 disables it.
	RateLimit float64
	Burst     int

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration

	// Transport is the underlying round tripper, e.g. a cache.Transport.
	// Nil uses http.DefaultTransport.
	Transport http.RoundTripper

	// Backoff stores the upstream Retry-After window. Nil keeps it in memory.
	Backoff ratelimit.StateStore
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		RateLimit: 5,
		Burst:     5,
		Timeout:   30 * time.Second,
	}
}

// New creates a new Kitsu client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "kitsu-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: ratelimit.NewLimiter(cfg.RateLimit, cfg.Burst),
		tracker: ratelimit.NewTracker(cfg.Backoff, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do performs an HTTP request with rate limiting and backoff tracking.
// Non-2xx responses are returned to the caller unchanged; only transport
// failures and locally refused requests produce an error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		kitsuRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Honor an open upstream backoff window
	allowed, err := c.tracker.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by upstream backoff")
		kitsuRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	// Step 2: Client-side token bucket
	if err := c.limiter.Wait(ctx); err != nil {
		kitsuRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, err
	}

	// Step 3: Headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", MediaTypeJSONAPI)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("query", req.URL.RawQuery).
		Msg("Executing Kitsu request")

	// Step 4: Execute
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		kitsuRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}

	// Step 5: Record backoff requests from the upstream
	if err := c.tracker.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update backoff state")
	}

	kitsuRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode >= 400 {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(classifyStatus(resp.StatusCode))).
			Msg("Kitsu request error")
	}

	return resp, nil
}

// FetchPage fetches the page of q starting at cursor. For castings and
// media relationships addressed by slug, the media id is resolved first;
// callers never see the intermediate lookup.
func (c *Client) FetchPage(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error) {
	if err := q.Validate(); err != nil {
		return nil, c.fail(&FetchError{Query: q, Cursor: cursor, Class: ErrorClassInvalidQuery, Err: err})
	}
	if q.Kind == catalog.KindBySlug || q.Kind == catalog.KindByID {
		return nil, c.fail(&FetchError{
			Query:  q,
			Cursor: cursor,
			Class:  ErrorClassInvalidQuery,
			Err:    fmt.Errorf("%w: %s is a single record, use FetchRecord", catalog.ErrInvalidQuery, q.Kind),
		})
	}

	if q.NeedsMediaID() {
		id, err := c.resolveMediaID(ctx, q.Media, q.Slug)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				// Report the failure against the collection that was asked for.
				fe.Query, fe.Cursor = q, cursor
			}
			return nil, err
		}
		q = q.WithMediaID(id)
	}

	doc, err := c.fetchDocument(ctx, q, cursor)
	if err != nil {
		return nil, err
	}

	page, err := doc.Page(q.Indirect())
	if err != nil {
		return nil, c.fail(&FetchError{Query: q, Cursor: cursor, Class: ErrorClassParse, Err: err})
	}

	c.logger.Debug().
		Str("query", q.String()).
		Int("cursor", cursor.Int()).
		Int("items", len(page.Items)).
		Bool("has_next", page.HasNext()).
		Msg("Fetched page")

	return page, nil
}

// FetchRecord fetches a single media record with its included side-table.
func (c *Client) FetchRecord(ctx context.Context, q catalog.Query) (*catalog.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, c.fail(&FetchError{Query: q, Class: ErrorClassInvalidQuery, Err: err})
	}
	if q.Kind != catalog.KindBySlug && q.Kind != catalog.KindByID {
		return nil, c.fail(&FetchError{
			Query: q,
			Class: ErrorClassInvalidQuery,
			Err:   fmt.Errorf("%w: %s is a collection, use FetchPage", catalog.ErrInvalidQuery, q.Kind),
		})
	}

	doc, err := c.fetchDocument(ctx, q, 0)
	if err != nil {
		return nil, err
	}

	rec, err := doc.Record()
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, c.fail(&FetchError{Query: q, Class: ErrorClassNotFound, Err: err})
	}
	if err != nil {
		return nil, c.fail(&FetchError{Query: q, Class: ErrorClassParse, Err: err})
	}
	return rec, nil
}

// resolveMediaID looks up the id of the media with the given slug.
func (c *Client) resolveMediaID(ctx context.Context, media catalog.MediaType, slug string) (string, error) {
	q := catalog.BySlug(media, slug)
	q.Include = nil

	doc, err := c.fetch(ctx, q, q.Endpoint(), withSparseFields(q.Values(0), media))
	if err != nil {
		return "", err
	}

	rec, err := doc.Record()
	if errors.Is(err, catalog.ErrNotFound) {
		return "", c.fail(&FetchError{Query: q, Class: ErrorClassNotFound, Message: "unknown slug " + slug, Err: err})
	}
	if err != nil {
		return "", c.fail(&FetchError{Query: q, Class: ErrorClassParse, Err: err})
	}

	c.logger.Debug().
		Str("media", string(media)).
		Str("slug", slug).
		Str("id", rec.Entity.ID).
		Msg("Resolved media id")
	return rec.Entity.ID, nil
}

func (c *Client) fetchDocument(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Document, error) {
	doc, err := c.fetch(ctx, q, q.Endpoint(), q.Values(cursor))
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Cursor = cursor
		}
		return nil, err
	}
	return doc, nil
}

// fetch performs one GET and decodes the JSON:API document.
func (c *Client) fetch(ctx context.Context, q catalog.Query, endpoint string, values url.Values) (*catalog.Document, error) {
	target := c.baseURL + endpoint
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, c.fail(&FetchError{Query: q, Class: ErrorClassInvalidQuery, Err: fmt.Errorf("create request: %w", err)})
	}

	resp, err := c.Do(req)
	if err != nil {
		class := ErrorClassNetwork
		if errors.Is(err, ErrRateLimited) {
			class = ErrorClassRateLimit
		}
		return nil, c.fail(&FetchError{Query: q, Class: class, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&FetchError{Query: q, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Err: fmt.Errorf("read body: %w", err)})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &FetchError{
			Query:      q,
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    errorMessage(body, resp.Status),
		}
		if fe.Class == "" {
			fe.Class = ErrorClassServer
		}
		if resp.StatusCode == http.StatusNotFound {
			fe.Err = catalog.ErrNotFound
		}
		return nil, c.fail(fe)
	}

	doc, err := catalog.DecodeDocument(body)
	if err != nil {
		return nil, c.fail(&FetchError{Query: q, StatusCode: resp.StatusCode, Class: ErrorClassParse, Err: err})
	}
	if len(doc.Errors) > 0 {
		return nil, c.fail(&FetchError{
			Query:      q,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassClient,
			Message:    errorMessage(body, resp.Status),
		})
	}
	return doc, nil
}

// fail counts the error and returns it.
func (c *Client) fail(fe *FetchError) error {
	kitsuErrorsTotal.WithLabelValues(string(fe.Class)).Inc()
	return fe
}

// errorMessage extracts the first JSON:API error, falling back to the HTTP status text.
func errorMessage(body []byte, fallback string) string {
	doc, err := catalog.DecodeDocument(body)
	if err != nil || len(doc.Errors) == 0 {
		return fallback
	}
	e := doc.Errors[0]
	switch {
	case e.Title != "" && e.Detail != "":
		return e.Title + ": " + e.Detail
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	default:
		return fallback
	}
}

// withSparseFields trims the slug lookup down to the fields it needs.
func withSparseFields(v url.Values, media catalog.MediaType) url.Values {
	v.Set("fields["+string(media)+"]", "slug")
	return v
}

// endpointLabel replaces numeric path segments so metrics keep a bounded label set.
func endpointLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if _, err := strconv.Atoi(s); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
