package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for collection loading.
var (
	loaderOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsu_loader_outcomes_total",
		Help: "Total LoadNext outcomes by query kind and status",
	}, []string{"kind", "status"})

	loaderDuplicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsu_loader_duplicates_total",
		Help: "Total fetched entities dropped as already present, by query kind",
	}, []string{"kind"})

	loaderFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kitsu_loader_fetch_duration_seconds",
		Help:    "Duration of LoadNext fetches by query kind",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"kind"})
)

var (
	// ErrLoadTimeout is returned when a fetch exceeds the loader timeout.
	ErrLoadTimeout = errors.New("load timed out")

	// ErrCursorRegressed is returned when a page's next cursor does not move
	// past the cursor it was fetched with.
	ErrCursorRegressed = errors.New("next cursor does not advance")

	// ErrNoPage is returned when a fetcher reports neither a page nor an error.
	ErrNoPage = errors.New("fetcher returned no page")
)

// PageFetcher fetches one page of a query. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error)
}

// FetchFunc adapts a function to PageFetcher.
type FetchFunc func(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error)

// FetchPage implements PageFetcher.
func (f FetchFunc) FetchPage(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error) {
	return f(ctx, q, cursor)
}

// Config holds loader configuration.
type Config struct {
	// Query is the bound logical query.
	Query catalog.Query

	// Fetcher performs page fetches (REQUIRED).
	Fetcher PageFetcher

	// Initial seeds the collection with an already fetched first page.
	// Its Next becomes the starting cursor; a nil Next starts exhausted.
	Initial *catalog.Page

	// InitialCursor is the starting cursor when Initial is nil.
	InitialCursor catalog.Cursor

	// Timeout bounds one fetch. Zero disables it.
	Timeout time.Duration
}

// State is a point-in-time copy of the collection state.
type State struct {
	Items     []catalog.Entity
	Cursor    catalog.Cursor
	Exhausted bool
	Pending   bool
	Total     int
	Pages     int
}

// Loader owns the collection state of one query. All methods are safe for
// concurrent use; at most one fetch is in flight at a time.
type Loader struct {
	id      string
	query   catalog.Query
	fetcher PageFetcher
	timeout time.Duration
	logger  zerolog.Logger

	mu        sync.Mutex
	items     *Collection
	cursor    catalog.Cursor
	exhausted bool
	pending   bool
	total     int
	pages     int
}

// NewLoader creates a loader for cfg.Query.
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := cfg.Query.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.InitialCursor < 0 {
		return nil, fmt.Errorf("initial cursor must be >= 0 (got %d)", cfg.InitialCursor)
	}

	id := uuid.NewString()
	l := &Loader{
		id:      id,
		query:   cfg.Query,
		fetcher: cfg.Fetcher,
		timeout: cfg.Timeout,
		logger: log.With().
			Str("component", "loader").
			Str("loader_id", id).
			Str("query", cfg.Query.String()).
			Logger(),
		items:  NewCollection(),
		cursor: cfg.InitialCursor,
	}

	if cfg.Initial != nil {
		l.items.Merge(cfg.Initial.Items)
		l.total = cfg.Initial.Total
		l.pages = 1
		if cfg.Initial.Next != nil {
			l.cursor = *cfg.Initial.Next
		} else {
			l.exhausted = true
		}
	}

	return l, nil
}

// LoadNext fetches the page at the current cursor and merges it.
//
// It returns NoMore without fetching when the collection is exhausted and
// Skipped when another load is in flight. A failed fetch leaves items,
// cursor and exhausted untouched so a later call resumes from the same point.
func (l *Loader) LoadNext(ctx context.Context) Outcome {
	l.mu.Lock()
	if l.exhausted {
		out := l.outcomeLocked(StatusNoMore)
		l.mu.Unlock()
		l.record(out)
		return out
	}
	if l.pending {
		out := l.outcomeLocked(StatusSkipped)
		l.mu.Unlock()
		l.record(out)
		return out
	}
	l.pending = true
	cursor := l.cursor
	l.mu.Unlock()

	start := time.Now()
	page, err := l.fetch(ctx, cursor)
	loaderFetchDuration.WithLabelValues(string(l.query.Kind)).Observe(time.Since(start).Seconds())

	if err == nil && page == nil {
		err = ErrNoPage
	}
	if err == nil && page.Next != nil && *page.Next <= cursor {
		err = fmt.Errorf("%w: cursor %d, next %d", ErrCursorRegressed, cursor, *page.Next)
	}

	l.mu.Lock()
	l.pending = false

	if err != nil {
		out := l.outcomeLocked(StatusFailed)
		out.Err = err
		l.mu.Unlock()

		l.logger.Warn().
			Err(err).
			Int("cursor", cursor.Int()).
			Dur("duration", time.Since(start)).
			Msg("Load failed")
		l.record(out)
		return out
	}

	added := l.items.Merge(page.Items)
	if page.Next != nil {
		l.cursor = *page.Next
	} else {
		l.exhausted = true
	}
	if page.Total > 0 {
		l.total = page.Total
	}
	l.pages++

	out := l.outcomeLocked(StatusLoaded)
	out.Added = added
	out.NewItems = len(added)
	size := l.items.Len()
	l.mu.Unlock()

	if dup := len(page.Items) - len(added); dup > 0 {
		loaderDuplicatesTotal.WithLabelValues(string(l.query.Kind)).Add(float64(dup))
	}

	l.logger.Debug().
		Int("cursor", cursor.Int()).
		Int("next_cursor", out.Cursor.Int()).
		Int("added", out.NewItems).
		Int("items", size).
		Bool("exhausted", out.Exhausted).
		Dur("duration", time.Since(start)).
		Msg("Page loaded")
	l.record(out)
	return out
}

// fetch calls the fetcher, bounded by the loader timeout. A result arriving
// after the timeout is discarded.
func (l *Loader) fetch(ctx context.Context, cursor catalog.Cursor) (*catalog.Page, error) {
	if l.timeout <= 0 {
		return l.fetcher.FetchPage(ctx, l.query, cursor)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		page *catalog.Page
		err  error
	}
	done := make(chan result, 1)
	go func() {
		page, err := l.fetcher.FetchPage(fetchCtx, l.query, cursor)
		done <- result{page: page, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrLoadTimeout, l.timeout, r.err)
		}
		return r.page, r.err
	case <-fetchCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrLoadTimeout, l.timeout)
	}
}

func (l *Loader) outcomeLocked(status Status) Outcome {
	return Outcome{
		Status:    status,
		Cursor:    l.cursor,
		Exhausted: l.exhausted,
	}
}

func (l *Loader) record(out Outcome) {
	loaderOutcomesTotal.WithLabelValues(string(l.query.Kind), out.Status.String()).Inc()
}

// ID returns the loader's unique id.
func (l *Loader) ID() string {
	return l.id
}

// Query returns the bound query.
func (l *Loader) Query() catalog.Query {
	return l.query
}

// Items returns a copy of the accumulated items.
func (l *Loader) Items() []catalog.Entity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Items()
}

// Len returns the number of accumulated items.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Len()
}

// Cursor returns the current cursor.
func (l *Loader) Cursor() catalog.Cursor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Exhausted reports whether the last page carried no next cursor.
func (l *Loader) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exhausted
}

// Pending reports whether a fetch is in flight.
func (l *Loader) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// HasMore reports whether another page may exist.
func (l *Loader) HasMore() bool {
	return !l.Exhausted()
}

// Total returns the upstream collection size, 0 when unknown.
func (l *Loader) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Snapshot returns a consistent copy of the whole state.
func (l *Loader) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Items:     l.items.Items(),
		Cursor:    l.cursor,
		Exhausted: l.exhausted,
		Pending:   l.pending,
		Total:     l.total,
		Pages:     l.pages,
	}
}
