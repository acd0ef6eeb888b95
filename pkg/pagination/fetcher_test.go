package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
)

// scriptedFetcher serves pages keyed by cursor and records every call.
// When gate is set, the call at gatedCursor blocks until gate is closed,
// ignoring context cancellation.
type scriptedFetcher struct {
	mu    sync.Mutex
	pages map[catalog.Cursor]*catalog.Page
	errs  map[catalog.Cursor]error
	calls []catalog.Cursor

	gate        chan struct{}
	gatedCursor catalog.Cursor
	started     chan struct{}
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		pages:   make(map[catalog.Cursor]*catalog.Page),
		errs:    make(map[catalog.Cursor]error),
		started: make(chan struct{}, 64),
	}
}

func (f *scriptedFetcher) page(cursor catalog.Cursor, next *catalog.Cursor, items ...catalog.Entity) *scriptedFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[cursor] = &catalog.Page{Items: items, Next: next}
	return f
}

func (f *scriptedFetcher) fail(cursor catalog.Cursor, err error) *scriptedFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[cursor] = err
	return f
}

func (f *scriptedFetcher) clearFailure(cursor catalog.Cursor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, cursor)
}

// block makes the next fetch at cursor wait for release.
func (f *scriptedFetcher) block(cursor catalog.Cursor) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	f.gatedCursor = cursor
	return func() { close(gate) }
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cursor)
	gate := f.gate
	if gate != nil && cursor == f.gatedCursor {
		f.gate = nil
	} else {
		gate = nil
	}
	f.mu.Unlock()

	f.started <- struct{}{}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[cursor]; ok {
		return nil, err
	}
	if page, ok := f.pages[cursor]; ok {
		return page, nil
	}
	return nil, fmt.Errorf("no page scripted at cursor %d", cursor)
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func entity(typ, id string) catalog.Entity {
	return catalog.Entity{Type: typ, ID: id}
}

func ids(items []catalog.Entity) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Identity().String()
	}
	return out
}

func testQuery() catalog.Query {
	return catalog.CharactersByID(catalog.MediaAnime, "1")
}

// permanentErr marks itself permanent the way client.FetchError does.
type permanentErr struct{}

func (permanentErr) Error() string   { return "bad request" }
func (permanentErr) Permanent() bool { return true }
