package pagination

import "github.com/Sternrassler/kitsu-catalog/pkg/catalog"

// Status is the kind of result of one LoadNext call.
type Status int

const (
	// StatusLoaded means a page was fetched and merged.
	StatusLoaded Status = iota
	// StatusNoMore means the collection was already exhausted; nothing was fetched.
	StatusNoMore
	// StatusSkipped means a load was already in flight; nothing was fetched.
	StatusSkipped
	// StatusFailed means the fetch failed; state is unchanged.
	StatusFailed
)

// String returns the status name used in logs, metrics and session messages.
func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusNoMore:
		return "no_more"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of LoadNext.
type Outcome struct {
	Status Status

	// NewItems is the number of entities the page added (duplicates excluded).
	NewItems int
	// Added are those entities, in page order.
	Added []catalog.Entity

	// Cursor and Exhausted describe the state after the call.
	Cursor    catalog.Cursor
	Exhausted bool

	// Err is set for StatusFailed.
	Err error
}
