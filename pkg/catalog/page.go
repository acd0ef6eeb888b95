package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrMalformedLink is returned when a pagination link cannot be parsed.
var ErrMalformedLink = errors.New("malformed pagination link")

// Cursor is the pagination position of a collection: the numeric
// page[offset] echoed by the upstream next link.
type Cursor int

// Int returns the cursor as a plain offset.
func (c Cursor) Int() int { return int(c) }

// CursorAt returns a pointer to a cursor with the given offset.
// Convenient for building pages with a next position.
func CursorAt(offset int) *Cursor {
	c := Cursor(offset)
	return &c
}

// Page is the result of fetching one page of a collection.
type Page struct {
	// Items in upstream order.
	Items []Entity

	// Next is the cursor of the following page; nil means the collection ends here.
	Next *Cursor

	// Total is the upstream meta.count, 0 when the upstream omits it.
	Total int
}

// HasNext reports whether the page carries a next cursor.
func (p *Page) HasNext() bool {
	return p != nil && p.Next != nil
}

// Record is a single entity together with its side-loaded relations.
type Record struct {
	Entity   Entity
	Included []Entity
}

// offsetParams are the query keys that may carry the next offset, in order
// of preference.
var offsetParams = []string{"page[offset]", "offset"}

// ParseNextLink extracts the next cursor from a links.next URL.
// An empty link means there is no next page and returns (nil, nil).
func ParseNextLink(link string) (*Cursor, error) {
	if link == "" {
		return nil, nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return nil, &ParseError{Reason: "next link", Err: fmt.Errorf("%w: %v", ErrMalformedLink, err)}
	}

	query := u.Query()
	for _, key := range offsetParams {
		value := query.Get(key)
		if value == "" {
			continue
		}
		offset, err := strconv.Atoi(value)
		if err != nil || offset < 0 {
			return nil, &ParseError{
				Reason: "next link",
				Err:    fmt.Errorf("%w: %s=%q", ErrMalformedLink, key, value),
			}
		}
		return CursorAt(offset), nil
	}

	return nil, &ParseError{
		Reason: "next link",
		Err:    fmt.Errorf("%w: no offset parameter in %q", ErrMalformedLink, link),
	}
}
