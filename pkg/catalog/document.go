package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Document is a JSON:API top-level document as returned by Kitsu.
type Document struct {
	Data     json.RawMessage `json:"data"`
	Included []Entity        `json:"included"`
	Links    Links           `json:"links"`
	Meta     Meta            `json:"meta"`
	Errors   []APIError      `json:"errors"`
}

// Links are the top-level pagination links.
type Links struct {
	First string `json:"first,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

// Meta carries the collection size when the upstream reports it.
type Meta struct {
	Count int `json:"count,omitempty"`
}

// APIError is one entry of a JSON:API errors array.
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

// DecodeDocument parses a response body. A document without a data member
// is rejected unless it carries an errors array.
func DecodeDocument(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{Reason: "document", Err: err}
	}
	if len(doc.Data) == 0 && len(doc.Errors) == 0 {
		return nil, &ParseError{Reason: "data", Err: errors.New("missing data member")}
	}
	return &doc, nil
}

// Primary decodes the data member, accepting a single resource object, an
// array of them, or null.
func (d *Document) Primary() ([]Entity, error) {
	raw := bytes.TrimSpace(d.Data)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil, nil
	case raw[0] == '[':
		var items []Entity
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &ParseError{Reason: "data", Err: err}
		}
		return items, nil
	case raw[0] == '{':
		var item Entity
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &ParseError{Reason: "data", Err: err}
		}
		return []Entity{item}, nil
	default:
		return nil, &ParseError{Reason: "data", Err: fmt.Errorf("unexpected data shape %q", string(raw[:1]))}
	}
}

// Page converts the document into a Page. Indirect relations read their
// items from the included side-table.
func (d *Document) Page(indirect bool) (*Page, error) {
	var items []Entity
	if indirect {
		items = d.Included
	} else {
		primary, err := d.Primary()
		if err != nil {
			return nil, err
		}
		items = primary
	}

	next, err := ParseNextLink(d.Links.Next)
	if err != nil {
		return nil, err
	}

	return &Page{
		Items: items,
		Next:  next,
		Total: d.Meta.Count,
	}, nil
}

// Record returns the first primary entity with the included side-table.
// Returns ErrNotFound when the data member is empty.
func (d *Document) Record() (*Record, error) {
	primary, err := d.Primary()
	if err != nil {
		return nil, err
	}
	if len(primary) == 0 {
		return nil, ErrNotFound
	}
	return &Record{Entity: primary[0], Included: d.Included}, nil
}
