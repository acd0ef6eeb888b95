package catalog

import (
	"errors"
	"testing"
)

const castingsBody = `{
  "data": [
    {"id": "100", "type": "castings", "attributes": {"role": "main"}},
    {"id": "101", "type": "castings", "attributes": {"role": "main"}}
  ],
  "included": [
    {"id": "1", "type": "characters", "attributes": {"canonicalName": "Spike Spiegel", "image": {"original": "https://media/spike.jpg"}}},
    {"id": "9", "type": "people", "attributes": {"name": "Koichi Yamadera"}}
  ],
  "meta": {"count": 42},
  "links": {
    "first": "https://kitsu.io/api/edge/castings?page%5Blimit%5D=2&page%5Boffset%5D=0",
    "next": "https://kitsu.io/api/edge/castings?page%5Blimit%5D=2&page%5Boffset%5D=2"
  }
}`

func TestDecodeDocument_IndirectPage(t *testing.T) {
	doc, err := DecodeDocument([]byte(castingsBody))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}

	page, err := doc.Page(true)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(page.Items))
	}
	if page.Items[0].Identity() != (Identity{Type: TypeCharacters, ID: "1"}) {
		t.Errorf("Items[0] = %s, want characters/1", page.Items[0].Identity())
	}
	if page.Items[1].Type != TypePeople {
		t.Errorf("Items[1].Type = %q, want people", page.Items[1].Type)
	}
	if !page.HasNext() || *page.Next != 2 {
		t.Errorf("Next = %v, want 2", page.Next)
	}
	if page.Total != 42 {
		t.Errorf("Total = %d, want 42", page.Total)
	}
}

func TestDecodeDocument_DirectPage(t *testing.T) {
	doc, err := DecodeDocument([]byte(castingsBody))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}

	page, err := doc.Page(false)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Type != TypeCastings {
		t.Errorf("direct page should read data, got %+v", page.Items)
	}
}

func TestDecodeDocument_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{name: "not json", body: `<html>`, reason: "document"},
		{name: "missing data", body: `{"links": {}}`, reason: "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.body))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("DecodeDocument error = %v, want *ParseError", err)
			}
			if perr.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", perr.Reason, tt.reason)
			}
		})
	}
}

func TestDocument_Primary(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		count   int
		wantErr bool
	}{
		{name: "array", body: `{"data": [{"id": "1", "type": "anime"}, {"id": "2", "type": "anime"}]}`, count: 2},
		{name: "object", body: `{"data": {"id": "1", "type": "anime"}}`, count: 1},
		{name: "null", body: `{"data": null, "errors": []}`, count: 0},
		{name: "scalar", body: `{"data": 5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeDocument failed: %v", err)
			}
			items, err := doc.Primary()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Primary failed: %v", err)
			}
			if len(items) != tt.count {
				t.Errorf("len(Primary()) = %d, want %d", len(items), tt.count)
			}
		})
	}
}

func TestDocument_Record(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{
	  "data": [{"id": "7", "type": "manga", "attributes": {"slug": "berserk", "canonicalTitle": "Berserk"}}],
	  "included": [{"id": "3", "type": "categories", "attributes": {"title": "Dark Fantasy"}}]
	}`))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}

	rec, err := doc.Record()
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Entity.Slug() != "berserk" {
		t.Errorf("Slug() = %q, want berserk", rec.Entity.Slug())
	}
	if len(rec.Included) != 1 || rec.Included[0].CanonicalTitle() != "Dark Fantasy" {
		t.Errorf("Included = %+v, want one category", rec.Included)
	}

	empty, err := DecodeDocument([]byte(`{"data": []}`))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}
	if _, err := empty.Record(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Record() on empty data = %v, want ErrNotFound", err)
	}
}
