// Package catalog models the Kitsu catalog: entities, pages, cursors,
// query composition and JSON:API document parsing. It performs no I/O.
package catalog

import (
	"encoding/json"
	"fmt"
)

// Entity types returned by the Kitsu edge API.
const (
	TypeAnime              = "anime"
	TypeManga              = "manga"
	TypeCharacters         = "characters"
	TypePeople             = "people"
	TypeCategories         = "categories"
	TypeCastings           = "castings"
	TypeMediaRelationships = "mediaRelationships"
)

// Identity is the unique key of an entity: its type plus its id.
type Identity struct {
	Type string
	ID   string
}

// String renders the identity as "type/id".
func (i Identity) String() string {
	return i.Type + "/" + i.ID
}

// Entity is one catalog record (anime, manga, character, person, category, ...).
// Entities are treated as immutable once decoded.
type Entity struct {
	ID            string                     `json:"id"`
	Type          string                     `json:"type"`
	Attributes    map[string]json.RawMessage `json:"attributes,omitempty"`
	Relationships map[string]json.RawMessage `json:"relationships,omitempty"`
	Links         map[string]string          `json:"links,omitempty"`
}

// Identity returns the (type, id) key of the entity.
func (e Entity) Identity() Identity {
	return Identity{Type: e.Type, ID: e.ID}
}

// Decode unmarshals a single attribute into v.
// Returns an error if the attribute is missing or has an incompatible shape.
func (e Entity) Decode(name string, v any) error {
	raw, ok := e.Attributes[name]
	if !ok {
		return fmt.Errorf("attribute %q not present on %s", name, e.Identity())
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode attribute %q on %s: %w", name, e.Identity(), err)
	}
	return nil
}

// Attr returns a string attribute, or "" when missing or not a string.
func (e Entity) Attr(name string) string {
	var s string
	if err := e.Decode(name, &s); err != nil {
		return ""
	}
	return s
}

// Int returns a numeric attribute, or 0 when missing or null.
func (e Entity) Int(name string) int {
	var n *int
	if err := e.Decode(name, &n); err != nil || n == nil {
		return 0
	}
	return *n
}

// Slug returns the slug attribute (anime, manga, characters, categories).
func (e Entity) Slug() string {
	return e.Attr("slug")
}

// CanonicalTitle returns the display title of the entity.
// Media use canonicalTitle, characters and people use canonicalName / name,
// categories use title.
func (e Entity) CanonicalTitle() string {
	for _, attr := range []string{"canonicalTitle", "canonicalName", "name", "title"} {
		if s := e.Attr(attr); s != "" {
			return s
		}
	}
	return ""
}

// Titles returns the localized titles map (en, en_jp, ja_jp, ...).
func (e Entity) Titles() map[string]string {
	var titles map[string]string
	if err := e.Decode("titles", &titles); err != nil {
		return nil
	}
	return titles
}

// Image returns a URL from an image attribute ("posterImage", "coverImage",
// "image") for the requested size ("tiny", "small", "medium", "large",
// "original"). Falls back to "original" when the size is absent.
func (e Entity) Image(attr, size string) string {
	var images map[string]json.RawMessage
	if err := e.Decode(attr, &images); err != nil {
		return ""
	}
	for _, key := range []string{size, "original"} {
		var url string
		if raw, ok := images[key]; ok && json.Unmarshal(raw, &url) == nil && url != "" {
			return url
		}
	}
	return ""
}

// FilterType returns the entities of the given type, keeping their order.
func FilterType(items []Entity, typ string) []Entity {
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		if item.Type == typ {
			out = append(out, item)
		}
	}
	return out
}
