package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
)

// Attrs marshals plain values into entity attributes.
func Attrs(values map[string]any) map[string]json.RawMessage {
	attrs := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("testutil: marshal attribute %q: %v", k, err))
		}
		attrs[k] = raw
	}
	return attrs
}

// Media builds an anime or manga record.
func Media(typ, id, slug, title string) catalog.Entity {
	return catalog.Entity{
		ID:   id,
		Type: typ,
		Attributes: Attrs(map[string]any{
			"slug":           slug,
			"canonicalTitle": title,
			"titles":         map[string]string{"en_jp": title},
			"averageRating":  "80.12",
			"posterImage": map[string]string{
				"small":    "https://media.kitsu.io/" + typ + "/" + id + "/small.jpg",
				"original": "https://media.kitsu.io/" + typ + "/" + id + "/original.jpg",
			},
		}),
	}
}

// Character builds a character record.
func Character(id, name string) catalog.Entity {
	return catalog.Entity{
		ID:         id,
		Type:       catalog.TypeCharacters,
		Attributes: Attrs(map[string]any{"canonicalName": name, "slug": slugify(name)}),
	}
}

// Person builds a voice actor record.
func Person(id, name string) catalog.Entity {
	return catalog.Entity{
		ID:         id,
		Type:       catalog.TypePeople,
		Attributes: Attrs(map[string]any{"name": name}),
	}
}

// Characters builds n characters with ids starting at first.
func Characters(first, n int) []catalog.Entity {
	items := make([]catalog.Entity, n)
	for i := range items {
		id := first + i
		items[i] = Character(fmt.Sprint(id), fmt.Sprintf("Character %d", id))
	}
	return items
}

// AnimeSeries builds n anime with ids starting at first, titled "<prefix> <id>".
func AnimeSeries(prefix string, first, n int) []catalog.Entity {
	items := make([]catalog.Entity, n)
	for i := range items {
		id := first + i
		items[i] = Media(catalog.TypeAnime, fmt.Sprint(id), fmt.Sprintf("%s-%d", slugify(prefix), id), fmt.Sprintf("%s %d", prefix, id))
	}
	return items
}

func slugify(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		case len(out) > 0 && out[len(out)-1] != '-':
			out = append(out, '-')
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}
