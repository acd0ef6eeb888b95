package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MediaType selects the anime or manga half of the catalog.
type MediaType string

const (
	MediaAnime MediaType = "anime"
	MediaManga MediaType = "manga"
)

// ParseMediaType accepts "anime" or "manga" in any case.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case MediaAnime:
		return MediaAnime, nil
	case MediaManga:
		return MediaManga, nil
	default:
		return "", fmt.Errorf("%w: unknown media type %q", ErrInvalidQuery, s)
	}
}

// filterValue is the capitalized form Kitsu expects in media_type / source_type filters.
func (m MediaType) filterValue() string {
	switch m {
	case MediaAnime:
		return "Anime"
	case MediaManga:
		return "Manga"
	default:
		return string(m)
	}
}

// Kind is the logical relation a Query fetches.
type Kind string

const (
	// KindSearch is free-text search over one media type (paginated).
	KindSearch Kind = "search"
	// KindBySlug fetches a single media record by slug.
	KindBySlug Kind = "by_slug"
	// KindByID fetches a single media record by id.
	KindByID Kind = "by_id"
	// KindCastings lists characters (and their people) of a media (paginated, indirect).
	KindCastings Kind = "castings"
	// KindMediaRelationships lists franchise relations of a media (paginated, indirect).
	KindMediaRelationships Kind = "media_relationships"
	// KindTrending lists trending media (fixed size, not paginated).
	KindTrending Kind = "trending"
)

// Query is the logical request handed to the Catalog API client.
// Build it with the constructors in compose.go.
type Query struct {
	Kind  Kind
	Media MediaType

	// Text is the search text (KindSearch).
	Text string
	// Slug is the media slug (KindBySlug, and castings/relationships when MediaID is empty).
	Slug string
	// ID is the media id (KindByID).
	ID string
	// MediaID is the id of the media whose dependents are listed.
	MediaID string

	// Language filters castings by voice language.
	Language string
	// CharactersOnly sets filter[is_character]=true on castings.
	CharactersOnly bool

	Include []string
	Sort    string
	Limit   int
}

// Paginated reports whether the query kind is offset-paginated upstream.
func (q Query) Paginated() bool {
	switch q.Kind {
	case KindSearch, KindCastings, KindMediaRelationships:
		return true
	default:
		return false
	}
}

// Indirect reports whether results are read from the included side-table
// rather than the primary data array.
func (q Query) Indirect() bool {
	return q.Kind == KindCastings || q.Kind == KindMediaRelationships
}

// NeedsMediaID reports whether the query lists dependents of a media that
// is only known by slug, so the client must resolve the id first.
func (q Query) NeedsMediaID() bool {
	return q.Indirect() && q.MediaID == ""
}

// WithMediaID returns a copy of the query bound to a resolved media id.
func (q Query) WithMediaID(id string) Query {
	q.MediaID = id
	return q
}

// Validate checks that the query carries everything its kind needs.
func (q Query) Validate() error {
	if q.Media != MediaAnime && q.Media != MediaManga {
		return fmt.Errorf("%w: unknown media type %q", ErrInvalidQuery, q.Media)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}

	switch q.Kind {
	case KindSearch:
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: search text is empty", ErrInvalidQuery)
		}
	case KindBySlug:
		if q.Slug == "" {
			return fmt.Errorf("%w: slug is empty", ErrInvalidQuery)
		}
	case KindByID:
		if q.ID == "" {
			return fmt.Errorf("%w: id is empty", ErrInvalidQuery)
		}
	case KindCastings, KindMediaRelationships:
		if q.MediaID == "" && q.Slug == "" {
			return fmt.Errorf("%w: %s needs a media id or slug", ErrInvalidQuery, q.Kind)
		}
	case KindTrending:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidQuery, q.Kind)
	}
	return nil
}

// Endpoint returns the upstream path for the query, relative to the API root.
func (q Query) Endpoint() string {
	switch q.Kind {
	case KindByID:
		return "/" + string(q.Media) + "/" + url.PathEscape(q.ID)
	case KindCastings:
		return "/castings"
	case KindMediaRelationships:
		return "/media-relationships"
	case KindTrending:
		return "/trending/" + string(q.Media)
	default:
		return "/" + string(q.Media)
	}
}

// Values returns the upstream query parameters for fetching the page at cursor.
// Cursor is ignored for kinds that are not paginated.
func (q Query) Values(cursor Cursor) url.Values {
	v := url.Values{}

	switch q.Kind {
	case KindSearch:
		v.Set("filter[text]", q.Text)
	case KindBySlug:
		v.Set("filter[slug]", q.Slug)
	case KindCastings:
		v.Set("filter[media_type]", q.Media.filterValue())
		v.Set("filter[media_id]", q.MediaID)
		if q.CharactersOnly {
			v.Set("filter[is_character]", "true")
		}
		if q.Language != "" {
			v.Set("filter[language]", q.Language)
		}
	case KindMediaRelationships:
		v.Set("filter[source_id]", q.MediaID)
		v.Set("filter[source_type]", q.Media.filterValue())
	}

	if len(q.Include) > 0 {
		v.Set("include", strings.Join(q.Include, ","))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}

	switch {
	case q.Kind == KindTrending:
		if q.Limit > 0 {
			v.Set("limit", strconv.Itoa(q.Limit))
		}
	case q.Paginated():
		if q.Limit > 0 {
			v.Set("page[limit]", strconv.Itoa(q.Limit))
		}
		v.Set("page[offset]", strconv.Itoa(cursor.Int()))
	}

	return v
}

// String renders a short description of the query for logs and metrics.
func (q Query) String() string {
	var subject string
	switch {
	case q.Text != "":
		subject = q.Text
	case q.MediaID != "":
		subject = "#" + q.MediaID
	case q.Slug != "":
		subject = q.Slug
	case q.ID != "":
		subject = "#" + q.ID
	}
	if subject == "" {
		return fmt.Sprintf("%s:%s", q.Kind, q.Media)
	}
	return fmt.Sprintf("%s:%s:%s", q.Kind, q.Media, subject)
}
