package catalog

// Page sizes used by the catalog views.
const (
	DefaultSearchLimit   = 10
	DefaultRelationLimit = 20
	DefaultTrendingLimit = 18

	// PreviewLimit is how many characters and franchises a detail page shows
	// before the full lists are opened.
	PreviewLimit = 4
)

// Search composes a free-text search over one media type.
func Search(media MediaType, text string) Query {
	return Query{
		Kind:  KindSearch,
		Media: media,
		Text:  text,
		Limit: DefaultSearchLimit,
	}
}

// BySlug composes a single-record lookup. Manga detail pages side-load categories.
func BySlug(media MediaType, slug string) Query {
	q := Query{
		Kind:  KindBySlug,
		Media: media,
		Slug:  slug,
	}
	if media == MediaManga {
		q.Include = []string{"categories"}
	}
	return q
}

// ByID composes a single-record lookup by upstream id.
func ByID(media MediaType, id string) Query {
	return Query{
		Kind:  KindByID,
		Media: media,
		ID:    id,
	}
}

// Characters lists the Japanese-language character castings of a media,
// side-loading the character and voice actor.
func Characters(media MediaType, slug string) Query {
	return Query{
		Kind:           KindCastings,
		Media:          media,
		Slug:           slug,
		Language:       "Japanese",
		CharactersOnly: true,
		Include:        []string{"character", "person"},
		Sort:           "-featured",
		Limit:          DefaultRelationLimit,
	}
}

// CharactersByID is Characters for a media whose id is already known.
func CharactersByID(media MediaType, id string) Query {
	q := Characters(media, "")
	q.MediaID = id
	return q
}

// Franchises lists the media related to a media (sequels, adaptations, ...),
// side-loading the destination record.
func Franchises(media MediaType, slug string) Query {
	return Query{
		Kind:    KindMediaRelationships,
		Media:   media,
		Slug:    slug,
		Include: []string{"destination"},
		Sort:    "role",
		Limit:   DefaultRelationLimit,
	}
}

// FranchisesByID is Franchises for a media whose id is already known.
func FranchisesByID(media MediaType, id string) Query {
	q := Franchises(media, "")
	q.MediaID = id
	return q
}

// Preview limits q to the first PreviewLimit rows.
func Preview(q Query) Query {
	q.Limit = PreviewLimit
	return q
}

// Trending lists the currently trending media. Not paginated.
func Trending(media MediaType) Query {
	return Query{
		Kind:  KindTrending,
		Media: media,
		Limit: DefaultTrendingLimit,
	}
}

// ViewItems trims a loaded batch to what a view of q lists. Manga character
// pages show characters only, not the voice actors side-loaded with them.
func ViewItems(q Query, items []Entity) []Entity {
	if q.Kind == KindCastings && q.Media == MediaManga {
		return FilterType(items, TypeCharacters)
	}
	return items
}
