// Package pagination incrementally loads cursor-paginated Kitsu collections
// into a de-duplicated, append-only list.
//
// A Loader is bound to one catalog.Query and owns its collection state: the
// accumulated items (unique by type and id, first-seen order), the cursor,
// the exhausted flag and the single-flight pending flag. LoadNext is the only
// mutation:
//
//	loader, err := pagination.NewLoader(pagination.Config{
//		Query:   catalog.Characters(catalog.MediaAnime, "cowboy-bebop"),
//		Fetcher: kitsuClient,
//		Timeout: 15 * time.Second,
//	})
//	outcome := loader.LoadNext(ctx)
//
// A Driver bridges a visibility signal to LoadNext: it dispatches exactly one
// load per not-visible to visible transition and offers LoadMore as the manual
// fallback through the same guards.
//
// Drain loads a whole collection sequentially, returning partial results on
// failure.
package pagination
