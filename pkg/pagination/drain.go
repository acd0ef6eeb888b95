package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/rs/zerolog/log"
)

// ErrBusy is returned by Drain when another caller is loading the same collection.
var ErrBusy = errors.New("collection load already in flight")

// progressEvery is how often Drain logs progress, in pages.
const progressEvery = 5

// Drain calls LoadNext until the collection is exhausted, a load fails, or
// maxPages loads have succeeded (maxPages <= 0 means no limit). It returns
// everything accumulated so far, including on error.
func Drain(ctx context.Context, loader *Loader, maxPages int) ([]catalog.Entity, error) {
	start := time.Now()
	logger := log.With().
		Str("component", "drain").
		Str("query", loader.Query().String()).
		Logger()

	loaded := 0
	for maxPages <= 0 || loaded < maxPages {
		if err := ctx.Err(); err != nil {
			return loader.Items(), err
		}

		out := loader.LoadNext(ctx)
		switch out.Status {
		case StatusNoMore:
			logger.Info().
				Int("pages", loaded).
				Int("items", loader.Len()).
				Dur("duration", time.Since(start)).
				Msg("Drain complete")
			return loader.Items(), nil

		case StatusSkipped:
			return loader.Items(), ErrBusy

		case StatusFailed:
			logger.Warn().
				Err(out.Err).
				Int("pages", loaded).
				Int("cursor", out.Cursor.Int()).
				Msg("Drain stopped - returning partial results")
			return loader.Items(), fmt.Errorf("drain stopped after %d pages: %w", loaded, out.Err)
		}

		loaded++
		if loaded%progressEvery == 0 {
			total := loader.Total()
			event := logger.Info().
				Int("pages", loaded).
				Int("items", loader.Len())
			if pct, ok := progressPercent(loader.Cursor(), total, loader.Exhausted()); ok {
				event = event.
					Int("total", total).
					Float64("progress_pct", pct)
			}
			event.Msg("Drain progress")
		}
	}

	logger.Info().
		Int("pages", loaded).
		Int("items", loader.Len()).
		Bool("exhausted", loader.Exhausted()).
		Dur("duration", time.Since(start)).
		Msg("Drain reached page limit")
	return loader.Items(), nil
}

// progressPercent measures progress by the upstream offset, not by items
// held: total counts upstream rows, and one casting row of an indirect query
// can expand into more than one item.
func progressPercent(cursor catalog.Cursor, total int, exhausted bool) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	if exhausted {
		return 100, true
	}
	return min(float64(cursor.Int())/float64(total)*100, 100), true
}
