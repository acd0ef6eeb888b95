package client

import (
	"context"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"golang.org/x/sync/errgroup"
)

// Pager fetches one page of a collection. *Client implements it.
type Pager interface {
	FetchPage(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error)
}

// Preview is the head of a record's character and franchise lists.
type Preview struct {
	Characters []catalog.Entity `json:"characters"`
	Franchises []catalog.Entity `json:"franchises"`
}

// FetchPreview fetches the first catalog.PreviewLimit castings and media
// relationships of the media with the given id. Both lists are requested
// concurrently; the first failure cancels the other.
func FetchPreview(ctx context.Context, p Pager, media catalog.MediaType, id string) (*Preview, error) {
	characters := catalog.Preview(catalog.CharactersByID(media, id))
	franchises := catalog.Preview(catalog.FranchisesByID(media, id))

	out := &Preview{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := p.FetchPage(ctx, characters, 0)
		if err != nil {
			return err
		}
		out.Characters = catalog.ViewItems(characters, page.Items)
		return nil
	})
	g.Go(func() error {
		page, err := p.FetchPage(ctx, franchises, 0)
		if err != nil {
			return err
		}
		out.Franchises = page.Items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if out.Characters == nil {
		out.Characters = []catalog.Entity{}
	}
	if out.Franchises == nil {
		out.Franchises = []catalog.Entity{}
	}
	return out, nil
}
