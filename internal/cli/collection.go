package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/Sternrassler/kitsu-catalog/pkg/pagination"
	"github.com/spf13/cobra"
)

// collectionFlags select how a paginated collection is loaded.
type collectionFlags struct {
	all         bool
	interactive bool
	maxPages    int
	rank        bool
}

func (f *collectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.all, "all", "a", false, "load every page")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "load the next page on Enter")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "with --all, stop after this many pages (0 = no limit)")
	cmd.MarkFlagsMutuallyExclusive("all", "interactive")
}

// collectionRun loads one collection query and prints it.
type collectionRun struct {
	query   catalog.Query
	fetcher pagination.PageFetcher
	flags   collectionFlags
	timeout time.Duration
	out     io.Writer
	in      io.Reader
}

func (r *collectionRun) loader() (*pagination.Loader, error) {
	return pagination.NewLoader(pagination.Config{
		Query:   r.query,
		Fetcher: r.fetcher,
		Timeout: r.timeout,
	})
}

func (r *collectionRun) run(ctx context.Context) error {
	loader, err := r.loader()
	if err != nil {
		return err
	}

	switch {
	case r.flags.all:
		return r.drain(ctx, loader)
	case r.flags.interactive:
		return r.interactive(ctx, loader)
	default:
		return r.single(ctx, loader)
	}
}

func (r *collectionRun) single(ctx context.Context, loader *pagination.Loader) error {
	out := loader.LoadNext(ctx)
	if out.Status == pagination.StatusFailed {
		return out.Err
	}
	r.print(out.Added, 0)
	r.footer(loader)
	if loader.HasMore() {
		fmt.Fprintln(r.out, "More results available: use --all or --interactive.")
	}
	return nil
}

func (r *collectionRun) drain(ctx context.Context, loader *pagination.Loader) error {
	items, err := pagination.Drain(ctx, loader, r.flags.maxPages)
	r.print(items, 0)
	r.footer(loader)
	return err
}

// interactive drives the loader through a Driver's manual trigger, one page
// per Enter, until the collection ends or the user quits.
func (r *collectionRun) interactive(ctx context.Context, loader *pagination.Loader) error {
	events := make(chan pagination.Event, 1)
	driver := pagination.NewDriver(loader, func(ev pagination.Event) { events <- ev })
	defer driver.Wait()

	input := bufio.NewScanner(r.in)
	shown := 0
	for {
		driver.LoadMore(ctx)

		var ev pagination.Event
		select {
		case ev = <-events:
		case <-ctx.Done():
			return ctx.Err()
		}

		switch ev.Outcome.Status {
		case pagination.StatusFailed:
			fmt.Fprintf(r.out, "Load failed: %v\n", ev.Outcome.Err)
			if catalog.IsPermanent(ev.Outcome.Err) {
				return ev.Outcome.Err
			}
		case pagination.StatusLoaded:
			r.print(ev.Outcome.Added, shown)
			shown += len(catalog.ViewItems(r.query, ev.Outcome.Added))
		}

		if !loader.HasMore() {
			r.footer(loader)
			return nil
		}

		fmt.Fprint(r.out, "-- Enter for more, q to quit -- ")
		if !input.Scan() {
			fmt.Fprintln(r.out)
			return input.Err()
		}
		if strings.EqualFold(strings.TrimSpace(input.Text()), "q") {
			r.footer(loader)
			return nil
		}
	}
}

func (r *collectionRun) print(items []catalog.Entity, offset int) {
	items = catalog.ViewItems(r.query, items)
	if r.flags.rank && r.query.Kind == catalog.KindSearch {
		items = catalog.RankByTitle(items, r.query.Text)
	}
	for i, e := range items {
		fmt.Fprintf(r.out, "%4d. %s\n", offset+i+1, formatEntity(e))
	}
}

func (r *collectionRun) footer(loader *pagination.Loader) {
	state := loader.Snapshot()
	switch {
	case state.Total > 0:
		fmt.Fprintf(r.out, "Loaded %d of %d (%d pages).\n", len(state.Items), state.Total, state.Pages)
	default:
		fmt.Fprintf(r.out, "Loaded %d (%d pages).\n", len(state.Items), state.Pages)
	}
}
