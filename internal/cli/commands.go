package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/Sternrassler/kitsu-catalog/pkg/client"
	"github.com/spf13/cobra"
)

func (rt *runtime) collection(cmd *cobra.Command, q catalog.Query, flags collectionFlags) error {
	r := &collectionRun{
		query:   q,
		fetcher: rt.deps.Client,
		flags:   flags,
		timeout: rt.deps.Config.LoadTimeout,
		out:     cmd.OutOrStdout(),
		in:      cmd.InOrStdin(),
	}
	return r.run(cmd.Context())
}

func newSearchCmd(rt *runtime) *cobra.Command {
	var flags collectionFlags

	cmd := &cobra.Command{
		Use:   "search <anime|manga> <text...>",
		Short: "Search anime or manga by title",
		Example: `  catalog search anime cowboy bebop
  catalog search manga berserk --all --max-pages 3
  catalog search anime naruto --interactive --rank`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := catalog.ParseMediaType(args[0])
			if err != nil {
				return err
			}
			return rt.collection(cmd, catalog.Search(media, strings.Join(args[1:], " ")), flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.rank, "rank", false, "order each page by title similarity")
	return cmd
}

func newRelationCmd(rt *runtime, use, short string, build func(catalog.MediaType, string) catalog.Query) *cobra.Command {
	var flags collectionFlags

	cmd := &cobra.Command{
		Use:   use + " <anime|manga> <slug>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := catalog.ParseMediaType(args[0])
			if err != nil {
				return err
			}
			return rt.collection(cmd, build(media, args[1]), flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCharactersCmd(rt *runtime) *cobra.Command {
	return newRelationCmd(rt, "characters", "List the characters of an anime or manga", catalog.Characters)
}

func newFranchisesCmd(rt *runtime) *cobra.Command {
	return newRelationCmd(rt, "franchises", "List sequels, prequels and adaptations of an anime or manga", catalog.Franchises)
}

func newTrendingCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "trending <anime|manga>",
		Short: "List trending anime or manga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := catalog.ParseMediaType(args[0])
			if err != nil {
				return err
			}
			page, err := rt.deps.Client.FetchPage(cmd.Context(), catalog.Trending(media), 0)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, e := range page.Items {
				fmt.Fprintf(out, "%4d. %s\n", i+1, formatEntity(e))
			}
			return nil
		},
	}
}

func newShowCmd(rt *runtime) *cobra.Command {
	var byID, preview bool
	cmd := &cobra.Command{
		Use:   "show <anime|manga> <slug|id>",
		Short: "Show one anime or manga",
		Example: `  catalog show anime cowboy-bebop
  catalog show manga 12 --id --preview`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := catalog.ParseMediaType(args[0])
			if err != nil {
				return err
			}
			q := catalog.BySlug(media, args[1])
			if byID {
				q = catalog.ByID(media, args[1])
			}

			rec, err := rt.deps.Client.FetchRecord(cmd.Context(), q)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)

			if preview {
				p, err := client.FetchPreview(cmd.Context(), rt.deps.Client, media, rec.Entity.ID)
				if err != nil {
					return err
				}
				printPreview(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "treat the second argument as a Kitsu id")
	cmd.Flags().BoolVar(&preview, "preview", false, "also list the first characters and franchises")
	return cmd
}

func printPreview(w io.Writer, p *client.Preview) {
	section := func(title string, items []catalog.Entity) {
		fmt.Fprintf(w, "\n%s:\n", title)
		if len(items) == 0 {
			fmt.Fprintln(w, "  (none)")
			return
		}
		for _, e := range items {
			fmt.Fprintf(w, "  %s\n", formatEntity(e))
		}
	}
	section("Characters", p.Characters)
	section("Franchises", p.Franchises)
}

func formatEntity(e catalog.Entity) string {
	var b strings.Builder
	title := e.CanonicalTitle()
	if title == "" {
		title = "(untitled)"
	}
	b.WriteString(title)
	fmt.Fprintf(&b, " [%s/%s]", e.Type, e.ID)
	if slug := e.Slug(); slug != "" && e.Type != catalog.TypeCharacters {
		b.WriteString(" " + slug)
	}
	if rating := e.Attr("averageRating"); rating != "" {
		b.WriteString(" rating " + rating)
	}
	return b.String()
}

func printRecord(w io.Writer, rec *catalog.Record) {
	e := rec.Entity
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-11s %s\n", name+":", value)
		}
	}

	field("Title", e.CanonicalTitle())
	field("Type", e.Type)
	field("ID", e.ID)
	field("Slug", e.Slug())
	field("Status", e.Attr("status"))
	field("Started", e.Attr("startDate"))
	field("Rating", e.Attr("averageRating"))
	if n := e.Int("episodeCount"); n > 0 {
		field("Episodes", fmt.Sprint(n))
	}
	if n := e.Int("chapterCount"); n > 0 {
		field("Chapters", fmt.Sprint(n))
	}

	if titles := e.Titles(); len(titles) > 0 {
		keys := make([]string, 0, len(titles))
		for k := range titles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if titles[k] != "" {
				parts = append(parts, k+"="+titles[k])
			}
		}
		field("Titles", strings.Join(parts, ", "))
	}

	var categories []string
	for _, c := range catalog.FilterType(rec.Included, catalog.TypeCategories) {
		categories = append(categories, c.CanonicalTitle())
	}
	field("Categories", strings.Join(categories, ", "))
	field("Poster", e.Image("posterImage", "original"))

	if synopsis := e.Attr("synopsis"); synopsis != "" {
		fmt.Fprintf(w, "\n%s\n", synopsis)
	}
}
