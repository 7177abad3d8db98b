package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"animehub/internal/catalog"
	"animehub/pkg/models"
)

type queryFlags struct {
	q           string
	types       []string
	sources     []string
	genres      []string
	scoreMin    float64
	scoreMax    float64
	maxEpisodes int
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.q, "q", "", "title substring")
	fs.StringSliceVar(&f.types, "type", nil, "keep these types (repeatable or comma list)")
	fs.StringSliceVar(&f.sources, "source", nil, "keep these sources")
	fs.StringSliceVar(&f.genres, "genre", nil, "keep titles with any of these genres")
	fs.Float64Var(&f.scoreMin, "score-min", 0, "minimum score (inclusive)")
	fs.Float64Var(&f.scoreMax, "score-max", 10, "maximum score (inclusive)")
	fs.IntVar(&f.maxEpisodes, "max-episodes", 0, "maximum episode count; unknown lengths pass")
}

// query builds the predicate set; range flags only apply when given.
func (f *queryFlags) query(cmd *cobra.Command) catalog.Query {
	q := catalog.Query{
		Q:       f.q,
		Types:   f.types,
		Sources: f.sources,
		Genres:  f.genres,
	}
	fs := cmd.Flags()
	if fs.Changed("score-min") || fs.Changed("score-max") {
		q.ScoreRange = &catalog.Range{Min: f.scoreMin, Max: f.scoreMax}
	}
	if fs.Changed("max-episodes") {
		n := f.maxEpisodes
		q.MaxEpisodes = &n
	}
	return q
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the anime catalog",
	}
	cmd.AddCommand(newCatalogListCmd(), newCatalogStatsCmd(), newCatalogShowCmd())
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var (
		qf            queryFlags
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog titles matching the filters",
		Example: `  animehub catalog list --type TV --genre Action,Comedy --score-min 7.5
  animehub catalog list --max-episodes 13 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadCatalog()
			if err != nil {
				return err
			}
			rows := catalog.Filter(entries, qf.query(cmd))
			page := catalog.Page(rows, limit, offset)
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"total": len(rows), "items": page})
			}
			printCatalog(cmd.OutOrStdout(), page)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d titles\n", len(page), len(rows))
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "page size (max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newCatalogStatsCmd() *cobra.Command {
	var (
		qf      queryFlags
		columns []string
		top     int
		bins    int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Frequency tables and score histogram for the filtered catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range columns {
				if _, ok := catalog.Extractors[c]; !ok {
					return fmt.Errorf("unknown column %q", c)
				}
			}
			entries, err := loadCatalog()
			if err != nil {
				return err
			}
			view := catalog.Explore(entries, qf.query(cmd), bins)
			// Explore skips status; compute any requested table not already there.
			for _, c := range columns {
				if _, ok := view.Counts[c]; !ok {
					view.Counts[c] = catalog.CountBy(view.Rows, catalog.Extractors[c])
				}
			}

			if flags.jsonMode {
				out := map[string]any{"total": len(view.Rows), "score_histogram": view.ScoreHistogram}
				counts := make(map[string][]catalog.Count, len(columns))
				for _, c := range columns {
					counts[c] = head(view.Counts[c], top)
				}
				out["counts"] = counts
				return printJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%d titles\n", len(view.Rows))
			for _, c := range columns {
				fmt.Fprintf(w, "\n%s\n", strings.ToUpper(c))
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, row := range head(view.Counts[c], top) {
					fmt.Fprintf(tw, "  %s\t%d\n", row.Value, row.Count)
				}
				_ = tw.Flush()
			}
			fmt.Fprintf(w, "\nSCORE\n")
			for _, b := range view.ScoreHistogram {
				fmt.Fprintf(w, "  %5.2f-%5.2f  %s %d\n", b.Lower, b.Upper, strings.Repeat("#", min(b.Count, 60)), b.Count)
			}
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().StringSliceVar(&columns, "column", []string{"type", "genres"}, "frequency tables: "+strings.Join(extractorNames(), ", "))
	cmd.Flags().IntVar(&top, "top", 10, "rows per table (0 = all)")
	cmd.Flags().IntVar(&bins, "bins", catalog.DefaultBins, "score histogram bins")
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <mal-id>",
		Short: "Show one catalog title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMalID(args[0])
			if err != nil {
				return err
			}
			entries, err := loadCatalog()
			if err != nil {
				return err
			}
			e, ok := catalog.Lookup(entries, id)
			if !ok {
				return fmt.Errorf("mal id %d not in catalog", id)
			}
			if flags.jsonMode {
				return printJSON(cmd, e)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (#%d)\n", e.Title, e.ID)
			fmt.Fprintf(w, "  type: %s  source: %s  status: %s\n", e.Type, e.Source, e.Status)
			fmt.Fprintf(w, "  episodes: %s  score: %s  aired: %s\n", intOrDash(e.Episodes), floatOrDash(e.Score), e.Aired)
			fmt.Fprintf(w, "  genres: %s\n", strings.Join(e.Genres, ", "))
			fmt.Fprintf(w, "  studios: %s\n", strings.Join(e.Studios, ", "))
			if e.Description != "" {
				fmt.Fprintf(w, "\n%s\n", e.Description)
			}
			return nil
		},
	}
}

func printCatalog(w io.Writer, rows []models.CatalogEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tEPISODES\tSCORE\tGENRES")
	for _, e := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Title, e.Type, intOrDash(e.Episodes), floatOrDash(e.Score), strings.Join(e.Genres, ", "))
	}
	_ = tw.Flush()
}

func head(rows []catalog.Count, n int) []catalog.Count {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

func extractorNames() []string {
	names := make([]string, 0, len(catalog.Extractors))
	for name := range catalog.Extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func intOrDash(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}
