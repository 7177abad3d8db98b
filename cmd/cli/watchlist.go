package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"animehub/internal/catalog"
	"animehub/internal/watchlist"
	"animehub/pkg/models"
)

func newWatchlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watchlist",
		Aliases: []string{"wl"},
		Short:   "Manage the personal watchlist",
	}
	cmd.AddCommand(
		newWatchlistAddCmd(),
		newWatchlistEditCmd(),
		newWatchlistRemoveCmd(),
		newWatchlistClearCmd(),
		newWatchlistListCmd(),
		newWatchlistImportCmd(),
		newWatchlistExportCmd(),
	)
	return cmd
}

func newWatchlistAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <mal-id>",
		Short: "Add a catalog title to the watchlist",
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
			anime, ok := catalog.Lookup(entries, id)
			if !ok {
				return fmt.Errorf("mal id %d not in catalog", id)
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			res, err := store.Add(cmd.Context(), anime.ID, anime.Title)
			if err != nil {
				return err
			}
			return printResult(cmd, res, anime.ID, anime.Title)
		},
	}
}

func newWatchlistEditCmd() *cobra.Command {
	var (
		status      string
		rating      int
		clearRating bool
		notes       string
		progress    string
	)
	cmd := &cobra.Command{
		Use:   "edit <mal-id>",
		Short: "Change status, rating, notes or progress of an entry",
		Example: `  animehub watchlist edit 5114 --status watching --progress "ep 12"
  animehub watchlist edit 5114 --rating 9
  animehub watchlist edit 5114 --clear-rating`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMalID(args[0])
			if err != nil {
				return err
			}

			fs := cmd.Flags()
			var patch models.WatchlistPatch
			if fs.Changed("status") {
				st, ok := models.ParseWatchStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				patch.Status = &st
			}
			if fs.Changed("rating") {
				patch.PersonalRating = &rating
			}
			patch.ClearRating = clearRating
			if fs.Changed("notes") {
				patch.Notes = &notes
			}
			if fs.Changed("progress") {
				patch.Progress = &progress
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			res, err := store.Edit(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return printResult(cmd, res, id, "")
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&status, "status", "", "not-started, watching, completed or dropped")
	fs.IntVar(&rating, "rating", 0, "personal rating 1-10")
	fs.BoolVar(&clearRating, "clear-rating", false, "remove the personal rating")
	fs.StringVar(&notes, "notes", "", "free-text notes")
	fs.StringVar(&progress, "progress", "", "free-text progress")
	cmd.MarkFlagsMutuallyExclusive("rating", "clear-rating")
	return cmd
}

func newWatchlistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <mal-id>",
		Aliases: []string{"remove"},
		Short:   "Remove an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMalID(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			res, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printResult(cmd, res, id, "")
		},
	}
}

func newWatchlistClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the watchlist without --yes")
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			n := store.Len()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"removed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func newWatchlistListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List watchlist entries joined with catalog data",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want models.WatchStatus
			if status != "" {
				st, ok := models.ParseWatchStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				want = st
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			// A missing catalog still lists the watchlist, unjoined.
			entries, err := loadCatalog()
			if err != nil {
				state.logger.Warn("catalog unavailable for join", zap.Error(err))
			}

			rows := store.Enrich(entries)
			if want != "" {
				filtered := rows[:0]
				for _, r := range rows {
					if r.Status == want {
						filtered = append(filtered, r)
					}
				}
				rows = filtered
			}

			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"total": len(rows), "items": rows})
			}
			printWatchlist(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only entries with this status")
	return cmd
}

func newWatchlistImportCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the watchlist with the contents of a CSV file",
		Long: `import replaces the whole watchlist. Rows with an unreadable id are
skipped and repeated ids keep the last row. With --strict any bad row or
repeated id aborts the import instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			read := watchlist.ReadCSV
			if strict {
				read = watchlist.ReadCSVStrict
			}
			incoming, err := read(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.BulkReplace(cmd.Context(), incoming); err != nil {
				return err
			}
			state.logger.Info("watchlist imported", zap.String("file", args[0]), zap.Int("rows", len(incoming)), zap.Int("entries", store.Len()))
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"rows": len(incoming), "total": store.Len()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", store.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject the file on any invalid or duplicate row")
	return cmd
}

func newWatchlistExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.csv]",
		Short: "Write the watchlist as CSV (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			entries := store.Entries()
			if len(args) == 0 || args[0] == "-" {
				return watchlist.WriteCSV(cmd.OutOrStdout(), entries)
			}
			out := watchlist.CSVFile{Path: args[0]}
			if err := out.Save(cmd.Context(), entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d entries to %s\n", len(entries), args[0])
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, res watchlist.Result, id int, title string) error {
	if flags.jsonMode {
		return printJSON(cmd, map[string]any{"result": res.String(), "mal_id": id})
	}
	label := fmt.Sprintf("#%d", id)
	if title != "" {
		label = fmt.Sprintf("%s (#%d)", title, id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", strings.ReplaceAll(res.String(), "_", " "), label)
	return nil
}

func printWatchlist(w io.Writer, rows []models.EnrichedEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tRATING\tPROGRESS\tTYPE\tEPISODES\tSCORE")
	for _, r := range rows {
		typ := "-"
		if r.Type != nil {
			typ = *r.Type
		}
		title := r.Title
		if !r.InCatalog {
			title += " (not in catalog)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CatalogID, title, r.Status, intOrDash(r.PersonalRating), r.Progress,
			typ, intOrDash(r.Episodes), floatOrDash(r.Score))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d entries\n", len(rows))
}
