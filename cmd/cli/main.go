// Command animehub browses the anime catalog and edits a local watchlist.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"animehub/internal/catalog"
	"animehub/internal/watchlist"
	"animehub/pkg/database"
	"animehub/pkg/models"
	"animehub/pkg/utils"
)

var version = "dev"

// rootFlags holds global flag values shared by every subcommand.
type rootFlags struct {
	configPath string
	catalog    string
	watchlist  string
	backend    string
	owner      string
	jsonMode   bool
	verbose    bool
}

// app is built once in PersistentPreRunE.
type app struct {
	cfg    utils.Config
	logger *zap.Logger
	closer func() error
}

var (
	flags rootFlags
	state app
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "animehub",
		Short: "Browse the anime catalog and manage a personal watchlist",
		Long: `animehub filters and summarizes an anime catalog CSV and keeps a
personal watchlist in a second CSV file (or SQLite).`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if state.logger != nil {
				_ = state.logger.Sync()
			}
			if state.closer != nil {
				return state.closer()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ./animehub.yaml)")
	pf.StringVar(&flags.catalog, "catalog", "", "catalog CSV path")
	pf.StringVar(&flags.watchlist, "watchlist", "", "watchlist CSV path")
	pf.StringVar(&flags.backend, "backend", "", "watchlist backend: csv or sqlite")
	pf.StringVar(&flags.owner, "owner", "local", "watchlist owner when the backend is sqlite")
	pf.BoolVar(&flags.jsonMode, "json", false, "output JSON")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newCatalogCmd(), newWatchlistCmd(), newVersionCmd())
	return root
}

func setup(cmd *cobra.Command, args []string) error {
	v, err := utils.NewViper(flags.configPath)
	if err != nil {
		return err
	}
	pf := cmd.Root().PersistentFlags()
	_ = v.BindPFlag("catalog.path", pf.Lookup("catalog"))
	_ = v.BindPFlag("watchlist.path", pf.Lookup("watchlist"))
	_ = v.BindPFlag("watchlist.backend", pf.Lookup("backend"))
	v.SetDefault("log.level", "warn")
	if flags.verbose {
		v.Set("log.level", "debug")
	}

	cfg, err := utils.FromViper(v)
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	state = app{cfg: cfg, logger: logger}
	return nil
}

func loadCatalog() ([]models.CatalogEntry, error) {
	entries, err := catalog.LoadFile(state.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	state.logger.Debug("catalog loaded", zap.String("path", state.cfg.Catalog.Path), zap.Int("rows", len(entries)))
	return entries, nil
}

// openStore opens the configured watchlist: the CSV file, or the owner's
// rows in SQLite.
func openStore(ctx context.Context) (*watchlist.Store, error) {
	if state.cfg.Watchlist.Backend == "sqlite" {
		db, err := database.Open(state.cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		state.closer = db.Close
		load, save := watchlist.Bind(watchlist.NewSQLRepo(db), flags.owner)
		return watchlist.Open(ctx, load, save)
	}
	f := watchlist.CSVFile{Path: state.cfg.Watchlist.Path}
	return watchlist.Open(ctx, f.Load, f.Save)
}

func parseMalID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid mal id %q", raw)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "animehub", version)
		},
	}
}
