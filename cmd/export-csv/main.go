// Command export-csv writes watchlists stored in SQLite back out as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"animehub/internal/watchlist"
	"animehub/pkg/database"
	"animehub/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ./animehub.yaml)")
		out        = flag.String("out", "watchlist.csv", "output CSV path for -owner")
		owner      = flag.String("owner", "local", "owner to export")
		dir        = flag.String("dir", "", "export every owner to <dir>/<owner>.csv instead of -out")
	)
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}

	repo := watchlist.NewSQLRepo(db)

	if *dir == "" {
		if err := exportOwner(ctx, repo, *owner, watchlist.CSVFile{Path: *out}.Save); err != nil {
			logger.Fatal("export failed", zap.String("owner", *owner), zap.Error(err))
		}
		logger.Info("exported", zap.String("owner", *owner), zap.String("file", *out))
		return
	}

	owners, err := repo.Owners(ctx)
	if err != nil {
		logger.Fatal("list owners failed", zap.Error(err))
	}
	target := watchlist.CSVDir{Dir: *dir}
	for _, o := range owners {
		_, save := watchlist.Bind(target, o)
		if err := exportOwner(ctx, repo, o, save); err != nil {
			logger.Fatal("export failed", zap.String("owner", o), zap.Error(err))
		}
	}
	logger.Info("export done", zap.Int("owners", len(owners)), zap.String("dir", *dir))
}

func exportOwner(ctx context.Context, repo *watchlist.SQLRepo, owner string, save watchlist.SaveFunc) error {
	entries, err := repo.Load(ctx, owner)
	if err != nil {
		return err
	}
	return save(ctx, entries)
}
