// Command import-csv loads watchlist CSV files into the SQLite backend.
//
// A single file is imported for -owner; with -dir every <owner>.csv file in
// the directory is imported under its file name, which migrates a CSV
// backend to SQLite.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"animehub/internal/watchlist"
	"animehub/pkg/database"
	"animehub/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ./animehub.yaml)")
		in         = flag.String("in", "watchlist.csv", "input watchlist CSV")
		owner      = flag.String("owner", "local", "owner the file is imported for")
		dir        = flag.String("dir", "", "import every <owner>.csv in this directory instead of -in")
		strict     = flag.Bool("strict", false, "reject files with invalid or duplicate rows")
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

	files := map[string]string{*owner: *in}
	if *dir != "" {
		if files, err = ownerFiles(*dir); err != nil {
			logger.Fatal("scan dir failed", zap.String("dir", *dir), zap.Error(err))
		}
	}

	total := 0
	for o, path := range files {
		n, err := importFile(ctx, db, o, path, *strict)
		if err != nil {
			logger.Fatal("import failed", zap.String("owner", o), zap.String("file", path), zap.Error(err))
		}
		logger.Info("imported", zap.String("owner", o), zap.String("file", path), zap.Int("entries", n))
		total += n
	}
	logger.Info("import done", zap.Int("owners", len(files)), zap.Int("entries", total), zap.String("db", cfg.Database.Path))
}

// importFile replaces owner's watchlist with the file's rows through a
// Store, so the rows get the same defaulting and duplicate handling as a
// bulk replace over HTTP.
func importFile(ctx context.Context, db *sql.DB, owner, path string, strict bool) (int, error) {
	in := watchlist.CSVFile{Path: path}
	read := in.Load
	if strict {
		read = in.LoadStrict
	}
	rows, err := read(ctx)
	if err != nil {
		return 0, err
	}

	load, save := watchlist.Bind(watchlist.NewSQLRepo(db), owner)
	store, err := watchlist.Open(ctx, load, save)
	if err != nil {
		return 0, err
	}
	if err := store.BulkReplace(ctx, rows); err != nil {
		return 0, err
	}
	return store.Len(), nil
}

func ownerFiles(dir string) (map[string]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		out[strings.TrimSuffix(filepath.Base(m), ".csv")] = m
	}
	return out, nil
}
