package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/config"
	"github.com/meltforce/liftlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	catalogPath := flag.String("catalog", "", "path to catalog YAML file (required)")
	dryRun := flag.Bool("dry-run", false, "validate the catalog without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *catalogPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-seed -config config.yaml -catalog catalog.yaml [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := catalog.Load(*catalogPath)
	if err != nil {
		log.Error("invalid catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}
	log.Info("catalog loaded",
		"muscle_groups", len(f.MuscleGroups), "exercises", len(f.Exercises), "programs", len(f.Programs))

	if *dryRun {
		log.Info("dry run: not writing")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.SeedCatalog(ctx, f); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
	log.Info("catalog seeded")
}
