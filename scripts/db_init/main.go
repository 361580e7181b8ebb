package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	dbfs "github.com/garnizeh/fixit/db"
	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/internal/db"
	"github.com/garnizeh/fixit/internal/repository/sqlite"
	"github.com/garnizeh/fixit/internal/seed"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	withSeed := flag.Bool("seed", false, "Load the demo fixtures after migrating")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	n, err := db.Migrate(ctx, database, dbfs.Migrations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Applied %d migration(s) to %s.\n", n, cfg.DatabasePath)

	if !*withSeed {
		return
	}
	fixtures, err := seed.Load(dbfs.SeedFiles, seed.DefaultFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed load error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	report, err := seed.New(sqlite.New(database, logger), logger).Run(ctx, fixtures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d users, %d workers, %d job requests, %d threads, %d messages.\n",
		report.Users, report.Workers, report.JobRequests, report.Threads, report.Messages)
}
