package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/fixit/api"
	dbfs "github.com/garnizeh/fixit/db"
	"github.com/garnizeh/fixit/internal/booking"
	"github.com/garnizeh/fixit/internal/catalog"
	"github.com/garnizeh/fixit/internal/chat"
	"github.com/garnizeh/fixit/internal/classifier"
	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/internal/db"
	"github.com/garnizeh/fixit/internal/directory"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/internal/jobs"
	"github.com/garnizeh/fixit/internal/matching"
	"github.com/garnizeh/fixit/internal/realtime"
	"github.com/garnizeh/fixit/internal/repository/memory"
	"github.com/garnizeh/fixit/internal/repository/sqlite"
	"github.com/garnizeh/fixit/internal/seed"
	"github.com/garnizeh/fixit/pkg/ollama"
	"github.com/garnizeh/fixit/pkg/repository"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	var seedDemo = flag.Bool("seed", false, "Load the demo fixtures before serving")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	logger.Info("starting fixit server", "version", version, "build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *seedDemo || cfg.SeedOnStart); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openStore returns the domain store and the SQLite database backing the job
// queue. With the memory driver the queue lives in a private in-memory database.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, *db.DB, error) {
	dsn := cfg.DatabasePath
	if cfg.DatabaseDriver == config.DriverMemory {
		dsn = "file:fixit-queue?mode=memory"
	}
	conn, err := db.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MigrateOnStart || cfg.DatabaseDriver == config.DriverMemory {
		n, err := db.Migrate(ctx, conn, dbfs.Migrations)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", "count", n)
	}

	if cfg.DatabaseDriver == config.DriverMemory {
		return memory.New(), conn, nil
	}
	return sqlite.New(conn, logger), conn, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, seedDemo bool) error {
	store, conn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close db", "error", err)
		}
	}()

	queue := jobs.NewRepository(conn)
	if n, err := queue.Requeue(ctx); err != nil {
		return fmt.Errorf("requeue jobs: %w", err)
	} else if n > 0 {
		logger.Info("requeued interrupted jobs", "count", n)
	}

	if seedDemo {
		fixtures, err := seed.Load(dbfs.SeedFiles, seed.DefaultFile)
		if err != nil {
			return fmt.Errorf("load demo fixtures: %w", err)
		}
		report, err := seed.New(store, logger).Run(ctx, fixtures)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("demo fixtures loaded", "users", report.Users, "workers", report.Workers,
			"job_requests", report.JobRequests, "threads", report.Threads, "messages", report.Messages)
	}

	engine, err := classifier.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	defer engine.Close()
	logger.Info("classifier ready", "provider", engine.Provider(), "model", cfg.EngineConfig.Model)
	if engine.Provider() != classifier.ProviderNone {
		if err := engine.Health(ctx); err != nil {
			logger.Warn("classifier backend not reachable, requests will use the default analysis", "error", err)
		}
	}

	cat, err := catalog.Load(dbfs.SeedFiles, catalog.DefaultFile)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	hub := realtime.NewHub(logger, cfg.AllowedOrigins)
	notifications := jobs.NewNotifications(store, store, hub, logger)
	pool := jobs.NewWorkerPool(queue, notifications.Handlers(), logger, cfg.Jobs.Workers)

	jobRequests := jobrequest.NewService(store, logger, jobrequest.WithWorkers(store))
	svc := api.Services{
		Users:     store,
		Directory: directory.NewService(store, store, logger),
		Jobs:      jobRequests,
		Booking: booking.NewService(engine, jobRequests, matching.NewEngine(store, cfg.Matching.MaxResults), store, store, logger,
			booking.WithQueue(pool, cfg.Jobs.MaxAttempts)),
		Chat:    chat.NewService(store, logger, chat.WithNotifier(hub), chat.WithPreferences(store)),
		Catalog: cat,
		Hub:     hub,
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.CORS(api.SetupRoutes(cfg, version, buildTime, svc), cfg.AllowedOrigins),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.Addr, "database_driver", cfg.DatabaseDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		hub.Close()
		return err
	})
	return g.Wait()
}
