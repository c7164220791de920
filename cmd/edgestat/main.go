package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dustin/edgestat/internal/cloudfront"
	"github.com/dustin/edgestat/internal/config"
	"github.com/dustin/edgestat/internal/enrich"
	"github.com/dustin/edgestat/internal/loader"
	"github.com/dustin/edgestat/internal/logging"
	"github.com/dustin/edgestat/internal/metrics"
	"github.com/dustin/edgestat/internal/pipeline"
	"github.com/dustin/edgestat/internal/server"
	"github.com/dustin/edgestat/internal/session"
	"github.com/dustin/edgestat/internal/storage"
	"github.com/dustin/edgestat/internal/version"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info("starting edgestat", "version", version.Version, "commit", version.GitCommit)

	store, err := storage.Open(storage.Options{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DBDSN,
	})
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	geo, err := enrich.NewGeo(cfg.MaxMindDBPath)
	if err != nil {
		log.Warn("geo lookups disabled", "error", err)
	}
	if geo != nil {
		defer geo.Close()
	}

	tracker := session.NewTracker(cfg.SessionTimeout)
	ldr := loader.New(store, loader.Options{
		BatchSize:    cfg.BatchSize,
		ChunkTimeout: cfg.ChunkTimeout,
	})
	m := metrics.New(tracker.SessionCount, func() storage.TableStats {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stats, err := store.Stats(ctx)
		if err != nil {
			log.Warn("table stats", "error", err)
		}
		return stats
	})
	if err := m.Register(); err != nil {
		log.Error("register metrics", "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(cloudfront.New(cfg.HashSalt), enrich.New(geo), tracker, ldr, m)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(store),
	}
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "error", err)
			cancel()
		}
	}()

	exitCode := run(ctx, cfg, pipe, log)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("shutdown complete")
	os.Exit(exitCode)
}

// run processes the configured log paths once, then either exits (batch
// mode) or keeps tailing the first path until the context is canceled
// (follow mode).
func run(ctx context.Context, cfg config.Config, pipe *pipeline.Pipeline, log *slog.Logger) int {
	summary, err := pipe.ProcessFiles(ctx, cfg.LogPaths)
	if err != nil {
		log.Error("process logs", "error", err)
		if !cfg.Follow {
			return 1
		}
	}
	log.Info("initial load complete",
		"page_views", summary.PageViews,
		"sessions", summary.Sessions,
		"visitors", summary.Visitors)

	if !cfg.Follow {
		return 0
	}
	if len(cfg.LogPaths) == 0 {
		log.Error("follow mode requires a log path")
		return 1
	}

	if err := pipe.Follow(ctx, cfg.LogPaths[0], cfg.FlushInterval); err != nil {
		log.Error("follow", "error", err)
		return 1
	}
	return 0
}
