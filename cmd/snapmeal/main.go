package main

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/snapmeal/internal/analysis"
	"github.com/dmitrymomot/snapmeal/internal/config"
	"github.com/dmitrymomot/snapmeal/internal/goals"
	"github.com/dmitrymomot/snapmeal/internal/grant"
	"github.com/dmitrymomot/snapmeal/internal/httpapi"
	"github.com/dmitrymomot/snapmeal/internal/jobs"
	"github.com/dmitrymomot/snapmeal/internal/meal"
	"github.com/dmitrymomot/snapmeal/pkg/cache"
	"github.com/dmitrymomot/snapmeal/pkg/db"
	"github.com/dmitrymomot/snapmeal/pkg/goalsync"
	"github.com/dmitrymomot/snapmeal/pkg/logger"
	"github.com/dmitrymomot/snapmeal/pkg/redis"
	"github.com/dmitrymomot/snapmeal/pkg/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const goalsChannel = "goals.updates"

func main() {
	if err := run(); err != nil {
		slog.Error("service exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(cfg.Sentry, httpapi.RequestIDExtractor, httpapi.OwnerIDExtractor)
	slog.SetDefault(log)

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations, cfg.DB.MigrationsTable, log); err != nil {
		return err
	}
	riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return err
	}

	redisClient, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	mealRepo := meal.NewPostgresRepository(pool)
	goalsRepo := goals.NewPostgresRepository(pool)

	manager, err := jobs.NewManager(pool,
		jobs.NewPhotoCleanupWorker(store, log),
		jobs.NewOrphanSweepWorker(store, mealRepo, log),
		log,
	)
	if err != nil {
		return err
	}

	goalsBus := goalsync.New[goals.Goals]()
	defer goalsBus.Close()
	goalsFanout := goalsync.NewRedisFanout(redisClient, goalsChannel, goalsBus, log)

	goalsSvc := goals.NewService(goalsRepo, goalsFanout, log)
	issuer := grant.NewIssuer(store, cfg.Upload, log)
	orchestrator := analysis.NewOrchestrator(store, analysis.NewHTTPEngine(cfg.Engine), mealRepo, cfg.Analysis, log)
	corrections := meal.NewCorrectionService(mealRepo, log)
	summaryCache := cache.NewRedis[meal.DailySummary](redisClient, "summary", 5*time.Minute)
	summaries := meal.NewSummaryService(mealRepo, goalsSvc, summaryCache, log)
	deletions := meal.NewDeletionService(pool, mealRepo, manager, log)

	handlers := httpapi.NewHandlers(issuer, orchestrator, corrections, summaries, mealRepo, deletions, goalsSvc, goalsBus, log)
	router := httpapi.NewRouter(handlers, httpapi.NewHMACTokenVerifier(cfg.AuthSecret), log,
		db.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return manager.Stop(stopCtx)
	})

	g.Go(func() error {
		if err := goalsFanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
