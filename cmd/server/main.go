// Command server runs the HTTP API, the background job dispatcher and the
// push hub in a single process, per spec.md §1's single-process topology.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/api"
	"github.com/openkaraoke/studio/internal/cache"
	"github.com/openkaraoke/studio/internal/collaborators"
	"github.com/openkaraoke/studio/internal/config"
	"github.com/openkaraoke/studio/internal/coordinator"
	"github.com/openkaraoke/studio/internal/dispatcher"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/eventbus"
	"github.com/openkaraoke/studio/internal/logging"
	"github.com/openkaraoke/studio/internal/metrics"
	"github.com/openkaraoke/studio/internal/pipeline"
	"github.com/openkaraoke/studio/internal/pushhub"
	"github.com/openkaraoke/studio/internal/storage"
	"github.com/openkaraoke/studio/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Server.Environment, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, logger); err != nil {
		return err
	}

	store := postgres.NewStore(db, logger)
	jobStore := postgres.NewJobRepository(db, logger)

	bus := eventbus.New(eventbus.DefaultBufferSize)

	var bridge *eventbus.NATSBridge
	if cfg.NATS.URL != "" {
		bridge, err = eventbus.NewNATSBridge(cfg.NATS.URL, bus, logger)
		if err != nil {
			logger.Warn("nats mirror disabled", zap.Error(err))
		} else {
			go bridge.Run()
		}
	}

	var searchCache *cache.SearchCache
	m := metrics.New()
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewClient(cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis cache disabled", zap.Error(err))
		} else {
			searchCache = cache.New(redisClient, logger, m)
		}
	}

	layout := storage.NewLayout(cfg.Library.Dir)

	metadataProvider := collaborators.NewITunesMetadataProvider(http.DefaultClient)
	lyricsProvider := collaborators.UnconfiguredLyricsProvider{}
	fetcher := collaborators.UnconfiguredFetcher{}
	separator := collaborators.UnconfiguredSeparator{}

	coord := coordinator.New(store, jobStore, bus, searchCache, logger)

	pl := pipeline.New(
		store, jobStore,
		fetcher, separator, metadataProvider, lyricsProvider,
		cfg.Library.Dir,
		pipeline.WithTimeouts(pipeline.StepTimeouts{
			Fetch:    cfg.Worker.FetchTimeout,
			Separate: cfg.Worker.SeparateTimeout,
			Metadata: cfg.Worker.MetadataTimeout,
			Lyrics:   cfg.Worker.LyricsTimeout,
		}),
		pipeline.WithSeparatorDevice(cfg.Worker.SeparatorDevice),
		pipeline.WithProgressHook(func(ctx context.Context, job *entities.Job) {
			bus.Publish(eventbus.TopicJobUpdated, *job)
		}),
	)

	disp := dispatcher.New(jobStore, pl, bus, logger, cfg.Worker.Concurrency)

	hub := pushhub.New(bus, coord, logger)

	router := api.NewRouter(api.Deps{
		Coordinator:      coord,
		Store:            store,
		Layout:           layout,
		LyricsProvider:   lyricsProvider,
		MetadataProvider: metadataProvider,
		Hub:              hub,
		Metrics:          m,
		Logger:           logger,
		AllowedOrigins:   cfg.Server.CORSOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPBind,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp.Start(ctx)
	go hub.Run(ctx)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPBind))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	cancel()
	disp.Stop()
	if bridge != nil {
		bridge.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
