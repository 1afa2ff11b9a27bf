package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/services"
	"lrx-radar/internal/infrastructure/cache"
	"lrx-radar/internal/infrastructure/database"
	"lrx-radar/internal/infrastructure/database/repository"
	"lrx-radar/internal/infrastructure/queue"
	"lrx-radar/internal/streaming"
	"lrx-radar/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "process one message and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	} else {
		log = logger.NewDevelopment()
	}
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("version", cfg.App.Version).
		Msg("starting LRX Radar processor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure
	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database schema")
	}

	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	rawQueue := queue.NewRedisQueue(redisCache.Client(), cfg.Queue.RawEvents, cfg.Queue.PopTimeout, log)

	// Initialize services
	repos := repository.NewRepositories(db.Pool())
	normalizer := services.NewNormalizer(repos, repos, repos, repos, log)

	// Optional real-time alert fanout
	if cfg.NATS.Enabled {
		publisher, err := streaming.NewNATSPublisher(cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without alert fanout")
		} else {
			defer publisher.Close()
			normalizer.SetEventPublisher(publisher)
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	processor := services.NewProcessor(rawQueue, normalizer, log)
	if err := processor.Run(ctx, *once); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("processor stopped with error")
	}

	log.Info().Msg("shutdown complete")
}
