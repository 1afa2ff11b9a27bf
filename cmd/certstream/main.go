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
	"lrx-radar/internal/infrastructure/queue"
	"lrx-radar/internal/sources/certstream"
	"lrx-radar/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "exit after the first matched certificate")
	maxEvents := flag.Int("max-events", 0, "exit after emitting this many events (0 = unlimited)")
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

	if !cfg.CertStream.Enabled {
		log.Info().Msg("certstream watcher is disabled")
		return
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("ws_url", cfg.CertStream.WSURL).
		Msg("starting LRX Radar certstream watcher")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	rawQueue := queue.NewRedisQueue(redisCache.Client(), cfg.Queue.RawEvents, cfg.Queue.PopTimeout, log)

	matcher := services.NewBrandMatcher(cfg.Brands.List(), cfg.Brands.SimilarityThreshold, cfg.Brands.EmitOnExactBrand)
	client := certstream.NewClient(cfg.CertStream, matcher, rawQueue, log)

	if err := client.Run(ctx, *once, *maxEvents); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("certstream watcher stopped with error")
	}

	log.Info().Msg("shutdown complete")
}
