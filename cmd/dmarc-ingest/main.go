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
	"lrx-radar/internal/infrastructure/cache"
	"lrx-radar/internal/infrastructure/queue"
	"lrx-radar/internal/sources/dmarc"
	"lrx-radar/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run one directory scan and exit")
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
		Str("drop_dir", cfg.Dmarc.DropDir).
		Msg("starting LRX Radar dmarc ingester")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	rawQueue := queue.NewRedisQueue(redisCache.Client(), cfg.Queue.RawEvents, cfg.Queue.PopTimeout, log)

	scanner := dmarc.NewScanner(cfg.Dmarc, redisCache, rawQueue, log)
	if err := scanner.Run(ctx, *once); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("dmarc ingester stopped with error")
	}

	log.Info().Msg("shutdown complete")
}
