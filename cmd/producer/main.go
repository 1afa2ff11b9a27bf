package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/services"
	"lrx-radar/internal/infrastructure/cache"
	"lrx-radar/internal/infrastructure/queue"
	"lrx-radar/internal/sources/urlhaus"
	"lrx-radar/pkg/logger"
)

// liveFeedSample caps how many live feed URLs get enqueued per cycle
const liveFeedSample = 3

func main() {
	once := flag.Bool("once", false, "run one enqueue cycle and exit")
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
		Str("queue", cfg.Queue.RawEvents).
		Bool("live_feed", cfg.Producer.LiveFeedEnabled).
		Msg("starting LRX Radar producer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	rawQueue := queue.NewRedisQueue(redisCache.Client(), cfg.Queue.RawEvents, cfg.Queue.PopTimeout, log)
	simulator := services.NewSimulator(cfg.Brands.List())

	var feed *urlhaus.Client
	if cfg.Producer.LiveFeedEnabled {
		feed = urlhaus.NewClient(cfg.Producer.URLhausAPIURL, log)
	}

	sleep := cfg.Producer.LoopSleep
	if sleep <= 0 {
		sleep = 20 * time.Second
	}

	for {
		enqueued := enqueueCycle(ctx, rawQueue, simulator, feed, log)
		log.Info().Int("events", enqueued).Msg("enqueue cycle complete")

		if *once {
			break
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown complete")
			return
		case <-time.After(sleep):
		}
	}
}

// enqueueCycle pushes one simulated signal of each kind, plus a sample of
// live feed URLs when the feed is enabled. Push failures are logged and
// skipped so one bad message never stalls the cycle.
func enqueueCycle(ctx context.Context, q *queue.RedisQueue, sim *services.Simulator, feed *urlhaus.Client, log *logger.Logger) int {
	events := []any{
		sim.ThreatEvent(),
		sim.AtoEvent(),
		sim.DmarcReport(),
	}
	if feed != nil {
		for _, payload := range feed.FetchRecent(ctx, liveFeedSample) {
			events = append(events, payload)
		}
	}

	enqueued := 0
	for _, payload := range events {
		if err := q.Push(ctx, payload); err != nil {
			log.Error().Err(err).Msg("failed to enqueue event")
			continue
		}
		enqueued++
	}
	return enqueued
}
