package services

import (
	"context"

	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

// RawEventQueue is the consuming side of the durable raw-event queue
type RawEventQueue interface {
	Pop(ctx context.Context) ([]byte, error)
}

// Processor drains the raw-event queue into the normalizer. Malformed
// messages are dropped with a log line; the loop itself only stops on
// context cancellation.
type Processor struct {
	queue      RawEventQueue
	normalizer *Normalizer
	logger     *logger.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(queue RawEventQueue, normalizer *Normalizer, log *logger.Logger) *Processor {
	return &Processor{
		queue:      queue,
		normalizer: normalizer,
		logger:     log.WithComponent("processor"),
	}
}

// Run consumes until ctx is cancelled. With once set it returns after the
// first processed message, or after the first empty poll.
func (p *Processor) Run(ctx context.Context, once bool) error {
	p.logger.Info().Bool("once", once).Msg("processor started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("processor stopping")
			return ctx.Err()
		default:
		}

		raw, err := p.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error().Err(err).Msg("queue pop failed")
			continue
		}
		if raw == nil {
			if once {
				return nil
			}
			continue
		}

		p.handle(ctx, raw)

		if once {
			return nil
		}
	}
}

// handle decodes and routes one queue message. Errors never propagate:
// a bad message is logged and dropped so the loop keeps draining.
func (p *Processor) handle(ctx context.Context, raw []byte) {
	env, err := models.DecodeEnvelope(raw)
	if err != nil {
		p.logger.Warn().Err(err).Msg("dropping malformed queue message")
		return
	}

	switch env.Type {
	case models.EventTypeThreat:
		event, err := p.normalizer.IngestThreat(ctx, env.Threat)
		if err != nil {
			p.logger.Error().Err(err).Str("indicator", env.Threat.IndicatorValue).Msg("failed to ingest threat event")
			return
		}
		p.logger.Debug().
			Str("indicator", event.IndicatorValue).
			Str("brand", event.BrandTarget).
			Int("confidence", event.Confidence).
			Msg("threat event ingested")
	case models.EventTypeAto:
		if _, err := p.normalizer.IngestAto(ctx, env.Ato); err != nil {
			p.logger.Error().Err(err).Str("user", env.Ato.UserEmail).Msg("failed to ingest ato event")
		}
	case models.EventTypeDmarc:
		if _, err := p.normalizer.IngestDmarc(ctx, env.Dmarc); err != nil {
			p.logger.Error().Err(err).Str("domain", env.Dmarc.Domain).Msg("failed to ingest dmarc report")
		}
	}
}
