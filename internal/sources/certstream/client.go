package certstream

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/models"
	"lrx-radar/internal/domain/services"
	"lrx-radar/pkg/logger"
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second
)

// certMessage is the subset of a certificate-transparency stream message
// the worker cares about
type certMessage struct {
	MessageType string `json:"message_type"`
	Data        struct {
		CertIndex int64   `json:"cert_index"`
		Seen      float64 `json:"seen"`
		LeafCert  struct {
			AllDomains []string `json:"all_domains"`
			Issuer     struct {
				O string `json:"O"`
			} `json:"issuer"`
		} `json:"leaf_cert"`
	} `json:"data"`
}

// EventQueue is where matched certificates are enqueued as threat payloads
type EventQueue interface {
	Push(ctx context.Context, payload any) error
}

// Client consumes the certificate-transparency firehose, runs every new
// certificate's domains through the lookalike matcher and enqueues one
// threat payload per matched certificate. The connection reconnects with
// doubling backoff, reset after each successful dial.
type Client struct {
	cfg          config.CertStreamConfig
	matcher      *services.BrandMatcher
	queue        EventQueue
	logger       *logger.Logger
	rng          *rand.Rand
	backoffStart time.Duration
}

// NewClient creates a new certificate-stream client
func NewClient(cfg config.CertStreamConfig, matcher *services.BrandMatcher, q EventQueue, log *logger.Logger) *Client {
	return &Client{
		cfg:          cfg,
		matcher:      matcher,
		queue:        q,
		logger:       log.WithComponent("certstream"),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		backoffStart: time.Second,
	}
}

// Run consumes the stream until the context is cancelled. With once set it
// returns after the first matched event; a non-zero maxEvents bounds the
// total emitted before returning.
func (c *Client) Run(ctx context.Context, once bool, maxEvents int) error {
	if !c.cfg.Enabled {
		c.logger.Info().Msg("certstream worker disabled")
		return nil
	}

	maxBackoff := c.cfg.ReconnectMaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 60 * time.Second
	}

	emitted := 0
	backoff := c.backoffStart
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, connected, err := c.consume(ctx, once, maxEvents, &emitted)
		if done {
			return err
		}
		if connected {
			backoff = c.backoffStart
		}
		if err != nil {
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("stream connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consume dials the stream and reads until an error or the event budget is
// reached. done reports whether Run should stop entirely; connected reports
// whether the dial succeeded, which resets the reconnect backoff.
func (c *Client) consume(ctx context.Context, once bool, maxEvents int, emitted *int) (done, connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return false, false, err
	}
	defer conn.Close()

	c.logger.Info().Str("url", c.cfg.WSURL).Msg("connected to certificate stream")

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-pinger.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return true, true, ctx.Err()
			}
			return false, true, err
		}

		var msg certMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		payload := c.buildPayload(&msg)
		if payload == nil {
			continue
		}

		if err := c.queue.Push(ctx, payload); err != nil {
			c.logger.Error().Err(err).Str("indicator", payload.IndicatorValue).Msg("failed to enqueue event")
			continue
		}
		*emitted++
		c.logger.Info().Int("emitted", *emitted).Str("indicator", payload.IndicatorValue).Msg("enqueued lookalike certificate")

		if once {
			return true, true, nil
		}
		if maxEvents > 0 && *emitted >= maxEvents {
			return true, true, nil
		}
	}
}

// buildPayload matches a certificate's domains against the monitored
// brands. The first matching domain wins; certificates with no match
// yield nil.
func (c *Client) buildPayload(msg *certMessage) *models.ThreatEventPayload {
	if msg.MessageType != "certificate_update" {
		return nil
	}
	if len(msg.Data.LeafCert.AllDomains) == 0 {
		return nil
	}

	for _, rawDomain := range msg.Data.LeafCert.AllDomains {
		domain := strings.TrimLeft(strings.ToLower(rawDomain), "*.")
		brand, score := c.matcher.Match(domain)
		if brand == "" {
			continue
		}

		country := services.InferCountry(domain)
		confidence := int(score * 100)
		if confidence < 80 {
			confidence = 80
		}
		if confidence > 99 {
			confidence = 99
		}

		issuer := msg.Data.LeafCert.Issuer.O
		if issuer == "" {
			issuer = "unknown"
		}

		occurredAt := ""
		if msg.Data.Seen > 0 {
			occurredAt = time.Unix(int64(msg.Data.Seen), 0).UTC().Format(time.RFC3339)
		}

		return &models.ThreatEventPayload{
			Type:           models.EventTypeThreat,
			Source:         "certstream",
			IndicatorType:  "domain",
			IndicatorValue: domain,
			Category:       "Typosquatting",
			Country:        country.Name,
			CountryCode:    country.Code,
			BrandTarget:    brand,
			AttackType:     "Phishing Infrastructure Prep",
			PrimaryTarget:  brand + " identities",
			Volume:         5 + c.rng.Intn(36),
			AtoHits:        c.rng.Intn(3),
			Confidence:     confidence,
			EventMeta: map[string]any{
				"tags":       []string{"certstream", "ct-log", "lookalike-domain"},
				"issuer":     issuer,
				"cert_index": msg.Data.CertIndex,
			},
			OccurredAt: occurredAt,
		}
	}
	return nil
}
