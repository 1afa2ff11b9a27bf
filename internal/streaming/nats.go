package streaming

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

// NATSPublisher fans alert and campaign notifications out to downstream
// consumers (SOC chat bridges, SIEM forwarders). Publishing is fire-and-
// forget: a broker outage degrades notifications, never ingestion.
type NATSPublisher struct {
	conn   *nats.Conn
	config config.NATSConfig
	logger *logger.Logger
}

// alertNotification is the wire shape of a new-alert message
type alertNotification struct {
	Alert *models.Alert       `json:"alert"`
	Event *models.ThreatEvent `json:"threat_event"`
}

// NewNATSPublisher connects to the broker and returns a publisher
func NewNATSPublisher(cfg config.NATSConfig, log *logger.Logger) (*NATSPublisher, error) {
	log = log.WithComponent("nats")

	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	log.Info().Str("url", cfg.URL).Msg("connecting to NATS")

	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("connected to NATS successfully")

	return &NATSPublisher{
		conn:   conn,
		config: cfg,
		logger: log,
	}, nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
}

// PublishAlert publishes a new-alert notification. Errors are logged and
// swallowed.
func (p *NATSPublisher) PublishAlert(ctx context.Context, alert *models.Alert, event *models.ThreatEvent) {
	subject := p.config.Subjects.NewAlert
	if subject == "" {
		subject = "radar.alerts.new"
	}
	p.publish(subject, alertNotification{Alert: alert, Event: event})
}

// PublishCampaign publishes a campaign-detected notification
func (p *NATSPublisher) PublishCampaign(ctx context.Context, campaign *models.Campaign) {
	subject := p.config.Subjects.CampaignDetected
	if subject == "" {
		subject = "radar.campaigns.detected"
	}
	p.publish(subject, campaign)
}

func (p *NATSPublisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to marshal notification")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish notification")
	}
}
