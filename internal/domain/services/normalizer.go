package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

// ThreatEventStore is the persistence surface the normalizer writes threat
// events through. UpsertThreatEvent must be atomic on the dedupe hash: when
// a row with the same hash exists the sighting is merged into it (see
// models.ThreatEvent.ApplySighting), so concurrent upserts of the same
// artifact are safe without any lock in the normalizer.
type ThreatEventStore interface {
	UpsertThreatEvent(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error)
}

// AlertStore persists alerts and answers the open-alert idempotence check
type AlertStore interface {
	FindOpenAlert(ctx context.Context, threatEventID uuid.UUID) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
}

// AtoEventStore persists account-takeover signals
type AtoEventStore interface {
	InsertAtoEvent(ctx context.Context, event *models.AtoEvent) error
}

// DmarcReportStore persists email-authentication report records
type DmarcReportStore interface {
	InsertDmarcReport(ctx context.Context, report *models.DmarcReport) error
}

// EventPublisher receives notifications about newly raised alerts.
// Implementations must never fail the ingestion path.
type EventPublisher interface {
	PublishAlert(ctx context.Context, alert *models.Alert, event *models.ThreatEvent)
}

// Alert thresholds: at or above alertConfidenceThreshold an alert is
// raised; at or above criticalConfidenceThreshold it is critical.
const (
	alertConfidenceThreshold    = 85
	criticalConfidenceThreshold = 95
)

// Normalizer turns raw queue payloads into canonical records and writes
// them to the indicator store. Malformed optional fields are normalized to
// safe defaults, never surfaced as errors.
type Normalizer struct {
	threats   ThreatEventStore
	alerts    AlertStore
	atos      AtoEventStore
	dmarcs    DmarcReportStore
	publisher EventPublisher
	logger    *logger.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(threats ThreatEventStore, alerts AlertStore, atos AtoEventStore, dmarcs DmarcReportStore, log *logger.Logger) *Normalizer {
	return &Normalizer{
		threats: threats,
		alerts:  alerts,
		atos:    atos,
		dmarcs:  dmarcs,
		logger:  log.WithComponent("normalizer"),
	}
}

// SetEventPublisher wires an optional alert publisher
func (n *Normalizer) SetEventPublisher(p EventPublisher) {
	n.publisher = p
}

// NormalizeThreat builds a canonical ThreatEvent from a raw payload,
// filling defaults, computing the dedupe hash and parsing the occurrence
// timestamp with a silent now-fallback. Confidence is passed through raw:
// zero means the producer sent none, so the store defaults a fresh insert
// to 50 while a merge keeps the existing value instead of raising it.
func (n *Normalizer) NormalizeThreat(p *models.ThreatEventPayload, now time.Time) *models.ThreatEvent {
	event := &models.ThreatEvent{
		Source:         stringOr(p.Source, "unknown"),
		IndicatorType:  models.ParseIndicatorType(stringOr(p.IndicatorType, "domain")),
		IndicatorValue: stringOr(p.IndicatorValue, "unknown"),
		Category:       stringOr(p.Category, "Unknown"),
		Country:        stringOr(p.Country, "Unknown"),
		CountryCode:    stringOr(p.CountryCode, "--"),
		BrandTarget:    stringOr(p.BrandTarget, "Unknown"),
		AttackType:     stringOr(p.AttackType, "Unknown"),
		PrimaryTarget:  stringOr(p.PrimaryTarget, "Unknown"),
		Volume:         intOr(p.Volume, 1),
		AtoHits:        p.AtoHits,
		Confidence:     p.Confidence,
		Metadata:       p.EventMeta,
		FirstSeen:      now,
		LastSeen:       now,
		OccurredAt:     now,
	}

	if ts, ok := ParseTimestamp(p.OccurredAt); ok {
		event.OccurredAt = ts
	}

	// The hash covers the raw tuple exactly as it arrived, missing
	// fields as empty strings, so producers and consumers agree on
	// identity regardless of display defaults.
	event.DedupeHash = p.DedupeHash
	if event.DedupeHash == "" {
		event.DedupeHash = models.DedupeHash(
			p.Source, models.IndicatorType(p.IndicatorType), p.IndicatorValue,
			p.BrandTarget, p.Country, p.Category,
		)
	}

	return event
}

// IngestThreat normalizes and upserts one threat payload, then runs the
// alert check against the merged record.
func (n *Normalizer) IngestThreat(ctx context.Context, p *models.ThreatEventPayload) (*models.ThreatEvent, error) {
	event := n.NormalizeThreat(p, time.Now().UTC())

	stored, err := n.threats.UpsertThreatEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert threat event: %w", err)
	}

	if err := n.raiseAlertIfNeeded(ctx, stored); err != nil {
		// Alerting is best-effort; the indicator is already stored.
		n.logger.Warn().Err(err).Str("indicator", stored.IndicatorValue).Msg("alert check failed")
	}

	return stored, nil
}

// raiseAlertIfNeeded creates an alert for a high-confidence event unless
// one is already open for it
func (n *Normalizer) raiseAlertIfNeeded(ctx context.Context, event *models.ThreatEvent) error {
	if event.Confidence < alertConfidenceThreshold {
		return nil
	}

	existing, err := n.alerts.FindOpenAlert(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to look up open alert: %w", err)
	}
	if existing != nil {
		return nil
	}

	severity := models.SeverityHigh
	if event.Confidence >= criticalConfidenceThreshold {
		severity = models.SeverityCritical
	}

	alert := &models.Alert{
		ThreatEventID: event.ID,
		Severity:      severity,
		Status:        models.AlertStatusOpen,
		Title:         fmt.Sprintf("%s targeted by %s", event.BrandTarget, event.Category),
		Description: fmt.Sprintf("%s observed from %s with confidence %d%%.",
			event.IndicatorValue, event.Country, event.Confidence),
	}
	if err := n.alerts.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	n.logger.Info().
		Str("severity", severity.String()).
		Str("indicator", event.IndicatorValue).
		Int("confidence", event.Confidence).
		Msg("alert raised")

	if n.publisher != nil {
		n.publisher.PublishAlert(ctx, alert, event)
	}
	return nil
}

// IngestAto stores one account-takeover signal
func (n *Normalizer) IngestAto(ctx context.Context, p *models.AtoEventPayload) (*models.AtoEvent, error) {
	now := time.Now().UTC()
	event := &models.AtoEvent{
		UserEmail:   stringOr(p.UserEmail, "unknown@unknown.local"),
		Loc1:        stringOr(p.Loc1, "Unknown"),
		Loc2:        stringOr(p.Loc2, "Unknown"),
		RiskScore:   intOr(p.RiskScore, 50),
		ActionTaken: stringOr(p.ActionTaken, "monitor"),
		CreatedAt:   now,
	}
	if ts, ok := ParseTimestamp(p.CreatedAt); ok {
		event.CreatedAt = ts
	}

	if err := n.atos.InsertAtoEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert ato event: %w", err)
	}
	return event, nil
}

// IngestDmarc stores one email-authentication report record
func (n *Normalizer) IngestDmarc(ctx context.Context, p *models.DmarcReportPayload) (*models.DmarcReport, error) {
	now := time.Now().UTC()
	report := &models.DmarcReport{
		Domain:       stringOr(p.Domain, "unknown.local"),
		ReportingOrg: stringOr(p.ReportingOrg, "unknown"),
		SourceIP:     stringOr(p.SourceIP, "0.0.0.0"),
		Disposition:  stringOr(p.Disposition, models.DispositionNone),
		SpfResult:    stringOr(p.SpfResult, "fail"),
		DkimResult:   stringOr(p.DkimResult, "fail"),
		MsgCount:     intOr(p.MsgCount, 1),
		ReportDate:   ParseDateOr(p.ReportDate, now),
		RawPayload:   p.RawPayload,
		CreatedAt:    now,
	}
	if ts, ok := ParseTimestamp(p.CreatedAt); ok {
		report.CreatedAt = ts
	}

	if err := n.dmarcs.InsertDmarcReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to insert dmarc report: %w", err)
	}
	return report, nil
}

// ParseTimestamp parses an ISO-8601 timestamp (Z-suffixed, offset or naive
// form). The boolean reports success; the caller supplies its own fallback.
func ParseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseDateOr parses an ISO date, falling back to the given time's date
func ParseDateOr(value string, fallback time.Time) time.Time {
	if value != "" {
		if d, err := time.Parse("2006-01-02", value); err == nil {
			return d
		}
	}
	return fallback.Truncate(24 * time.Hour)
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
