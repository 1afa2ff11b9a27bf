package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

// fakeThreatStore keeps one row per dedupe hash and merges repeat
// sightings, mirroring the database upsert
type fakeThreatStore struct {
	byHash map[string]*models.ThreatEvent
}

func newFakeThreatStore() *fakeThreatStore {
	return &fakeThreatStore{byHash: make(map[string]*models.ThreatEvent)}
}

func (s *fakeThreatStore) UpsertThreatEvent(_ context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error) {
	if existing, ok := s.byHash[event.DedupeHash]; ok {
		existing.ApplySighting(event.Volume, event.AtoHits, event.Confidence, event.Metadata, event.LastSeen)
		return existing, nil
	}
	event.ID = uuid.New()
	if event.Confidence == 0 {
		event.Confidence = 50
	}
	s.byHash[event.DedupeHash] = event
	return event, nil
}

type fakeAlertStore struct {
	alerts []*models.Alert
}

func (s *fakeAlertStore) FindOpenAlert(_ context.Context, threatEventID uuid.UUID) (*models.Alert, error) {
	for _, a := range s.alerts {
		if a.ThreatEventID == threatEventID && a.Status == models.AlertStatusOpen {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeAlertStore) CreateAlert(_ context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

type fakeAtoStore struct {
	events []*models.AtoEvent
}

func (s *fakeAtoStore) InsertAtoEvent(_ context.Context, event *models.AtoEvent) error {
	s.events = append(s.events, event)
	return nil
}

type fakeDmarcStore struct {
	reports []*models.DmarcReport
}

func (s *fakeDmarcStore) InsertDmarcReport(_ context.Context, report *models.DmarcReport) error {
	s.reports = append(s.reports, report)
	return nil
}

func newTestNormalizer() (*Normalizer, *fakeThreatStore, *fakeAlertStore, *fakeAtoStore, *fakeDmarcStore) {
	threats := newFakeThreatStore()
	alerts := &fakeAlertStore{}
	atos := &fakeAtoStore{}
	dmarcs := &fakeDmarcStore{}
	n := NewNormalizer(threats, alerts, atos, dmarcs, logger.NewDevelopment())
	return n, threats, alerts, atos, dmarcs
}

func TestNormalizeThreatDefaults(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	event := n.NormalizeThreat(&models.ThreatEventPayload{Type: models.EventTypeThreat}, now)

	assert.Equal(t, "unknown", event.Source)
	assert.Equal(t, models.IndicatorTypeDomain, event.IndicatorType)
	assert.Equal(t, "unknown", event.IndicatorValue)
	assert.Equal(t, "Unknown", event.Category)
	assert.Equal(t, "Unknown", event.Country)
	assert.Equal(t, "--", event.CountryCode)
	assert.Equal(t, "Unknown", event.BrandTarget)
	assert.Equal(t, 1, event.Volume)
	assert.Zero(t, event.Confidence, "absent confidence defers to the store")
	assert.Equal(t, now, event.OccurredAt)
	assert.NotEmpty(t, event.DedupeHash)
}

func TestNormalizeThreatHashesRawTuple(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()

	// The hash covers the fields exactly as they arrived: absent ones
	// stay empty strings, untouched by display defaults.
	event := n.NormalizeThreat(&models.ThreatEventPayload{
		Type:           models.EventTypeThreat,
		Source:         "seed",
		IndicatorType:  "domain",
		IndicatorValue: "evil.com",
	}, time.Now().UTC())

	assert.Equal(t,
		"c6f4b7137768f59314cda8b36bb0e94927d63c70685431af66ed3e25390f2da4",
		event.DedupeHash)
	assert.NotEqual(t,
		models.DedupeHash("seed", models.IndicatorTypeDomain, "evil.com", "Unknown", "Unknown", "Unknown"),
		event.DedupeHash)
}

func TestNormalizeThreatKeepsProvidedHash(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()

	event := n.NormalizeThreat(&models.ThreatEventPayload{
		IndicatorValue: "paypa1-login.com",
		DedupeHash:     "precomputed",
	}, time.Now().UTC())

	assert.Equal(t, "precomputed", event.DedupeHash)
}

func TestNormalizeThreatParsesTimestamp(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	event := n.NormalizeThreat(&models.ThreatEventPayload{
		IndicatorValue: "x.com",
		OccurredAt:     "2026-08-29T10:15:00Z",
	}, now)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC), event.OccurredAt)

	// Garbage timestamps fall back to now silently
	event = n.NormalizeThreat(&models.ThreatEventPayload{
		IndicatorValue: "x.com",
		OccurredAt:     "yesterday-ish",
	}, now)
	assert.Equal(t, now, event.OccurredAt)
}

func TestIngestThreatMergesRepeatSightings(t *testing.T) {
	n, threats, _, _, _ := newTestNormalizer()
	ctx := context.Background()

	payload := &models.ThreatEventPayload{
		Source:         "certstream",
		IndicatorType:  "domain",
		IndicatorValue: "paypa1-login.com",
		BrandTarget:    "Paypal",
		Country:        "Russia",
		Category:       "Typosquatting",
		Volume:         620,
		Confidence:     83,
	}

	first, err := n.IngestThreat(ctx, payload)
	require.NoError(t, err)

	payload.Volume = 10
	payload.Confidence = 70
	second, err := n.IngestThreat(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 630, second.Volume)
	assert.Equal(t, 83, second.Confidence)
	assert.Len(t, threats.byHash, 1)
}

func TestIngestThreatConfidenceDefaults(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()
	ctx := context.Background()

	payload := &models.ThreatEventPayload{
		Source:         "seed",
		IndicatorValue: "paypa1-login.com",
		BrandTarget:    "Paypal",
		Category:       "Typosquatting",
		Confidence:     40,
	}

	first, err := n.IngestThreat(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 40, first.Confidence)

	// A repeat sighting without confidence keeps the existing value
	// rather than raising it to the insert default.
	payload.Confidence = 0
	second, err := n.IngestThreat(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 40, second.Confidence)

	// A fresh insert without confidence gets the default.
	fresh, err := n.IngestThreat(ctx, &models.ThreatEventPayload{
		Source:         "seed",
		IndicatorValue: "g00gle-verify.net",
		BrandTarget:    "Google",
		Category:       "Typosquatting",
	})
	require.NoError(t, err)
	assert.Equal(t, 50, fresh.Confidence)
}

func TestIngestThreatAlertThresholds(t *testing.T) {
	cases := []struct {
		name         string
		confidence   int
		wantAlert    bool
		wantSeverity models.Severity
	}{
		{"below threshold", 84, false, ""},
		{"at threshold", 85, true, models.SeverityHigh},
		{"critical", 95, true, models.SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, _, alerts, _, _ := newTestNormalizer()

			_, err := n.IngestThreat(context.Background(), &models.ThreatEventPayload{
				IndicatorValue: "paypa1-login.com",
				BrandTarget:    "Paypal",
				Category:       "Typosquatting",
				Country:        "Russia",
				Confidence:     tc.confidence,
			})
			require.NoError(t, err)

			if !tc.wantAlert {
				assert.Empty(t, alerts.alerts)
				return
			}
			require.Len(t, alerts.alerts, 1)
			alert := alerts.alerts[0]
			assert.Equal(t, tc.wantSeverity, alert.Severity)
			assert.Equal(t, models.AlertStatusOpen, alert.Status)
			assert.Equal(t, "Paypal targeted by Typosquatting", alert.Title)
			assert.Equal(t,
				fmt.Sprintf("paypa1-login.com observed from Russia with confidence %d%%.", tc.confidence),
				alert.Description)
		})
	}
}

func TestIngestThreatAlertIsIdempotent(t *testing.T) {
	n, _, alerts, _, _ := newTestNormalizer()
	ctx := context.Background()

	payload := &models.ThreatEventPayload{
		IndicatorValue: "paypa1-login.com",
		BrandTarget:    "Paypal",
		Category:       "Typosquatting",
		Confidence:     92,
	}

	for i := 0; i < 3; i++ {
		_, err := n.IngestThreat(ctx, payload)
		require.NoError(t, err)
	}

	assert.Len(t, alerts.alerts, 1, "only one open alert per event")
}

func TestIngestAtoDefaults(t *testing.T) {
	n, _, _, atos, _ := newTestNormalizer()

	event, err := n.IngestAto(context.Background(), &models.AtoEventPayload{Type: models.EventTypeAto, UserEmail: ""})
	require.NoError(t, err)

	assert.Equal(t, "unknown@unknown.local", event.UserEmail)
	assert.Equal(t, "Unknown", event.Loc1)
	assert.Equal(t, 50, event.RiskScore)
	assert.Equal(t, "monitor", event.ActionTaken)
	assert.Len(t, atos.events, 1)
}

func TestIngestDmarcDefaults(t *testing.T) {
	n, _, _, _, dmarcs := newTestNormalizer()

	report, err := n.IngestDmarc(context.Background(), &models.DmarcReportPayload{Type: models.EventTypeDmarc})
	require.NoError(t, err)

	assert.Equal(t, "unknown.local", report.Domain)
	assert.Equal(t, "0.0.0.0", report.SourceIP)
	assert.Equal(t, models.DispositionNone, report.Disposition)
	assert.Equal(t, "fail", report.SpfResult)
	assert.Equal(t, 1, report.MsgCount)
	assert.Len(t, dmarcs.reports, 1)
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := []string{
		"2026-08-30T12:00:00Z",
		"2026-08-30T12:00:00+02:00",
		"2026-08-30T12:00:00.123456",
		"2026-08-30T12:00:00",
	}
	for _, value := range cases {
		_, ok := ParseTimestamp(value)
		assert.True(t, ok, value)
	}

	_, ok := ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("30/08/2026")
	assert.False(t, ok)
}

func TestParseDateOr(t *testing.T) {
	fallback := time.Date(2026, 8, 30, 15, 45, 0, 0, time.UTC)

	parsed := ParseDateOr("2026-08-01", fallback)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), parsed)

	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), ParseDateOr("", fallback))
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), ParseDateOr("not-a-date", fallback))
}
