package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/models"
	"lrx-radar/internal/domain/services"
	"lrx-radar/pkg/logger"
)

type stubStore struct {
	threats []*models.ThreatEvent
	dmarcs  []*models.DmarcReport
}

func (s *stubStore) ListThreatEventsSince(context.Context, time.Time) ([]*models.ThreatEvent, error) {
	return s.threats, nil
}

func (s *stubStore) ListAtoEventsSince(context.Context, time.Time) ([]*models.AtoEvent, error) {
	return nil, nil
}

func (s *stubStore) ListDmarcReportsSince(context.Context, time.Time) ([]*models.DmarcReport, error) {
	return s.dmarcs, nil
}

func newCampaignsRouter(store *stubStore) http.Handler {
	log := logger.NewDevelopment()
	correlator := services.NewCorrelator(store, []string{"PayPal"}, log)
	orchestrator := services.NewOrchestrator(config.OrchestratorConfig{
		Timeout:          time.Second,
		PublicAPIBaseURL: "https://radar.example.com",
	}, log)
	h := NewCampaignsHandler(correlator, orchestrator, nil, config.CorrelationConfig{
		DefaultWindowHours: 48,
		DefaultLimit:       20,
		LookupWindowHours:  168,
	}, log)

	r := chi.NewRouter()
	r.Route("/api/campaigns", func(campaigns chi.Router) {
		campaigns.Get("/", h.List)
		campaigns.Get("/{id}", h.Get)
		campaigns.Get("/{id}/payloads", h.Payloads)
		campaigns.Post("/{id}/respond", h.Respond)
		campaigns.Get("/{id}/evidence/dmarc", h.Evidence)
	})
	return r
}

func seededStore() *stubStore {
	now := time.Now().UTC()
	return &stubStore{
		threats: []*models.ThreatEvent{
			{
				Source:         "certstream",
				IndicatorType:  models.IndicatorTypeDomain,
				IndicatorValue: "paypa1-login.com",
				Category:       "Typosquatting",
				Country:        "Russia",
				BrandTarget:    "Paypal",
				Volume:         120,
				Confidence:     90,
				OccurredAt:     now,
			},
		},
		dmarcs: []*models.DmarcReport{
			{Domain: "paypal.com", Disposition: models.DispositionReject, SpfResult: "fail", DkimResult: "fail", MsgCount: 30},
		},
	}
}

func campaignID() string {
	return models.CampaignID("paypal", "paypa1-login.com")
}

func TestCampaignsList(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns?hours=48&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Data        []*models.Campaign `json:"data"`
		Total       int                `json:"total"`
		WindowHours int                `json:"window_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	assert.Equal(t, 48, body.WindowHours)
	assert.Equal(t, campaignID(), body.Data[0].CampaignID)
	assert.Equal(t, "Paypal", body.Data[0].Brand)
}

func TestCampaignsGet(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns/"+campaignID(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var campaign models.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
	assert.Equal(t, campaignID(), campaign.CampaignID)
}

func TestCampaignsGetNotFound(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns/LRX-CMP-00000000", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "campaign not found", body["error"])
}

func TestCampaignsPayloads(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns/"+campaignID()+"/payloads", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payloads services.OrchestratorPayloads
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payloads))
	assert.Equal(t, "Authorization: Bearer <PROOFPOINT_API_TOKEN>", payloads.Proofpoint.AuthHeader)
}

func TestCampaignsRespondDefaultsToDryRun(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/campaigns/"+campaignID()+"/respond", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var report services.DispatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, services.DispatchStatusWouldSend, report.Results["proofpoint"].Status)
}

func TestCampaignsRespondExecute(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	body := strings.NewReader(`{"execute": true}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/campaigns/"+campaignID()+"/respond", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var report services.DispatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.DryRun)
	// No endpoints configured: every target is skipped, never errored
	for _, name := range []string{"proofpoint", "takedown", "okta"} {
		assert.Equal(t, services.DispatchStatusSkipped, report.Results[name].Status, name)
	}
}

func TestCampaignsEvidence(t *testing.T) {
	router := newCampaignsRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaigns/"+campaignID()+"/evidence/dmarc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CampaignID string                `json:"campaign_id"`
		Data       []*models.DmarcReport `json:"data"`
		Total      int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, campaignID(), body.CampaignID)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "paypal.com", body.Data[0].Domain)
}

func TestQueryIntFallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?hours=72&bad=abc&neg=-4", nil)

	assert.Equal(t, 72, queryInt(req, "hours", 48))
	assert.Equal(t, 48, queryInt(req, "missing", 48))
	assert.Equal(t, 48, queryInt(req, "bad", 48))
	assert.Equal(t, 48, queryInt(req, "neg", 48))
}
