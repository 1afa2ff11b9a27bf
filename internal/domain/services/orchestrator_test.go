package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

func testCampaign() *models.Campaign {
	return &models.Campaign{
		CampaignID:            "LRX-CMP-AB12CD34",
		Brand:                 "Paypal",
		BrandKey:              "paypal",
		ThreatConfidenceScore: 92,
		TriggerEvent:          "Lookalike domain activity + ATO anomaly telemetry",
		AtoEventCount:         2,
		AttackVectors:         []string{"Typosquatting"},
		TopCountries:          []string{"Russia"},
		IOCDomains:            []string{"paypa1-login.com"},
		IOCIPs:                []string{"203.0.113.7"},
		AffectedUsers:         []string{"j.doe@paypal.com"},
	}
}

func testOrchestratorConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		Timeout:                     5 * time.Second,
		PublicAPIBaseURL:            "https://radar.example.com",
		ProofpointBlocklistEndpoint: "https://gateway.example.com/blocklist",
		ProofpointAPIToken:          "pp-token",
		TakedownSubmitEndpoint:      "https://takedown.example.com/submit",
		TakedownAPIKey:              "td-key",
		OktaWorkflowInvokeURL:       "https://okta.example.com/invoke",
		OktaOAuthToken:              "okta-token",
	}
}

func TestBuildPayloads(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(), logger.NewDevelopment())

	payloads := o.BuildPayloads(testCampaign())

	blocklist, ok := payloads.Proofpoint.Payload.(BlocklistRequest)
	require.True(t, ok)
	assert.Equal(t, "add", blocklist.Action)
	require.Len(t, blocklist.Indicators, 2)
	assert.Equal(t, "paypa1-login.com", blocklist.Indicators[0].Value)
	assert.Equal(t, "203.0.113.7", blocklist.Indicators[1].Value)
	assert.Contains(t, blocklist.Indicators[0].Comment, "LRX Radar Auto-Block:")

	takedown, ok := payloads.Takedown.Payload.(TakedownRequest)
	require.True(t, ok)
	assert.Equal(t, "brand_impersonation", takedown.IncidentType)
	assert.Equal(t, "https://paypa1-login.com/auth/login", takedown.TargetURL)
	assert.Equal(t, "critical", takedown.Priority)
	assert.True(t, takedown.AutomatedAuthorization)
	assert.Equal(t, "LRX-CMP-AB12CD34", takedown.EvidencePackage.CampaignID)
	assert.Equal(t,
		"https://radar.example.com/api/campaigns/LRX-CMP-AB12CD34/evidence/dmarc",
		takedown.EvidencePackage.WeaponizationStatus.DmarcFailureLogURL)
	assert.Equal(t, 2, takedown.EvidencePackage.WeaponizationStatus.AtoSignalCount)

	identity, ok := payloads.Okta.Payload.(IdentityWorkflowRequest)
	require.True(t, ok)
	assert.Equal(t, "j.doe@paypal.com", identity.IdentityTarget.UserEmail)
	assert.Equal(t, "terminate_sessions_and_step_up", identity.IdentityTarget.RequestedResponse)
	assert.Equal(t, "203.0.113.7", identity.IdentityTarget.Context.AttackerIP)
	assert.Equal(t, "paypa1-login.com", identity.IdentityTarget.Context.CompromisedVia)
	assert.Equal(t, 92, identity.RadarSignal.ThreatConfidenceScore)
}

func TestBuildPayloadsFallbacks(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(), logger.NewDevelopment())

	campaign := &models.Campaign{
		CampaignID:            "LRX-CMP-00FF00FF",
		Brand:                 "Globex",
		BrandKey:              "globex",
		ThreatConfidenceScore: 70,
	}
	payloads := o.BuildPayloads(campaign)

	blocklist := payloads.Proofpoint.Payload.(BlocklistRequest)
	assert.Equal(t, "globex.com", blocklist.Indicators[0].Value)
	assert.Equal(t, "0.0.0.0", blocklist.Indicators[1].Value)

	takedown := payloads.Takedown.Payload.(TakedownRequest)
	assert.Equal(t, "high", takedown.Priority, "below 90 stays high priority")

	identity := payloads.Okta.Payload.(IdentityWorkflowRequest)
	assert.Equal(t, "soc@globex.com", identity.IdentityTarget.UserEmail)
}

func TestBuildPayloadsRedactsCredentials(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(), logger.NewDevelopment())

	payloads := o.BuildPayloads(testCampaign())

	assert.Equal(t, "Authorization: Bearer <PROOFPOINT_API_TOKEN>", payloads.Proofpoint.AuthHeader)
	assert.Equal(t, "X-API-Key: <TAKEDOWN_API_KEY>", payloads.Takedown.AuthHeader)
	assert.Equal(t, "Authorization: Bearer <OKTA_OAUTH_TOKEN>", payloads.Okta.AuthHeader)
	assert.NotContains(t, payloads.Proofpoint.AuthHeader, "pp-token")
}

func TestDispatchDryRun(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(), logger.NewDevelopment())

	report := o.Dispatch(context.Background(), testCampaign(), true)

	assert.True(t, report.DryRun)
	require.NotNil(t, report.Payloads)
	for _, name := range []string{"proofpoint", "takedown", "okta"} {
		assert.Equal(t, DispatchStatusWouldSend, report.Results[name].Status, name)
	}
}

func TestDispatchSkipsUnconfiguredTargets(t *testing.T) {
	cfg := testOrchestratorConfig()
	cfg.ProofpointBlocklistEndpoint = ""
	cfg.TakedownAPIKey = ""
	cfg.OktaWorkflowInvokeURL = ""
	cfg.OktaOAuthToken = ""
	o := NewOrchestrator(cfg, logger.NewDevelopment())

	report := o.Dispatch(context.Background(), testCampaign(), false)

	assert.Equal(t, DispatchStatusSkipped, report.Results["proofpoint"].Status)
	assert.Equal(t, "missing endpoint", report.Results["proofpoint"].Reason)
	assert.Equal(t, DispatchStatusSkipped, report.Results["takedown"].Status)
	assert.Equal(t, "missing credentials", report.Results["takedown"].Reason)
	assert.Equal(t, DispatchStatusSkipped, report.Results["okta"].Status)
}

func TestDispatchPostsToTargets(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody BlocklistRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := testOrchestratorConfig()
	cfg.ProofpointBlocklistEndpoint = server.URL
	cfg.TakedownSubmitEndpoint = ""
	cfg.OktaWorkflowInvokeURL = ""
	o := NewOrchestrator(cfg, logger.NewDevelopment())

	report := o.Dispatch(context.Background(), testCampaign(), false)

	result := report.Results["proofpoint"]
	assert.Equal(t, DispatchStatusSent, result.Status)
	assert.Equal(t, http.StatusAccepted, result.StatusCode)
	assert.Equal(t, "Bearer pp-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "add", gotBody.Action)
}

func TestDispatchFailureIsolation(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	cfg := testOrchestratorConfig()
	cfg.Timeout = time.Second
	cfg.ProofpointBlocklistEndpoint = "http://127.0.0.1:1/unreachable"
	cfg.TakedownSubmitEndpoint = healthy.URL
	cfg.OktaWorkflowInvokeURL = healthy.URL
	o := NewOrchestrator(cfg, logger.NewDevelopment())

	report := o.Dispatch(context.Background(), testCampaign(), false)

	assert.Equal(t, DispatchStatusFailed, report.Results["proofpoint"].Status)
	assert.NotEmpty(t, report.Results["proofpoint"].Error)
	assert.Equal(t, DispatchStatusSent, report.Results["takedown"].Status, "one target failing never blocks the others")
	assert.Equal(t, DispatchStatusSent, report.Results["okta"].Status)
}
