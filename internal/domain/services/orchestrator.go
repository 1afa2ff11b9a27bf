package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

// Dispatch result statuses
const (
	DispatchStatusWouldSend = "would_send"
	DispatchStatusSent      = "sent"
	DispatchStatusSkipped   = "skipped"
	DispatchStatusFailed    = "failed"
)

// BlocklistIndicator is one entry of an email-gateway blocklist update.
type BlocklistIndicator struct {
	Value    string `json:"value"`
	Operator string `json:"operator"`
	Comment  string `json:"comment"`
}

// BlocklistRequest asks the email security gateway to block the campaign's
// primary infrastructure.
type BlocklistRequest struct {
	Action     string               `json:"action"`
	ThreatType string               `json:"threat_type"`
	Indicators []BlocklistIndicator `json:"indicators"`
}

// WeaponizationStatus summarizes how operational the impersonation
// infrastructure is, for the takedown vendor's triage.
type WeaponizationStatus struct {
	ActiveMXRecordsDetected bool   `json:"active_mx_records_detected"`
	DmarcFailureLogURL      string `json:"dmarc_failure_log_url"`
	AtoSignalCount          int    `json:"ato_signal_count"`
}

// EvidencePackage is the supporting evidence attached to a takedown request.
type EvidencePackage struct {
	CampaignID          string              `json:"campaign_id"`
	WeaponizationStatus WeaponizationStatus `json:"weaponization_status"`
	AttackVectors       []string            `json:"attack_vectors"`
	TopCountries        []string            `json:"top_countries"`
}

// TakedownRequest is a brand-impersonation takedown submission.
type TakedownRequest struct {
	IncidentType           string          `json:"incident_type"`
	TargetURL              string          `json:"target_url"`
	ImpersonatedBrand      string          `json:"impersonated_brand"`
	Priority               string          `json:"priority"`
	AutomatedAuthorization bool            `json:"automated_authorization"`
	EvidencePackage        EvidencePackage `json:"evidence_package"`
}

// RadarSignal carries the campaign context into an identity-provider
// workflow invocation.
type RadarSignal struct {
	CampaignID            string `json:"campaign_id"`
	ThreatConfidenceScore int    `json:"threat_confidence_score"`
	TriggerEvent          string `json:"trigger_event"`
}

// IdentityContext names the infrastructure a compromised identity was
// exposed to.
type IdentityContext struct {
	AttackerIP     string `json:"attacker_ip"`
	CompromisedVia string `json:"compromised_via"`
}

// IdentityTarget is the remediation request for one user identity.
type IdentityTarget struct {
	UserEmail         string          `json:"user_email"`
	RequestedResponse string          `json:"requested_response"`
	Context           IdentityContext `json:"context"`
}

// IdentityWorkflowRequest invokes the identity provider's response workflow.
type IdentityWorkflowRequest struct {
	RadarSignal    RadarSignal    `json:"lrx_radar_signal"`
	IdentityTarget IdentityTarget `json:"identity_target"`
}

// TargetPayload pairs one remediation target's endpoint with the request
// body that would be (or was) sent to it. AuthHeader is a redacted preview
// of the credential header, safe to render.
type TargetPayload struct {
	Endpoint   string `json:"endpoint"`
	Payload    any    `json:"payload"`
	AuthHeader string `json:"auth_header"`
}

// OrchestratorPayloads holds the full set of response payloads built for a
// campaign, one per remediation target.
type OrchestratorPayloads struct {
	Proofpoint TargetPayload `json:"proofpoint"`
	Takedown   TargetPayload `json:"takedown"`
	Okta       TargetPayload `json:"okta"`
}

// DispatchResult is the outcome for one remediation target.
type DispatchResult struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DispatchReport is the aggregate outcome of a dispatch run. In dry-run
// mode Payloads carries the would-be request bodies for review.
type DispatchReport struct {
	DryRun   bool                      `json:"dry_run"`
	Results  map[string]DispatchResult `json:"results"`
	Payloads *OrchestratorPayloads     `json:"payloads,omitempty"`
}

// Orchestrator turns a correlated campaign into concrete remediation calls
// against the configured email-gateway, takedown and identity-provider
// endpoints. Targets with missing endpoints or credentials are skipped and
// one target's failure never blocks the others.
type Orchestrator struct {
	cfg    config.OrchestratorConfig
	client *http.Client
	logger *logger.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(cfg config.OrchestratorConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.WithComponent("orchestrator"),
	}
}

// BuildPayloads assembles the per-target response payloads for a campaign.
// Missing IOC fields fall back to brand-derived placeholders so every
// payload is always well-formed.
func (o *Orchestrator) BuildPayloads(campaign *models.Campaign) *OrchestratorPayloads {
	primaryDomain := campaign.TopIOCDomain()
	if primaryDomain == "" {
		primaryDomain = campaign.BrandKey + ".com"
	}
	attackerIP := campaign.TopIOCIP()
	if attackerIP == "" {
		attackerIP = "0.0.0.0"
	}
	targetUser := "soc@" + campaign.BrandKey + ".com"
	if len(campaign.AffectedUsers) > 0 {
		targetUser = campaign.AffectedUsers[0]
	}
	evidenceURL := fmt.Sprintf("%s/api/campaigns/%s/evidence/dmarc", o.cfg.PublicAPIBaseURL, campaign.CampaignID)

	blocklist := BlocklistRequest{
		Action:     "add",
		ThreatType: "domain",
		Indicators: []BlocklistIndicator{
			{
				Value:    primaryDomain,
				Operator: "equal",
				Comment:  "LRX Radar Auto-Block: Correlated campaign with lookalike infrastructure and telemetry evidence.",
			},
			{
				Value:    attackerIP,
				Operator: "equal",
				Comment:  "LRX Radar Auto-Block: Associated attacker IP for correlated campaign.",
			},
		},
	}

	priority := "high"
	if campaign.ThreatConfidenceScore >= 90 {
		priority = "critical"
	}
	takedown := TakedownRequest{
		IncidentType:           "brand_impersonation",
		TargetURL:              fmt.Sprintf("https://%s/auth/login", primaryDomain),
		ImpersonatedBrand:      campaign.Brand,
		Priority:               priority,
		AutomatedAuthorization: true,
		EvidencePackage: EvidencePackage{
			CampaignID: campaign.CampaignID,
			WeaponizationStatus: WeaponizationStatus{
				ActiveMXRecordsDetected: true,
				DmarcFailureLogURL:      evidenceURL,
				AtoSignalCount:          campaign.AtoEventCount,
			},
			AttackVectors: campaign.AttackVectors,
			TopCountries:  campaign.TopCountries,
		},
	}

	identity := IdentityWorkflowRequest{
		RadarSignal: RadarSignal{
			CampaignID:            campaign.CampaignID,
			ThreatConfidenceScore: campaign.ThreatConfidenceScore,
			TriggerEvent:          campaign.TriggerEvent,
		},
		IdentityTarget: IdentityTarget{
			UserEmail:         targetUser,
			RequestedResponse: "terminate_sessions_and_step_up",
			Context: IdentityContext{
				AttackerIP:     attackerIP,
				CompromisedVia: primaryDomain,
			},
		},
	}

	return &OrchestratorPayloads{
		Proofpoint: TargetPayload{
			Endpoint:   o.cfg.ProofpointBlocklistEndpoint,
			Payload:    blocklist,
			AuthHeader: "Authorization: Bearer <PROOFPOINT_API_TOKEN>",
		},
		Takedown: TargetPayload{
			Endpoint:   o.cfg.TakedownSubmitEndpoint,
			Payload:    takedown,
			AuthHeader: "X-API-Key: <TAKEDOWN_API_KEY>",
		},
		Okta: TargetPayload{
			Endpoint:   o.cfg.OktaWorkflowInvokeURL,
			Payload:    identity,
			AuthHeader: "Authorization: Bearer <OKTA_OAUTH_TOKEN>",
		},
	}
}

// Dispatch builds the campaign's payloads and either previews them
// (dry run) or posts each one to its configured target. Per-target
// failures are captured in the report, never returned as errors.
func (o *Orchestrator) Dispatch(ctx context.Context, campaign *models.Campaign, dryRun bool) *DispatchReport {
	payloads := o.BuildPayloads(campaign)

	if dryRun {
		return &DispatchReport{
			DryRun: true,
			Results: map[string]DispatchResult{
				"proofpoint": {Status: DispatchStatusWouldSend, Endpoint: payloads.Proofpoint.Endpoint},
				"takedown":   {Status: DispatchStatusWouldSend, Endpoint: payloads.Takedown.Endpoint},
				"okta":       {Status: DispatchStatusWouldSend, Endpoint: payloads.Okta.Endpoint},
			},
			Payloads: payloads,
		}
	}

	targets := []struct {
		name        string
		endpoint    string
		payload     any
		headerName  string
		headerValue string
	}{
		{"proofpoint", payloads.Proofpoint.Endpoint, payloads.Proofpoint.Payload, "Authorization", bearerOrEmpty(o.cfg.ProofpointAPIToken)},
		{"takedown", payloads.Takedown.Endpoint, payloads.Takedown.Payload, "X-API-Key", o.cfg.TakedownAPIKey},
		{"okta", payloads.Okta.Endpoint, payloads.Okta.Payload, "Authorization", bearerOrEmpty(o.cfg.OktaOAuthToken)},
	}

	results := make(map[string]DispatchResult, len(targets))
	for _, target := range targets {
		if target.endpoint == "" {
			results[target.name] = DispatchResult{Status: DispatchStatusSkipped, Reason: "missing endpoint"}
			continue
		}
		if target.headerValue == "" {
			results[target.name] = DispatchResult{Status: DispatchStatusSkipped, Reason: "missing credentials"}
			continue
		}
		results[target.name] = o.post(ctx, target.endpoint, target.payload, target.headerName, target.headerValue)
	}

	return &DispatchReport{DryRun: false, Results: results}
}

func (o *Orchestrator) post(ctx context.Context, endpoint string, payload any, headerName, headerValue string) DispatchResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return DispatchResult{Status: DispatchStatusFailed, Endpoint: endpoint, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{Status: DispatchStatusFailed, Endpoint: endpoint, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerName, headerValue)

	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("remediation dispatch failed")
		return DispatchResult{Status: DispatchStatusFailed, Endpoint: endpoint, Error: err.Error()}
	}
	defer resp.Body.Close()

	return DispatchResult{
		Status:     DispatchStatusSent,
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
	}
}

func bearerOrEmpty(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
