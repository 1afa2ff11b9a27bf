package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/models"
	"lrx-radar/internal/domain/services"
	"lrx-radar/internal/infrastructure/cache"
	"lrx-radar/pkg/logger"
)

// campaignCacheTTL keeps repeated dashboard polls from recomputing the
// same correlation window
const campaignCacheTTL = 15 * time.Second

// CampaignPublisher fans out notifications about campaigns that received
// an executed response
type CampaignPublisher interface {
	PublishCampaign(ctx context.Context, campaign *models.Campaign)
}

// CampaignsHandler handles campaign endpoints
type CampaignsHandler struct {
	correlator   *services.Correlator
	orchestrator *services.Orchestrator
	cache        *cache.RedisCache
	cfg          config.CorrelationConfig
	publisher    CampaignPublisher
	logger       *logger.Logger
}

// NewCampaignsHandler creates a new CampaignsHandler
func NewCampaignsHandler(correlator *services.Correlator, orchestrator *services.Orchestrator, c *cache.RedisCache, cfg config.CorrelationConfig, log *logger.Logger) *CampaignsHandler {
	return &CampaignsHandler{
		correlator:   correlator,
		orchestrator: orchestrator,
		cache:        c,
		cfg:          cfg,
		logger:       log.WithComponent("campaigns"),
	}
}

// SetPublisher wires an optional campaign notification publisher
func (h *CampaignsHandler) SetPublisher(p CampaignPublisher) {
	h.publisher = p
}

// List handles GET /api/campaigns
func (h *CampaignsHandler) List(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", h.cfg.DefaultWindowHours)
	limit := queryInt(r, "limit", h.cfg.DefaultLimit)

	response := map[string]any{}
	cacheKey := fmt.Sprintf("%d:%d", hours, limit)
	if h.cache != nil {
		if err := h.cache.GetCachedCampaigns(r.Context(), cacheKey, &response); err == nil {
			writeJSON(w, http.StatusOK, response)
			return
		}
	}

	campaigns, err := h.correlator.Correlate(r.Context(), hours, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("correlation failed")
		writeError(w, http.StatusInternalServerError, "failed to correlate campaigns")
		return
	}

	response = map[string]any{
		"data":         campaigns,
		"total":        len(campaigns),
		"window_hours": hours,
	}
	if h.cache != nil {
		if err := h.cache.CacheCampaigns(r.Context(), cacheKey, response, campaignCacheTTL); err != nil {
			h.logger.Warn().Err(err).Msg("failed to cache campaign window")
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/campaigns/{id}
func (h *CampaignsHandler) Get(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// Payloads handles GET /api/campaigns/{id}/payloads
func (h *CampaignsHandler) Payloads(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.orchestrator.BuildPayloads(campaign))
}

// respondRequest is the optional POST body for Respond
type respondRequest struct {
	Execute bool `json:"execute"`
}

// Respond handles POST /api/campaigns/{id}/respond. Dispatch defaults to a
// dry run; remediation calls only go out when the body asks for execution.
func (h *CampaignsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req respondRequest
	if r.Body != nil {
		// An empty or malformed body means dry run
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	report := h.orchestrator.Dispatch(r.Context(), campaign, !req.Execute)
	if req.Execute && h.publisher != nil {
		h.publisher.PublishCampaign(r.Context(), campaign)
	}
	writeJSON(w, http.StatusOK, report)
}

// Evidence handles GET /api/campaigns/{id}/evidence/dmarc
func (h *CampaignsHandler) Evidence(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.lookup(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	reports, err := h.correlator.DmarcEvidence(r.Context(), campaign, h.cfg.LookupWindowHours, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("campaign_id", campaign.CampaignID).Msg("evidence lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to collect evidence")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id": campaign.CampaignID,
		"data":        reports,
		"total":       len(reports),
	})
}

// lookup resolves the campaign ID path parameter over the wider lookup
// window, writing the error response itself when the campaign is gone
func (h *CampaignsHandler) lookup(w http.ResponseWriter, r *http.Request) (*models.Campaign, bool) {
	id := chi.URLParam(r, "id")

	found, err := h.correlator.FindByID(r.Context(), id, h.cfg.LookupWindowHours)
	if err != nil {
		h.logger.Error().Err(err).Str("campaign_id", id).Msg("campaign lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to look up campaign")
		return nil, false
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return nil, false
	}
	return found, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
