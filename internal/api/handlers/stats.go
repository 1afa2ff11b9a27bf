package handlers

import (
	"net/http"
	"time"

	"lrx-radar/internal/infrastructure/cache"
	"lrx-radar/internal/infrastructure/database/repository"
	"lrx-radar/pkg/logger"
)

const (
	statsWindow   = 24 * time.Hour
	statsCacheTTL = 30 * time.Second
)

// StatsHandler handles the aggregate stats endpoint
type StatsHandler struct {
	repos  *repository.Repositories
	cache  *cache.RedisCache
	logger *logger.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(repos *repository.Repositories, c *cache.RedisCache, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		repos:  repos,
		cache:  c,
		logger: log.WithComponent("stats"),
	}
}

// StatsResponse is the rolled up 24h view of the pipeline
type StatsResponse struct {
	WindowHours  int       `json:"window_hours"`
	ThreatEvents int       `json:"threat_events"`
	TotalVolume  int       `json:"total_volume"`
	AtoSignals   int       `json:"ato_signals"`
	AtoEvents    int       `json:"ato_events"`
	DmarcReports int       `json:"dmarc_reports"`
	DmarcTraffic int       `json:"dmarc_traffic"`
	SpfFailures  int       `json:"spf_failures"`
	DkimFailures int       `json:"dkim_failures"`
	DmarcRejects int       `json:"dmarc_rejects"`
	OpenAlerts   int       `json:"open_alerts"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Get handles GET /api/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		var cached StatsResponse
		if err := h.cache.GetJSON(ctx, cache.KeyStats, &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	since := time.Now().UTC().Add(-statsWindow)

	threatStats, err := h.repos.ThreatEventRepository.StatsSince(ctx, since)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to collect threat stats")
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	dmarcStats, err := h.repos.DmarcReportRepository.StatsSince(ctx, since)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to collect dmarc stats")
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	atoCount, err := h.repos.CountSince(ctx, since)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count ato events")
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	openAlerts, err := h.repos.CountOpen(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count open alerts")
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	response := StatsResponse{
		WindowHours:  int(statsWindow.Hours()),
		ThreatEvents: threatStats.EventCount,
		TotalVolume:  threatStats.TotalVolume,
		AtoSignals:   threatStats.TotalAto,
		AtoEvents:    atoCount,
		DmarcReports: dmarcStats.ReportCount,
		DmarcTraffic: dmarcStats.TotalTraffic,
		SpfFailures:  dmarcStats.SpfFail,
		DkimFailures: dmarcStats.DkimFail,
		DmarcRejects: dmarcStats.Rejects,
		OpenAlerts:   openAlerts,
		GeneratedAt:  time.Now().UTC(),
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, cache.KeyStats, response, statsCacheTTL); err != nil {
			h.logger.Warn().Err(err).Msg("failed to cache stats")
		}
	}

	writeJSON(w, http.StatusOK, response)
}
