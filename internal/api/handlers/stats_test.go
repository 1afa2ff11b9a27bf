package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lrx-radar/internal/infrastructure/database/repository"
)

func TestStatsResponseFromAggregates(t *testing.T) {
	threat := repository.ThreatStats{EventCount: 4, TotalVolume: 900, TotalAto: 12}
	dmarc := repository.DmarcStats{ReportCount: 3, TotalTraffic: 500, SpfFail: 40, DkimFail: 35, Rejects: 20}

	// Mirrors how Get assembles the response from the repository
	// aggregates; the field types must line up.
	resp := StatsResponse{
		WindowHours:  24,
		ThreatEvents: threat.EventCount,
		TotalVolume:  threat.TotalVolume,
		AtoSignals:   threat.TotalAto,
		AtoEvents:    7,
		DmarcReports: dmarc.ReportCount,
		DmarcTraffic: dmarc.TotalTraffic,
		SpfFailures:  dmarc.SpfFail,
		DkimFailures: dmarc.DkimFail,
		DmarcRejects: dmarc.Rejects,
		OpenAlerts:   2,
		GeneratedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, float64(900), decoded["total_volume"])
	assert.Equal(t, float64(40), decoded["spf_failures"])
	assert.Equal(t, float64(20), decoded["dmarc_rejects"])
}
