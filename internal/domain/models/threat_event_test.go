package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeHashIsContentAddressed(t *testing.T) {
	first := DedupeHash("certstream", IndicatorTypeDomain, "paypa1-login.com", "Paypal", "Russia", "Typosquatting")
	second := DedupeHash("certstream", IndicatorTypeDomain, "paypa1-login.com", "Paypal", "Russia", "Typosquatting")

	require.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first)
}

func TestDedupeHashDistinguishesFields(t *testing.T) {
	base := DedupeHash("certstream", IndicatorTypeDomain, "paypa1-login.com", "Paypal", "Russia", "Typosquatting")

	assert.NotEqual(t, base, DedupeHash("urlhaus", IndicatorTypeDomain, "paypa1-login.com", "Paypal", "Russia", "Typosquatting"))
	assert.NotEqual(t, base, DedupeHash("certstream", IndicatorTypeURL, "paypa1-login.com", "Paypal", "Russia", "Typosquatting"))
	assert.NotEqual(t, base, DedupeHash("certstream", IndicatorTypeDomain, "paypa1-login.com", "Paypal", "Germany", "Typosquatting"))
}

func TestApplySightingMergesCounters(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)

	event := &ThreatEvent{
		Volume:     620,
		AtoHits:    4,
		Confidence: 88,
		Metadata:   map[string]any{"tags": []string{"certstream"}},
		FirstSeen:  created,
		LastSeen:   created,
		OccurredAt: created,
	}

	event.ApplySighting(10, 2, 80, map[string]any{"issuer": "R3"}, now)

	assert.Equal(t, 630, event.Volume)
	assert.Equal(t, 6, event.AtoHits)
	assert.Equal(t, 88, event.Confidence, "confidence keeps the max")
	assert.Equal(t, created, event.FirstSeen)
	assert.Equal(t, now, event.LastSeen)
	assert.Equal(t, now, event.OccurredAt)
	assert.Equal(t, "R3", event.Metadata["issuer"])
	assert.Contains(t, event.Metadata, "tags")
}

func TestApplySightingRaisesConfidence(t *testing.T) {
	event := &ThreatEvent{Confidence: 70}
	event.ApplySighting(1, 0, 95, nil, time.Now().UTC())
	assert.Equal(t, 95, event.Confidence)
}

func TestApplySightingInitializesMetadata(t *testing.T) {
	event := &ThreatEvent{}
	event.ApplySighting(1, 0, 50, map[string]any{"seen_via": "ct-log"}, time.Now().UTC())
	assert.Equal(t, "ct-log", event.Metadata["seen_via"])
}

func TestParseIndicatorType(t *testing.T) {
	assert.Equal(t, IndicatorTypeDomain, ParseIndicatorType("domain"))
	assert.Equal(t, IndicatorTypeURL, ParseIndicatorType("url"))
	assert.Equal(t, IndicatorTypeIP, ParseIndicatorType("ip"))
	assert.Equal(t, IndicatorType("other"), ParseIndicatorType("other"))
}
