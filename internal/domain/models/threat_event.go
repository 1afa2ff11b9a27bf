package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IndicatorType represents the type of threat indicator
type IndicatorType string

const (
	IndicatorTypeDomain IndicatorType = "domain"
	IndicatorTypeURL    IndicatorType = "url"
	IndicatorTypeIP     IndicatorType = "ip"
)

// String returns the string representation of IndicatorType
func (t IndicatorType) String() string {
	return string(t)
}

// ParseIndicatorType parses a string into IndicatorType
func ParseIndicatorType(s string) IndicatorType {
	switch s {
	case "domain":
		return IndicatorTypeDomain
	case "url":
		return IndicatorTypeURL
	case "ip":
		return IndicatorTypeIP
	default:
		return IndicatorType(s)
	}
}

// ThreatEvent is one deduplicated observation of a malicious artifact
// targeting a monitored brand. Exactly one row exists per DedupeHash;
// repeated sightings of the same artifact merge into it.
type ThreatEvent struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Source         string         `json:"source" db:"source"`
	IndicatorType  IndicatorType  `json:"indicator_type" db:"indicator_type"`
	IndicatorValue string         `json:"indicator_value" db:"indicator_value"`
	Category       string         `json:"category" db:"category"`
	Country        string         `json:"country" db:"country"`
	CountryCode    string         `json:"country_code" db:"country_code"`
	BrandTarget    string         `json:"brand_target" db:"brand_target"`
	AttackType     string         `json:"attack_type" db:"attack_type"`
	PrimaryTarget  string         `json:"primary_target" db:"primary_target"`
	Volume         int            `json:"volume" db:"volume"`
	AtoHits        int            `json:"ato_hits" db:"ato_hits"`
	Confidence     int            `json:"confidence" db:"confidence"`
	DedupeHash     string         `json:"dedupe_hash" db:"dedupe_hash"`
	Metadata       map[string]any `json:"event_meta" db:"event_meta"`
	FirstSeen      time.Time      `json:"first_seen" db:"first_seen"`
	LastSeen       time.Time      `json:"last_seen" db:"last_seen"`
	OccurredAt     time.Time      `json:"occurred_at" db:"occurred_at"`
}

// DedupeHash computes the content-addressed deduplication key: lowercase hex
// SHA-256 over the pipe-joined identity tuple. Volume and timestamps are
// deliberately excluded so repeated sightings of the same artifact collapse
// into one record.
func DedupeHash(source string, indicatorType IndicatorType, indicatorValue, brandTarget, country, category string) string {
	key := strings.Join([]string{
		source,
		string(indicatorType),
		indicatorValue,
		brandTarget,
		country,
		category,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ApplySighting merges a repeat sighting into the event: volume and ATO hits
// accumulate, confidence keeps the max, metadata is a shallow merge with
// incoming keys overwriting, and both lastSeen and occurredAt move to now.
// All other fields are fixed at creation.
func (e *ThreatEvent) ApplySighting(volume, atoHits, confidence int, meta map[string]any, now time.Time) {
	e.Volume += volume
	e.AtoHits += atoHits
	if confidence > e.Confidence {
		e.Confidence = confidence
	}
	e.LastSeen = now
	e.OccurredAt = now

	if len(meta) > 0 {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			e.Metadata[k] = v
		}
	}
}
