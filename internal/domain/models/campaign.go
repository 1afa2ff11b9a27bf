package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CampaignIDPrefix is the fixed prefix of every campaign identifier.
// The full format is CampaignIDPrefix + upper(hex(sha1(brandKey + ":" +
// indicatorHint))[0:8]) and must be reproduced exactly: external consumers
// key off these IDs.
const CampaignIDPrefix = "LRX-CMP-"

// Campaign is an ephemeral cluster of threat activity attributed to one
// impersonated brand within a time window. Campaigns are recomputed on
// demand from the indicator store and never persisted.
type Campaign struct {
	CampaignID            string    `json:"campaign_id"`
	Brand                 string    `json:"brand"`
	BrandKey              string    `json:"brand_key"`
	ThreatConfidenceScore int       `json:"threat_confidence_score"`
	TriggerEvent          string    `json:"trigger_event"`
	ThreatCount           int       `json:"threat_count"`
	TotalVolume           int       `json:"total_volume"`
	AtoEventCount         int       `json:"ato_event_count"`
	DmarcFailCount        int       `json:"dmarc_fail_count"`
	AttackVectors         []string  `json:"attack_vectors"`
	TopCountries          []string  `json:"top_countries"`
	IOCDomains            []string  `json:"ioc_domains"`
	IOCIPs                []string  `json:"ioc_ips"`
	AffectedUsers         []string  `json:"affected_users"`
	FirstSeen             time.Time `json:"first_seen"`
	LastSeen              time.Time `json:"last_seen"`
}

// CampaignID derives the deterministic campaign identifier from the brand
// key and the campaign's most representative indicator value.
func CampaignID(brandKey, indicatorHint string) string {
	digest := sha1.Sum([]byte(fmt.Sprintf("%s:%s", brandKey, indicatorHint)))
	return CampaignIDPrefix + strings.ToUpper(hex.EncodeToString(digest[:])[:8])
}

// TopIOCDomain returns the campaign's most frequent domain/URL indicator,
// or the empty string when none was observed.
func (c *Campaign) TopIOCDomain() string {
	if len(c.IOCDomains) > 0 {
		return c.IOCDomains[0]
	}
	return ""
}

// TopIOCIP returns the campaign's most frequent IP indicator, or the empty
// string when none was observed.
func (c *Campaign) TopIOCIP() string {
	if len(c.IOCIPs) > 0 {
		return c.IOCIPs[0]
	}
	return ""
}
