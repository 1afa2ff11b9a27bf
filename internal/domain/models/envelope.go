package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// EventType discriminates queue message envelopes
type EventType string

const (
	EventTypeThreat EventType = "threat_event"
	EventTypeAto    EventType = "ato_event"
	EventTypeDmarc  EventType = "dmarc_report"
)

// ThreatEventPayload is the wire shape of a raw threat signal on the queue.
// Missing fields fall back to normalizer defaults, never errors.
type ThreatEventPayload struct {
	Type           EventType      `json:"type" validate:"required,eq=threat_event"`
	Source         string         `json:"source"`
	IndicatorType  string         `json:"indicator_type" validate:"omitempty,oneof=domain url ip"`
	IndicatorValue string         `json:"indicator_value"`
	Category       string         `json:"category"`
	Country        string         `json:"country"`
	CountryCode    string         `json:"country_code"`
	BrandTarget    string         `json:"brand_target"`
	AttackType     string         `json:"attack_type"`
	PrimaryTarget  string         `json:"primary_target"`
	Volume         int            `json:"volume" validate:"gte=0"`
	AtoHits        int            `json:"ato_hits" validate:"gte=0"`
	Confidence     int            `json:"confidence" validate:"gte=0,lte=100"`
	DedupeHash     string         `json:"dedupe_hash,omitempty"`
	EventMeta      map[string]any `json:"event_meta,omitempty"`
	OccurredAt     string         `json:"occurred_at,omitempty"`
}

// AtoEventPayload is the wire shape of an account-takeover signal.
type AtoEventPayload struct {
	Type        EventType `json:"type" validate:"required,eq=ato_event"`
	UserEmail   string    `json:"user_email"`
	Loc1        string    `json:"loc1"`
	Loc2        string    `json:"loc2"`
	RiskScore   int       `json:"risk_score" validate:"gte=0,lte=100"`
	ActionTaken string    `json:"action_taken"`
	CreatedAt   string    `json:"created_at,omitempty"`
}

// DmarcReportPayload is the wire shape of one aggregate-report record.
type DmarcReportPayload struct {
	Type         EventType      `json:"type" validate:"required,eq=dmarc_report"`
	Domain       string         `json:"domain"`
	ReportingOrg string         `json:"reporting_org"`
	SourceIP     string         `json:"source_ip"`
	Disposition  string         `json:"disposition" validate:"omitempty,oneof=none quarantine reject"`
	SpfResult    string         `json:"spf_result"`
	DkimResult   string         `json:"dkim_result"`
	MsgCount     int            `json:"msg_count" validate:"gte=0"`
	ReportDate   string         `json:"report_date,omitempty"`
	RawPayload   map[string]any `json:"raw_payload,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
}

// Envelope is a decoded queue message: exactly one payload field is set,
// matching Type.
type Envelope struct {
	Type   EventType
	Threat *ThreatEventPayload
	Ato    *AtoEventPayload
	Dmarc  *DmarcReportPayload
}

var validate = validator.New()

// DecodeEnvelope parses and validates a raw queue message. Unknown types
// and validation failures are errors; callers drop such messages.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var header struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	env := &Envelope{Type: header.Type}
	switch header.Type {
	case EventTypeThreat:
		var p ThreatEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode threat_event payload: %w", err)
		}
		if err := validate.Struct(&p); err != nil {
			return nil, fmt.Errorf("invalid threat_event payload: %w", err)
		}
		env.Threat = &p
	case EventTypeAto:
		var p AtoEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode ato_event payload: %w", err)
		}
		if err := validate.Struct(&p); err != nil {
			return nil, fmt.Errorf("invalid ato_event payload: %w", err)
		}
		env.Ato = &p
	case EventTypeDmarc:
		var p DmarcReportPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode dmarc_report payload: %w", err)
		}
		if err := validate.Struct(&p); err != nil {
			return nil, fmt.Errorf("invalid dmarc_report payload: %w", err)
		}
		env.Dmarc = &p
	default:
		return nil, fmt.Errorf("unknown envelope type %q", header.Type)
	}

	return env, nil
}
