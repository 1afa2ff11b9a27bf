package models

import (
	"time"

	"github.com/google/uuid"
)

// Disposition values from the DMARC policy_evaluated block
const (
	DispositionNone       = "none"
	DispositionQuarantine = "quarantine"
	DispositionReject     = "reject"
)

// AuthResultPass is the passing value for SPF/DKIM evaluation results
const AuthResultPass = "pass"

// DmarcReport is one record row of an aggregate email-authentication
// report. Immutable once created.
type DmarcReport struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Domain       string         `json:"domain" db:"domain"`
	ReportingOrg string         `json:"reporting_org" db:"reporting_org"`
	SourceIP     string         `json:"source_ip" db:"source_ip"`
	Disposition  string         `json:"disposition" db:"disposition"`
	SpfResult    string         `json:"spf_result" db:"spf_result"`
	DkimResult   string         `json:"dkim_result" db:"dkim_result"`
	MsgCount     int            `json:"msg_count" db:"msg_count"`
	ReportDate   time.Time      `json:"report_date" db:"report_date"`
	RawPayload   map[string]any `json:"raw_payload,omitempty" db:"raw_payload"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// AuthFailed reports whether this record counts toward a campaign's DMARC
// failure volume: an enforced reject, or either authentication mechanism
// not passing.
func (r *DmarcReport) AuthFailed() bool {
	return r.Disposition == DispositionReject ||
		r.SpfResult != AuthResultPass ||
		r.DkimResult != AuthResultPass
}
