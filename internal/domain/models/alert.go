package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity represents the alert severity level
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// String returns the string representation of Severity
func (s Severity) String() string {
	return string(s)
}

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusOpen   AlertStatus = "open"
	AlertStatusClosed AlertStatus = "closed"
)

// Alert is raised when an upserted threat event crosses the confidence
// threshold. At most one open alert exists per threat event at a time.
type Alert struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	ThreatEventID uuid.UUID   `json:"threat_event_id" db:"threat_event_id"`
	Severity      Severity    `json:"severity" db:"severity"`
	Status        AlertStatus `json:"status" db:"status"`
	Title         string      `json:"title" db:"title"`
	Description   string      `json:"description" db:"description"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}
