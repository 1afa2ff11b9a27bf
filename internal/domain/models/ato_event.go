package models

import (
	"time"

	"github.com/google/uuid"
)

// AtoEvent is one anomalous-login observation from account-takeover
// telemetry. Immutable once created.
type AtoEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserEmail   string    `json:"user_email" db:"user_email"`
	Loc1        string    `json:"loc1" db:"loc1"`
	Loc2        string    `json:"loc2" db:"loc2"`
	RiskScore   int       `json:"risk_score" db:"risk_score"`
	ActionTaken string    `json:"action_taken" db:"action_taken"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
