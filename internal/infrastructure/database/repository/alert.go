package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lrx-radar/internal/domain/models"
)

// AlertRepository handles alert persistence
type AlertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

// CreateAlert inserts a new alert
func (r *AlertRepository) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (id, threat_event_id, severity, status, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.ThreatEventID, a.Severity.String(), string(a.Status), a.Title, a.Description, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// FindOpenAlert returns the open alert for a threat event, or nil when
// none exists
func (r *AlertRepository) FindOpenAlert(ctx context.Context, threatEventID uuid.UUID) (*models.Alert, error) {
	query := `
		SELECT id, threat_event_id, severity, status, title, description, created_at
		FROM alerts
		WHERE threat_event_id = $1 AND status = 'open'
		LIMIT 1`

	alert, err := scanAlert(r.pool.QueryRow(ctx, query, threatEventID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns the most recent alerts, newest first
func (r *AlertRepository) ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	query := `
		SELECT id, threat_event_id, severity, status, title, description, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// CountOpen returns the number of open alerts
func (r *AlertRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE status = 'open'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return count, nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	var severity, status string
	err := row.Scan(&a.ID, &a.ThreatEventID, &severity, &status, &a.Title, &a.Description, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	return &a, nil
}
