package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lrx-radar/internal/domain/models"
)

// AtoEventRepository handles account-takeover event persistence
type AtoEventRepository struct {
	pool *pgxpool.Pool
}

// NewAtoEventRepository creates a new ATO event repository
func NewAtoEventRepository(pool *pgxpool.Pool) *AtoEventRepository {
	return &AtoEventRepository{pool: pool}
}

// InsertAtoEvent stores one account-takeover observation
func (r *AtoEventRepository) InsertAtoEvent(ctx context.Context, e *models.AtoEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	query := `
		INSERT INTO ato_events (id, user_email, loc1, loc2, risk_score, action_taken, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.UserEmail, e.Loc1, e.Loc2, e.RiskScore, e.ActionTaken, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ato event: %w", err)
	}
	return nil
}

// ListAtoEventsSince returns events created at or after the given time,
// newest first
func (r *AtoEventRepository) ListAtoEventsSince(ctx context.Context, since time.Time) ([]*models.AtoEvent, error) {
	query := `
		SELECT id, user_email, loc1, loc2, risk_score, action_taken, created_at
		FROM ato_events
		WHERE created_at >= $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list ato events: %w", err)
	}
	defer rows.Close()

	var events []*models.AtoEvent
	for rows.Next() {
		var e models.AtoEvent
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Loc1, &e.Loc2, &e.RiskScore, &e.ActionTaken, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ato event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// CountSince returns the number of events in the trailing window
func (r *AtoEventRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ato_events WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ato events: %w", err)
	}
	return count, nil
}
