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

// ThreatEventRepository handles deduplicated threat event persistence
type ThreatEventRepository struct {
	pool *pgxpool.Pool
}

// NewThreatEventRepository creates a new threat event repository
func NewThreatEventRepository(pool *pgxpool.Pool) *ThreatEventRepository {
	return &ThreatEventRepository{pool: pool}
}

const threatEventColumns = `id, source, indicator_type, indicator_value, category, country,
	country_code, brand_target, attack_type, primary_target, volume, ato_hits,
	confidence, dedupe_hash, event_meta, first_seen, last_seen, occurred_at`

// UpsertThreatEvent inserts a new threat event or merges a repeat sighting
// into the existing row with the same dedupe hash. The merge runs inside
// the ON CONFLICT clause so concurrent workers never race: volume and ATO
// hits accumulate, confidence keeps the max, metadata is a shallow merge
// with incoming keys winning, and last_seen/occurred_at move to now.
// A zero incoming confidence means "not supplied": a fresh insert stores
// the default 50, a merge keeps the row's existing confidence.
func (r *ThreatEventRepository) UpsertThreatEvent(ctx context.Context, e *models.ThreatEvent) (*models.ThreatEvent, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	query := `
		INSERT INTO threat_events (` + threatEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			CASE WHEN $13 = 0 THEN 50 ELSE $13 END, $14, $15, $16, $17, $18)
		ON CONFLICT (dedupe_hash) DO UPDATE SET
			volume = threat_events.volume + EXCLUDED.volume,
			ato_hits = threat_events.ato_hits + EXCLUDED.ato_hits,
			confidence = GREATEST(threat_events.confidence, $13),
			event_meta = COALESCE(threat_events.event_meta, '{}'::jsonb) || COALESCE(EXCLUDED.event_meta, '{}'::jsonb),
			last_seen = EXCLUDED.last_seen,
			occurred_at = EXCLUDED.last_seen
		RETURNING ` + threatEventColumns

	row := r.pool.QueryRow(ctx, query,
		e.ID, e.Source, e.IndicatorType.String(), e.IndicatorValue, e.Category, e.Country,
		e.CountryCode, e.BrandTarget, e.AttackType, e.PrimaryTarget, e.Volume, e.AtoHits,
		e.Confidence, e.DedupeHash, e.Metadata, e.FirstSeen, e.LastSeen, e.OccurredAt,
	)

	stored, err := scanThreatEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert threat event: %w", err)
	}
	return stored, nil
}

// GetByDedupeHash retrieves a threat event by its dedupe hash, or nil when
// no such event exists
func (r *ThreatEventRepository) GetByDedupeHash(ctx context.Context, hash string) (*models.ThreatEvent, error) {
	query := `SELECT ` + threatEventColumns + ` FROM threat_events WHERE dedupe_hash = $1`

	event, err := scanThreatEvent(r.pool.QueryRow(ctx, query, hash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get threat event: %w", err)
	}
	return event, nil
}

// ListThreatEventsSince returns events that occurred at or after the given
// time, newest first
func (r *ThreatEventRepository) ListThreatEventsSince(ctx context.Context, since time.Time) ([]*models.ThreatEvent, error) {
	query := `SELECT ` + threatEventColumns + `
		FROM threat_events
		WHERE occurred_at >= $1
		ORDER BY occurred_at DESC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list threat events: %w", err)
	}
	defer rows.Close()

	var events []*models.ThreatEvent
	for rows.Next() {
		event, err := scanThreatEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threat event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ThreatStats aggregates the threat window for the stats endpoint
type ThreatStats struct {
	EventCount  int `json:"event_count"`
	TotalVolume int `json:"total_volume"`
	TotalAto    int `json:"total_ato_hits"`
}

// StatsSince aggregates volume totals over the trailing window
func (r *ThreatEventRepository) StatsSince(ctx context.Context, since time.Time) (*ThreatStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(volume), 0), COALESCE(SUM(ato_hits), 0)
		FROM threat_events
		WHERE occurred_at >= $1`

	var stats ThreatStats
	if err := r.pool.QueryRow(ctx, query, since).Scan(&stats.EventCount, &stats.TotalVolume, &stats.TotalAto); err != nil {
		return nil, fmt.Errorf("failed to aggregate threat stats: %w", err)
	}
	return &stats, nil
}

func scanThreatEvent(row pgx.Row) (*models.ThreatEvent, error) {
	var e models.ThreatEvent
	var indicatorType string
	err := row.Scan(
		&e.ID, &e.Source, &indicatorType, &e.IndicatorValue, &e.Category, &e.Country,
		&e.CountryCode, &e.BrandTarget, &e.AttackType, &e.PrimaryTarget, &e.Volume, &e.AtoHits,
		&e.Confidence, &e.DedupeHash, &e.Metadata, &e.FirstSeen, &e.LastSeen, &e.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	e.IndicatorType = models.ParseIndicatorType(indicatorType)
	return &e, nil
}
