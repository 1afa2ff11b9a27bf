package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lrx-radar/internal/domain/models"
)

// DmarcReportRepository handles email-authentication report persistence
type DmarcReportRepository struct {
	pool *pgxpool.Pool
}

// NewDmarcReportRepository creates a new DMARC report repository
func NewDmarcReportRepository(pool *pgxpool.Pool) *DmarcReportRepository {
	return &DmarcReportRepository{pool: pool}
}

// InsertDmarcReport stores one aggregate-report record
func (r *DmarcReportRepository) InsertDmarcReport(ctx context.Context, report *models.DmarcReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	query := `
		INSERT INTO dmarc_reports (
			id, domain, reporting_org, source_ip, disposition,
			spf_result, dkim_result, msg_count, report_date, raw_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		report.ID, report.Domain, report.ReportingOrg, report.SourceIP, report.Disposition,
		report.SpfResult, report.DkimResult, report.MsgCount, report.ReportDate, report.RawPayload, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dmarc report: %w", err)
	}
	return nil
}

// ListDmarcReportsSince returns records created at or after the given time,
// newest first
func (r *DmarcReportRepository) ListDmarcReportsSince(ctx context.Context, since time.Time) ([]*models.DmarcReport, error) {
	query := `
		SELECT id, domain, reporting_org, source_ip, disposition,
			spf_result, dkim_result, msg_count, report_date, raw_payload, created_at
		FROM dmarc_reports
		WHERE created_at >= $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list dmarc reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.DmarcReport
	for rows.Next() {
		var rec models.DmarcReport
		err := rows.Scan(
			&rec.ID, &rec.Domain, &rec.ReportingOrg, &rec.SourceIP, &rec.Disposition,
			&rec.SpfResult, &rec.DkimResult, &rec.MsgCount, &rec.ReportDate, &rec.RawPayload, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dmarc report: %w", err)
		}
		reports = append(reports, &rec)
	}
	return reports, rows.Err()
}

// DmarcStats aggregates the authentication window for the stats endpoint
type DmarcStats struct {
	ReportCount  int `json:"report_count"`
	TotalTraffic int `json:"total_traffic"`
	SpfFail      int `json:"spf_fail"`
	DkimFail     int `json:"dkim_fail"`
	Rejects      int `json:"rejects"`
}

// StatsSince aggregates authentication outcomes over the trailing window
func (r *DmarcReportRepository) StatsSince(ctx context.Context, since time.Time) (*DmarcStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(msg_count), 0),
			COALESCE(SUM(msg_count) FILTER (WHERE spf_result <> 'pass'), 0),
			COALESCE(SUM(msg_count) FILTER (WHERE dkim_result <> 'pass'), 0),
			COALESCE(SUM(msg_count) FILTER (WHERE disposition = 'reject'), 0)
		FROM dmarc_reports
		WHERE created_at >= $1`

	var stats DmarcStats
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&stats.ReportCount, &stats.TotalTraffic, &stats.SpfFail, &stats.DkimFail, &stats.Rejects,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dmarc stats: %w", err)
	}
	return &stats, nil
}
