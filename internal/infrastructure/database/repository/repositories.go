package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories bundles the per-table repositories over one shared pool.
// It satisfies both the normalizer's store interfaces and the correlator's
// CorrelationStore through embedding.
type Repositories struct {
	*ThreatEventRepository
	*AtoEventRepository
	*DmarcReportRepository
	*AlertRepository
}

// NewRepositories creates the full repository set
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		ThreatEventRepository: NewThreatEventRepository(pool),
		AtoEventRepository:    NewAtoEventRepository(pool),
		DmarcReportRepository: NewDmarcReportRepository(pool),
		AlertRepository:       NewAlertRepository(pool),
	}
}
