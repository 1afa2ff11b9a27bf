package handlers

import (
	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/services"
	"lrx-radar/internal/infrastructure/cache"
	"lrx-radar/internal/infrastructure/database"
	"lrx-radar/internal/infrastructure/database/repository"
	"lrx-radar/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Campaigns *CampaignsHandler
	Alerts    *AlertsHandler
	Stats     *StatsHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Config       config.Config
	Correlator   *services.Correlator
	Orchestrator *services.Orchestrator
	Cache        *cache.RedisCache
	DB           *database.PostgresDB
	Repos        *repository.Repositories
	Logger       *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Cache, deps.DB, deps.Config.App.Version, deps.Logger),
		Campaigns: NewCampaignsHandler(deps.Correlator, deps.Orchestrator, deps.Cache, deps.Config.Correlation, deps.Logger),
		Alerts:    NewAlertsHandler(deps.Repos, deps.Logger),
		Stats:     NewStatsHandler(deps.Repos, deps.Cache, deps.Logger),
	}
}
