// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"galaxy-trader/internal/models"
)

// DataStore defines the interface for engine persistence.
type DataStore interface {
	// Trade journal
	SaveTrade(ctx context.Context, t models.TradeReport) error
	GetTrades(ctx context.Context, limit int) ([]models.TradeReport, error)
	GetTradesByAgent(ctx context.Context, agentID string, limit int) ([]models.TradeReport, error)
	GetTradeStats(ctx context.Context) (TradeStats, error)

	// Pilot progression
	SavePilot(ctx context.Context, p models.PilotRecord) error
	SavePilots(ctx context.Context, pilots []models.PilotRecord) error
	GetPilot(ctx context.Context, pilotID string) (models.PilotRecord, error)
	GetAllPilots(ctx context.Context) ([]models.PilotRecord, error)

	// Danger report history
	SaveDangerReport(ctx context.Context, r models.DangerRecord) error
	GetDangerReports(ctx context.Context, since time.Time) ([]models.DangerRecord, error)
	PruneDangerReports(ctx context.Context, before time.Time) (int64, error)

	// Lifecycle
	Close() error
}
