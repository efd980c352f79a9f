// Package universe provides the host simulation interfaces and an in-memory
// implementation used for local runs and tests.
package universe

import (
	"context"

	"galaxy-trader/internal/models"
)

// Quote is the current market state for a ware at a sector.
type Quote struct {
	Sector    models.SectorID
	Ware      models.WareID
	BuyPrice  float64 // price an agent pays to buy here
	SellPrice float64 // price an agent receives selling here
	Supply    int     // units available to buy
	Demand    int     // units the market will absorb
	AvgPrice  float64 // galaxy average for quality scoring
}

// Graph exposes distance and reachability between sectors.
type Graph interface {
	// Hops returns the jump distance between two sectors, or an error if
	// either sector is unknown or no route exists.
	Hops(ctx context.Context, from, to models.SectorID) (int, error)
	// Reachable returns all sectors within maxHops of origin, excluding the
	// origin itself.
	Reachable(ctx context.Context, origin models.SectorID, maxHops int) ([]models.SectorID, error)
	// Sectors returns every known sector.
	Sectors(ctx context.Context) ([]models.SectorID, error)
}

// Market exposes ware prices and quantities per sector.
type Market interface {
	// Quote returns the current market state for a ware at a sector.
	Quote(ctx context.Context, sector models.SectorID, ware models.WareID) (*Quote, error)
	// Wares returns the wares traded at a sector.
	Wares(ctx context.Context, sector models.SectorID) ([]models.WareID, error)
	// WareTier returns the capability tier of a ware.
	WareTier(ware models.WareID) models.WareTier
	// IsIllegal reports whether a ware is contraband.
	IsIllegal(ware models.WareID) bool
	// Execute settles a buy or sell leg and returns the realized unit price.
	Execute(ctx context.Context, sector models.SectorID, ware models.WareID, quantity int, buy bool) (float64, error)
}

// Wallet is the single shared funds pool.
type Wallet interface {
	Balance(ctx context.Context) (float64, error)
	Debit(ctx context.Context, amount float64) error
	Credit(ctx context.Context, amount float64) error
}

// RoutePublisher receives the current blocked-zone set so the host router
// replans without per-agent polling.
type RoutePublisher interface {
	PublishBlockedZones(zones []models.SectorID)
}

// Universe bundles the host capabilities the engine consumes.
type Universe interface {
	Graph
	Market
	Wallet
}
