// Package models provides domain models for the fleet trading engine.
package models

import (
	"fmt"
	"time"
)

// SectorID identifies a sector (zone) in the universe graph.
type SectorID string

// WareID identifies a tradeable commodity.
type WareID string

// WareTier classifies wares by the pilot level required to trade them.
type WareTier int

const (
	TierBasic    WareTier = 1 // raw resources, food
	TierRefined  WareTier = 2 // refined goods, components
	TierAdvanced WareTier = 3 // hightech, restricted wares
)

// AgentStatus represents the externally visible state of a trading agent.
type AgentStatus string

const (
	StatusIdle      AgentStatus = "idle"
	StatusSearching AgentStatus = "searching"
	StatusEnRoute   AgentStatus = "en-route"
	StatusTrading   AgentStatus = "trading"
	StatusTraining  AgentStatus = "training"
	StatusBlocked   AgentStatus = "blocked"
)

// Opportunity is a scored candidate buy-at-origin/sell-at-destination trade.
// It is never mutated after scoring; a stale entry is superseded by a fresh
// candidate rather than updated in place.
type Opportunity struct {
	Origin      SectorID
	Destination SectorID
	Ware        WareID
	BuyPrice    float64
	SellPrice   float64
	Quantity    int
	Profit      float64
	TravelCost  float64 // normalized travel penalty input
	Hops        int
	RiskScore   float64
	Score       float64

	// Set only for cached entries.
	DiscoveredAt time.Time
	TTL          time.Duration
}

// Key returns the stable identity of the physical trade. It deliberately
// excludes prices and score so re-discovering the same route/ware pair maps
// to the same reservation slot.
func (o Opportunity) Key() string {
	return OpportunityKey(o.Origin, o.Destination, o.Ware)
}

// OpportunityKey builds the reservation key for an origin/destination/ware triple.
func OpportunityKey(origin, destination SectorID, ware WareID) string {
	return fmt.Sprintf("%s>%s:%s", origin, destination, ware)
}

// Expired reports whether a cached opportunity has outlived its TTL.
func (o Opportunity) Expired(now time.Time) bool {
	if o.DiscoveredAt.IsZero() || o.TTL <= 0 {
		return false
	}
	return now.After(o.DiscoveredAt.Add(o.TTL))
}

// ROI returns profit relative to the capital tied up in the buy leg.
func (o Opportunity) ROI() float64 {
	cost := o.BuyPrice * float64(o.Quantity)
	if cost <= 0 {
		return 0
	}
	return o.Profit / cost
}

// Reservation is an exclusive, time-bounded claim on an opportunity key.
type Reservation struct {
	OpportunityKey string
	HolderID       string
	ExpiresAt      time.Time
}

// Expired reports whether the reservation is past its expiry.
func (r Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// DangerRecord is a single hostile-activity report for a sector.
type DangerRecord struct {
	ZoneID     SectorID
	Severity   int // 1..5
	ReportedAt time.Time
}

// PilotRecord holds per-pilot progression state. It is owned by the pilot
// identity and survives reassignment to a different ship.
type PilotRecord struct {
	PilotID string
	Level   int
	XP      float64
	// GatePending is true while the pilot sits at a gate level whose
	// certification has not yet completed; XP accrual is frozen meanwhile.
	GatePending        bool
	TrainingInProgress bool
	UpdatedAt          time.Time
}

// AgentAssignment is the transient binding of a pilot and ship to the engine.
type AgentAssignment struct {
	AgentID        string
	PilotID        string
	ShipID         string
	CommanderID    string
	ReservationKey string // empty when no claim is held
	RegisteredAt   time.Time
}

// Capabilities are the level-gated limits the evaluator must respect for an
// agent. They are derived from the pilot's progression level plus agent
// configuration; the evaluator treats them as read-only input.
type Capabilities struct {
	MaxJumpRange     int
	MaxWareTier      WareTier
	RiskTolerance    float64 // candidate RiskScore above this is excluded
	MinProfit        float64
	MinROI           float64
	AllowIllegal     bool
	AvoidBlacklisted bool
}

// CargoLot describes cargo an agent is currently holding. A loaded agent is
// restricted to sell-side matches for this ware before a fresh buy+sell
// search is considered.
type CargoLot struct {
	Ware     WareID
	Quantity int
	BoughtAt SectorID
	UnitCost float64
}

// TradeReport summarizes a completed (or aborted) trade for the journal and
// the status feed.
type TradeReport struct {
	TradeID     string
	AgentID     string
	PilotID     string
	Origin      SectorID
	Destination SectorID
	Ware        WareID
	Quantity    int
	Profit      float64
	XPAwarded   float64
	Completed   bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration returns the wall-clock length of the trade.
func (t TradeReport) Duration() time.Duration {
	if t.CompletedAt.IsZero() || t.StartedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// PilotSnapshot is the per-pilot view exposed to the host/UI layer.
type PilotSnapshot struct {
	PilotID     string
	Level       int
	XP          float64
	NextLevelXP float64
	Gated       bool
}

// AgentSnapshot is the per-agent view exposed to the host/UI layer.
type AgentSnapshot struct {
	AgentID     string
	PilotID     string
	ShipID      string
	CommanderID string
	Status      AgentStatus
	Reservation string
	LastTrade   *TradeReport
}
