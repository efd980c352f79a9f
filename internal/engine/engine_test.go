package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galaxy-trader/internal/cache"
	"galaxy-trader/internal/config"
	"galaxy-trader/internal/danger"
	gterrors "galaxy-trader/internal/errors"
	"galaxy-trader/internal/evaluator"
	"galaxy-trader/internal/fleet"
	"galaxy-trader/internal/ledger"
	"galaxy-trader/internal/models"
	"galaxy-trader/internal/progression"
	"galaxy-trader/internal/universe"
)

func testEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.Trading.MinProfit = 1
	cfg.Trading.MinROI = 0.0001
	cfg.Trading.QualityWeight = 0
	cfg.Trading.FeeRate = 0
	cfg.Trading.WorkBudget = 1000
	cfg.Cache.MinProfitToCache = 1
	cfg.Engine.TickInterval = time.Second
	cfg.Engine.TravelTicksPerHop = 1
	cfg.Engine.BackoffInitial = time.Second
	cfg.Engine.BackoffMax = 4 * time.Second
	cfg.Progression.TrainingTime = 2 * time.Second
	return cfg
}

type harness struct {
	cfg    *config.Config
	uni    *universe.SimUniverse
	eng    *Engine
	ledger *ledger.Ledger
	fleet  *fleet.Coordinator
	prog   *progression.Machine
	danger *danger.Registry
	now    time.Time
}

func newHarness(t *testing.T, uni *universe.SimUniverse) *harness {
	t.Helper()
	cfg := testEngineConfig()
	log := zerolog.Nop()

	reg := danger.NewRegistry(cfg.Danger.Threshold, cfg.Danger.Window, true, nil, log)
	oc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MinProfitToCache, cfg.Cache.TTL, nil, log)
	lg := ledger.New(log)
	fc := fleet.NewCoordinator(log)
	prog := progression.NewMachine(cfg.Progression, log)
	ev := evaluator.New(uni, oc, reg, cfg.Trading, log)

	eng := New(cfg, Deps{
		Universe:    uni,
		Evaluator:   ev,
		Cache:       oc,
		Danger:      reg,
		Ledger:      lg,
		Fleet:       fc,
		Progression: prog,
	}, log)

	return &harness{
		cfg:    cfg,
		uni:    uni,
		eng:    eng,
		ledger: lg,
		fleet:  fc,
		prog:   prog,
		danger: reg,
		now:    time.Unix(1_700_000_000, 0),
	}
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(h.cfg.Engine.TickInterval)
		h.eng.Tick(context.Background(), h.now)
	}
}

func (h *harness) agentStatus(id string) models.AgentStatus {
	for _, s := range h.eng.Agents() {
		if s.AgentID == id {
			return s.Status
		}
	}
	return ""
}

func (h *harness) lastTrade(id string) *models.TradeReport {
	for _, s := range h.eng.Agents() {
		if s.AgentID == id {
			return s.LastTrade
		}
	}
	return nil
}

// pairUniverse has two profitable routes out of sector a: w1 (best) and w2
// (runner-up), both selling one hop away in b.
func pairUniverse() *universe.SimUniverse {
	u := universe.NewSimUniverse(1e9, 1)
	u.AddSector("a", "b")
	u.SetQuote(universe.Quote{Sector: "a", Ware: "w1", BuyPrice: 10, SellPrice: 1, Supply: 1000, Demand: 0})
	u.SetQuote(universe.Quote{Sector: "b", Ware: "w1", BuyPrice: 200, SellPrice: 20, Supply: 0, Demand: 1000})
	u.SetQuote(universe.Quote{Sector: "a", Ware: "w2", BuyPrice: 10, SellPrice: 1, Supply: 1000, Demand: 0})
	u.SetQuote(universe.Quote{Sector: "b", Ware: "w2", BuyPrice: 180, SellPrice: 18, Supply: 0, Demand: 1000})
	return u
}

func registerShip(t *testing.T, h *harness, id, pilot string, level int) {
	t.Helper()
	err := h.eng.RegisterAgent(AgentSpec{
		AgentID:       id,
		PilotID:       pilot,
		ShipID:        "hull-" + id,
		Location:      "a",
		CargoCapacity: 100,
		PilotLevel:    level,
		BaseCaps:      models.Capabilities{MaxJumpRange: 5, MaxWareTier: models.TierAdvanced, AvoidBlacklisted: true},
	})
	require.NoError(t, err)
}

func TestReservationContentionFallsToNextBest(t *testing.T) {
	h := newHarness(t, pairUniverse())
	registerShip(t, h, "ship-1", "pilot-1", 1)
	registerShip(t, h, "ship-2", "pilot-2", 1)

	// Tick 1: ship-1 reserves the best route; ship-2 finds the same route,
	// loses the race, and marks it contested. Tick 2: ship-2 lands on the
	// runner-up.
	h.tick(2)

	snaps := h.eng.Agents()
	require.Len(t, snaps, 2)
	keys := map[string]string{}
	for _, s := range snaps {
		keys[s.AgentID] = s.Reservation
	}
	assert.Equal(t, models.OpportunityKey("a", "b", "w1"), keys["ship-1"])
	assert.Equal(t, models.OpportunityKey("a", "b", "w2"), keys["ship-2"])
	assert.Equal(t, 2, h.ledger.LiveCount(h.now))
}

func TestTradeLifecycleCompletes(t *testing.T) {
	h := newHarness(t, pairUniverse())
	registerShip(t, h, "ship-1", "pilot-1", 1)

	before, err := h.uni.Balance(context.Background())
	require.NoError(t, err)

	// Plenty of ticks to cover search, reserve, fly, buy, fly, sell.
	h.tick(10)

	trade := h.lastTrade("ship-1")
	require.NotNil(t, trade, "trade must complete within the tick budget")
	assert.True(t, trade.Completed)
	assert.Greater(t, trade.Profit, 0.0)
	assert.Greater(t, trade.XPAwarded, 0.0)

	after, err := h.uni.Balance(context.Background())
	require.NoError(t, err)
	assert.Greater(t, after, before, "wallet grows by the realized margin")

	rec, ok := h.prog.Record("pilot-1")
	require.True(t, ok)
	assert.Greater(t, rec.XP, 0.0)

	// The completed trade released its claim.
	assert.Equal(t, 0, h.ledger.LiveCount(h.now))
}

func TestDeregistrationReleasesReservation(t *testing.T) {
	h := newHarness(t, pairUniverse())
	registerShip(t, h, "ship-1", "pilot-1", 1)

	h.tick(1)
	require.Equal(t, 1, h.ledger.LiveCount(h.now), "first tick reserves a route")

	require.NoError(t, h.eng.DeregisterAgent("ship-1"))
	assert.Equal(t, 0, h.ledger.LiveCount(h.now))
	assert.Equal(t, 0, h.eng.AgentCount())

	assert.ErrorIs(t, h.eng.DeregisterAgent("ship-1"), gterrors.ErrAgentNotFound)
}

func TestGatedPilotTrainsBeforeTrading(t *testing.T) {
	h := newHarness(t, pairUniverse())
	h.prog.RestorePilot(models.PilotRecord{PilotID: "pilot-1", Level: 3, XP: 140, GatePending: true})
	registerShip(t, h, "ship-1", "pilot-1", 3)

	// First tick starts the certification instead of a search.
	h.tick(1)
	assert.Equal(t, models.StatusTraining, h.agentStatus("ship-1"))
	assert.Equal(t, 0, h.ledger.LiveCount(h.now))

	// TrainingTime is two ticks; afterwards the gate is open and the agent
	// trades normally.
	h.tick(2)
	assert.False(t, h.prog.Gated("pilot-1"))

	h.tick(10)
	trade := h.lastTrade("ship-1")
	require.NotNil(t, trade)
	assert.Greater(t, trade.XPAwarded, 0.0, "XP accrues again after certification")
}

func TestBlockedDestinationAbortsPlanMidFlight(t *testing.T) {
	u := universe.NewSimUniverse(1e9, 1)
	// Three hops to the sell sector leaves time to block it in flight.
	u.AddSector("a", "b")
	u.AddSector("b", "c")
	u.AddSector("c", "d")
	u.SetQuote(universe.Quote{Sector: "a", Ware: "w1", BuyPrice: 10, SellPrice: 1, Supply: 1000, Demand: 0})
	u.SetQuote(universe.Quote{Sector: "d", Ware: "w1", BuyPrice: 200, SellPrice: 20, Supply: 0, Demand: 1000})

	h := newHarness(t, u)
	registerShip(t, h, "ship-1", "pilot-1", 1)

	// Reserve and buy: tick 1 reserves (already at the buy sector), tick 2
	// executes the buy leg and turns toward d.
	h.tick(2)
	require.Equal(t, 1, h.ledger.LiveCount(h.now))

	// The sell sector turns hostile while the ship is in transit.
	require.NoError(t, h.eng.ReportThreat("d", 5, h.now))

	h.tick(1)
	assert.Equal(t, 0, h.ledger.LiveCount(h.now), "aborted plan releases its claim")
	assert.Equal(t, models.StatusSearching, h.agentStatus("ship-1"))
	assert.Nil(t, h.lastTrade("ship-1"), "no completed trade recorded")
}

func TestHeldCargoSurvivesUntilBuyerAppears(t *testing.T) {
	h := newHarness(t, pairUniverse())
	registerShip(t, h, "ship-1", "pilot-1", 1)

	// The ship already paid for a lot nobody quotes demand for; the w1 route
	// stays profitable the whole time.
	h.eng.agents["ship-1"].cargo = &models.CargoLot{
		Ware:     "w-held",
		Quantity: 40,
		BoughtAt: "a",
		UnitCost: 10,
	}

	h.tick(4)

	held := h.eng.agents["ship-1"].cargo
	require.NotNil(t, held, "held lot must survive until sold")
	assert.Equal(t, models.WareID("w-held"), held.Ware)
	assert.Equal(t, 40, held.Quantity)
	assert.Equal(t, 0, h.ledger.LiveCount(h.now), "no fresh buy reserved while loaded")

	// A buyer shows up; the deferred lot sells on the rematch.
	h.uni.SetQuote(universe.Quote{Sector: "b", Ware: "w-held", BuyPrice: 45, SellPrice: 50, Supply: 0, Demand: 1000})
	h.tick(10)

	trade := h.lastTrade("ship-1")
	require.NotNil(t, trade)
	assert.Equal(t, models.WareID("w-held"), trade.Ware)
	assert.True(t, trade.Completed)
	assert.Nil(t, h.eng.agents["ship-1"].cargo, "hold empties after the sale")
}

func TestBlockedSurroundingsReportBlockedStatus(t *testing.T) {
	h := newHarness(t, pairUniverse())
	registerShip(t, h, "ship-1", "pilot-1", 1)

	require.NoError(t, h.eng.ReportThreat("a", 5, h.now))
	require.NoError(t, h.eng.ReportThreat("b", 5, h.now))

	h.tick(1)
	assert.Equal(t, models.StatusBlocked, h.agentStatus("ship-1"))
	assert.Equal(t, 0, h.ledger.LiveCount(h.now))
}

func TestEmptyMarketBacksOff(t *testing.T) {
	u := universe.NewSimUniverse(1e9, 1)
	u.AddSector("a", "b")
	u.SetQuote(universe.Quote{Sector: "a", Ware: "w1", BuyPrice: 10, SellPrice: 9, Supply: 100, Demand: 100})
	u.SetQuote(universe.Quote{Sector: "b", Ware: "w1", BuyPrice: 10, SellPrice: 9, Supply: 100, Demand: 100})

	h := newHarness(t, u)
	registerShip(t, h, "ship-1", "pilot-1", 1)

	h.tick(5)
	assert.Equal(t, models.StatusIdle, h.agentStatus("ship-1"))
	assert.Equal(t, 0, h.ledger.LiveCount(h.now))
}

func TestRegisterRejectsDuplicateAndEmptyIDs(t *testing.T) {
	h := newHarness(t, pairUniverse())
	registerShip(t, h, "ship-1", "pilot-1", 1)

	err := h.eng.RegisterAgent(AgentSpec{AgentID: "ship-1", PilotID: "pilot-9", Location: "a"})
	assert.Error(t, err)

	err = h.eng.RegisterAgent(AgentSpec{AgentID: "", PilotID: "pilot-9", Location: "a"})
	assert.Error(t, err)
}
