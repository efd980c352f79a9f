// Package engine runs the fleet: a tick-driven cooperative scheduler that
// steps every registered agent through the search, reserve, fly, trade cycle.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"galaxy-trader/internal/cache"
	"galaxy-trader/internal/config"
	"galaxy-trader/internal/danger"
	"galaxy-trader/internal/errors"
	"galaxy-trader/internal/evaluator"
	"galaxy-trader/internal/fleet"
	"galaxy-trader/internal/ledger"
	"galaxy-trader/internal/models"
	"galaxy-trader/internal/progression"
	"galaxy-trader/internal/store"
	"galaxy-trader/internal/stream"
	"galaxy-trader/internal/universe"
	"galaxy-trader/pkg/utils"
)

type planLeg int

const (
	legToBuy planLeg = iota
	legToSell
)

// tradePlan is the in-flight execution state for one reserved opportunity.
type tradePlan struct {
	opp        models.Opportunity
	key        string
	leg        planLeg
	travelLeft int
	report     models.TradeReport
}

// agent is the runtime state of one registered ship/pilot pair. All access is
// guarded by the engine mutex; agents never run concurrently with each other.
type agent struct {
	id            string
	pilotID       string
	shipID        string
	commanderID   string
	location      models.SectorID
	cargoCapacity int
	baseCaps      models.Capabilities

	status     models.AgentStatus
	cargo      *models.CargoLot
	cursor     evaluator.Cursor
	backoff    *utils.Backoff
	waitTicks  int
	trainTicks int
	// keys lost to contention this search round; cleared on success or when
	// the search gives up and backs off
	contested map[string]bool
	plan      *tradePlan
	lastTrade *models.TradeReport
}

// AgentSpec describes an agent at registration time.
type AgentSpec struct {
	AgentID       string
	PilotID       string
	ShipID        string
	CommanderID   string
	Location      models.SectorID
	CargoCapacity int
	PilotLevel    int
	BaseCaps      models.Capabilities
}

// Engine owns the agent roster and drives one cooperative scheduling pass per
// tick. A tick steps each agent exactly once, in registration order, so no
// agent can starve the rest.
type Engine struct {
	cfg    *config.Config
	uni    universe.Universe
	eval   *evaluator.Evaluator
	cache  *cache.Cache
	danger *danger.Registry
	ledger *ledger.Ledger
	fleet  *fleet.Coordinator
	prog   *progression.Machine
	hub    *stream.Hub
	store  store.DataStore
	logger zerolog.Logger

	mu      sync.Mutex
	agents  map[string]*agent
	order   []string
	stopped bool
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Universe    universe.Universe
	Evaluator   *evaluator.Evaluator
	Cache       *cache.Cache
	Danger      *danger.Registry
	Ledger      *ledger.Ledger
	Fleet       *fleet.Coordinator
	Progression *progression.Machine
	Hub         *stream.Hub
	Store       store.DataStore
}

// New creates an engine. Hub and Store may be nil; events and persistence are
// then skipped.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		uni:    deps.Universe,
		eval:   deps.Evaluator,
		cache:  deps.Cache,
		danger: deps.Danger,
		ledger: deps.Ledger,
		fleet:  deps.Fleet,
		prog:   deps.Progression,
		hub:    deps.Hub,
		store:  deps.Store,
		logger: logger.With().Str("component", "engine").Logger(),
		agents: make(map[string]*agent),
	}
}

// RegisterAgent adds a ship/pilot pair to the roster. The pilot record is
// created at the given level when the progression machine does not know it
// yet, so re-registering a ship keeps the pilot's accumulated XP.
func (e *Engine) RegisterAgent(spec AgentSpec) error {
	if spec.AgentID == "" || spec.PilotID == "" {
		return errors.NewValidationError("agent_id", spec.AgentID, "agent and pilot ids are required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return errors.ErrEngineStopped
	}
	if _, exists := e.agents[spec.AgentID]; exists {
		return errors.NewValidationError("agent_id", spec.AgentID, "agent already registered")
	}

	if _, known := e.prog.Record(spec.PilotID); !known {
		e.prog.AddPilot(spec.PilotID, spec.PilotLevel)
	}
	e.fleet.Register(spec.AgentID, spec.CommanderID)

	a := &agent{
		id:            spec.AgentID,
		pilotID:       spec.PilotID,
		shipID:        spec.ShipID,
		commanderID:   spec.CommanderID,
		location:      spec.Location,
		cargoCapacity: spec.CargoCapacity,
		baseCaps:      spec.BaseCaps,
		status:        models.StatusIdle,
		backoff: utils.NewBackoff(
			e.cfg.Engine.BackoffInitial,
			e.cfg.Engine.BackoffMax,
			e.cfg.Engine.BackoffFactor,
		),
	}
	e.agents[spec.AgentID] = a
	e.order = append(e.order, spec.AgentID)

	e.logger.Info().
		Str("agent", spec.AgentID).
		Str("pilot", spec.PilotID).
		Str("sector", string(spec.Location)).
		Msg("Agent registered")
	return nil
}

// DeregisterAgent removes an agent mid-flight: its reservations are released
// immediately and any squad it commanded promotes a replacement.
func (e *Engine) DeregisterAgent(agentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.agents[agentID]
	if !ok {
		return errors.ErrAgentNotFound
	}

	released := e.ledger.ReleaseAllHeldBy(agentID)
	e.fleet.SetClaim(agentID, "")
	if e.fleet.SquadSize(agentID) > 0 {
		promoted := e.fleet.OnCommanderLost(agentID)
		e.logger.Info().Str("agent", agentID).Str("promoted", promoted).Msg("Commander lost, squad lead promoted")
	}
	e.fleet.Deregister(agentID)

	delete(e.agents, agentID)
	for i, id := range e.order {
		if id == agentID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	e.publishStatus(a.id, models.StatusIdle)
	e.logger.Info().Str("agent", agentID).Int("released", released).Msg("Agent deregistered")
	return nil
}

// ReportThreat records a hostile-activity report from the host, persists it,
// and announces it on the event feed.
func (e *Engine) ReportThreat(zoneID models.SectorID, severity int, at time.Time) error {
	if err := e.danger.Report(zoneID, severity, at); err != nil {
		return err
	}
	if e.store != nil {
		rec := models.DangerRecord{ZoneID: zoneID, Severity: severity, ReportedAt: at}
		if err := e.store.SaveDangerReport(context.Background(), rec); err != nil {
			e.logger.Warn().Err(err).Msg("Danger report not persisted")
		}
	}
	if e.hub != nil {
		e.hub.Publish(stream.ThreatEvent(zoneID, severity, at))
	}
	return nil
}

// Run drives ticks at the configured interval until the context ends.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Engine.TickInterval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.cfg.Engine.TickInterval).Msg("Engine started")
	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.stopped = true
			e.mu.Unlock()
			e.logger.Info().Msg("Engine stopped")
			return
		case now := <-ticker.C:
			e.Tick(ctx, now)
		}
	}
}

// Tick steps every agent once. Exposed so tests and the host can drive the
// scheduler with an explicit clock.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.mu.Lock()
	order := make([]string, len(e.order))
	copy(order, e.order)
	e.mu.Unlock()

	for _, id := range order {
		e.mu.Lock()
		a, ok := e.agents[id]
		if ok {
			e.stepAgent(ctx, a, now)
		}
		e.mu.Unlock()
	}
}

// stepAgent advances one agent by one scheduling quantum. Callers hold e.mu.
func (e *Engine) stepAgent(ctx context.Context, a *agent, now time.Time) {
	if a.waitTicks > 0 {
		a.waitTicks--
		return
	}

	if a.trainTicks > 0 {
		a.trainTicks--
		if a.trainTicks == 0 {
			if err := e.prog.CompleteCertification(a.pilotID); err != nil {
				e.logger.Warn().Err(err).Str("pilot", a.pilotID).Msg("Certification completion rejected")
			}
			if rec, ok := e.prog.Record(a.pilotID); ok && e.hub != nil {
				e.hub.Publish(stream.LevelUpEvent(a.pilotID, rec.Level, now))
			}
			e.setStatus(a, models.StatusIdle)
		}
		return
	}

	// A gated pilot trains before anything else; the ship sits out until the
	// certification completes.
	if a.plan == nil && e.prog.Gated(a.pilotID) {
		if err := e.prog.StartCertification(a.pilotID); err == nil {
			a.trainTicks = e.ticksFor(e.cfg.Progression.TrainingTime)
			e.setStatus(a, models.StatusTraining)
			return
		}
	}

	if a.plan != nil {
		e.advancePlan(ctx, a, now)
		return
	}

	e.search(ctx, a, now)
}

// search runs one evaluation pass and, on a hit, tries to reserve it. Losing
// the reservation race marks the key contested so the next pass lands on the
// next-best candidate.
func (e *Engine) search(ctx context.Context, a *agent, now time.Time) {
	e.setStatus(a, models.StatusSearching)

	excluded := e.fleet.Exclusions(a.id)
	for k := range a.contested {
		excluded[k] = true
	}

	caps := e.prog.Capabilities(a.pilotID, a.baseCaps)
	req := &evaluator.Request{
		AgentID:       a.id,
		Origin:        a.location,
		Caps:          caps,
		Excluded:      excluded,
		Cargo:         a.cargo,
		CargoCapacity: a.cargoCapacity,
		Cursor:        &a.cursor,
		Now:           now,
	}
	opp, ok := e.eval.FindBest(ctx, req)
	if ok && a.cargo != nil && a.cargo.Quantity > 0 &&
		(opp.Ware != a.cargo.Ware || opp.Origin != a.location) {
		// The evaluator fell through to a fresh buy+sell while the hold is
		// full. Buying would overwrite the paid-for lot, so wait for a buyer
		// to appear instead.
		e.logger.Debug().
			Str("agent", a.id).
			Str("held", string(a.cargo.Ware)).
			Str("key", opp.Key()).
			Msg("No buyer for held cargo, fresh buy deferred")
		ok = false
	}
	if !ok {
		if a.cursor.InProgress() {
			// Budget ran out; the enumeration resumes next tick.
			return
		}
		a.contested = nil
		a.waitTicks = e.ticksFor(a.backoff.Next())
		if caps.AvoidBlacklisted && e.danger.BlockedAt(a.location, now) {
			e.setStatus(a, models.StatusBlocked)
		} else {
			e.setStatus(a, models.StatusIdle)
		}
		return
	}

	key := opp.Key()
	if !e.ledger.TryReserveAt(key, a.id, e.cfg.Reservation.TTL, now) {
		if a.contested == nil {
			a.contested = make(map[string]bool)
		}
		a.contested[key] = true
		e.logger.Debug().Str("agent", a.id).Str("key", key).Msg("Reservation lost, trying next-best")
		return
	}

	a.contested = nil
	a.backoff.Reset()
	e.fleet.SetClaim(a.id, key)
	e.startPlan(ctx, a, opp, key, now)
}

// Agents returns a snapshot of the roster for the status surfaces.
func (e *Engine) Agents() []models.AgentSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.AgentSnapshot, 0, len(e.order))
	for _, id := range e.order {
		a := e.agents[id]
		snap := models.AgentSnapshot{
			AgentID:     a.id,
			PilotID:     a.pilotID,
			ShipID:      a.shipID,
			CommanderID: a.commanderID,
			Status:      a.status,
			LastTrade:   a.lastTrade,
		}
		if a.plan != nil {
			snap.Reservation = a.plan.key
		}
		out = append(out, snap)
	}
	return out
}

// AgentCount returns the roster size.
func (e *Engine) AgentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.agents)
}

func (e *Engine) setStatus(a *agent, s models.AgentStatus) {
	if a.status == s {
		return
	}
	a.status = s
	e.publishStatus(a.id, s)
}

func (e *Engine) publishStatus(agentID string, s models.AgentStatus) {
	if e.hub != nil {
		e.hub.Publish(stream.StatusEvent(agentID, s, time.Now()))
	}
}

// ticksFor converts a wall-clock duration into scheduler ticks, minimum one.
func (e *Engine) ticksFor(d time.Duration) int {
	interval := e.cfg.Engine.TickInterval
	if interval <= 0 {
		return 1
	}
	n := int(d / interval)
	if n < 1 {
		n = 1
	}
	return n
}

func newTradeID() string {
	return uuid.NewString()
}
