// Package progression implements the per-pilot level/XP state machine that
// gates what an agent may fly and trade.
package progression

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"galaxy-trader/internal/config"
	"galaxy-trader/internal/errors"
	"galaxy-trader/internal/models"
)

// MaxLevel is the progression ceiling.
const MaxLevel = 15

// DefaultThresholds holds the cumulative XP required to reach each level.
// Index is the level; levels 1 and 2 need no prior XP beyond the first 100.
var DefaultThresholds = []float64{
	0,     // unused (levels start at 1)
	0,     // level 1
	0,     // level 2 is reached through early trades
	100,   // level 3
	250,   // level 4
	450,   // level 5
	700,   // level 6
	1000,  // level 7
	1400,  // level 8
	1900,  // level 9
	2500,  // level 10
	3200,  // level 11
	4000,  // level 12
	5000,  // level 13
	6200,  // level 14
	7600,  // level 15
}

// TradeOutcome is the completion event a finished trade feeds the machine.
type TradeOutcome struct {
	TradeValue float64 // sell revenue of the trade
	Quality    float64 // 0..1 price-deviation quality metric
	Hops       int
}

// Machine owns every pilot record. XP accrual freezes whenever a pilot sits
// at a gate level with its certification still pending; surplus XP earned
// before the freeze is retained and counts once the gate opens.
type Machine struct {
	mu         sync.RWMutex
	pilots     map[string]*models.PilotRecord
	cfg        config.ProgressionConfig
	thresholds []float64
	gates      map[int]bool
	logger     zerolog.Logger
}

// NewMachine creates a progression machine with the given tuning.
func NewMachine(cfg config.ProgressionConfig, logger zerolog.Logger) *Machine {
	gates := make(map[int]bool, len(cfg.GateLevels))
	for _, g := range cfg.GateLevels {
		gates[g] = true
	}
	return &Machine{
		pilots:     make(map[string]*models.PilotRecord),
		cfg:        cfg,
		thresholds: DefaultThresholds,
		gates:      gates,
		logger:     logger,
	}
}

// SetThresholds overrides the cumulative XP table. Used by tests and
// balance tuning.
func (m *Machine) SetThresholds(thresholds []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = thresholds
}

// AddPilot registers a pilot at the given starting level. Re-adding an
// existing pilot is a no-op.
func (m *Machine) AddPilot(pilotID string, level int) {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pilots[pilotID]; ok {
		return
	}
	m.pilots[pilotID] = &models.PilotRecord{
		PilotID:   pilotID,
		Level:     level,
		UpdatedAt: time.Now(),
	}
}

// RestorePilot installs a persisted record, replacing any in-memory state.
func (m *Machine) RestorePilot(rec models.PilotRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := rec
	m.pilots[rec.PilotID] = &cp
}

// Gated reports whether the pilot's XP accrual is currently frozen.
func (m *Machine) Gated(pilotID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pilots[pilotID]
	return ok && m.gatedLocked(p)
}

func (m *Machine) gatedLocked(p *models.PilotRecord) bool {
	return p.GatePending
}

// AwardXP applies a completed trade to the pilot. While gated it is a no-op
// by design: the XP is simply not accrued. Returns the XP actually awarded.
func (m *Machine) AwardXP(pilotID string, outcome TradeOutcome) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pilots[pilotID]
	if !ok {
		m.logger.Debug().Str("pilot", pilotID).Msg("XP award for unknown pilot ignored")
		return 0
	}
	if m.gatedLocked(p) {
		m.logger.Debug().Str("pilot", pilotID).Int("level", p.Level).Msg("XP award suppressed: pilot gated")
		return 0
	}

	xp := m.computeXP(outcome)
	if xp <= 0 {
		return 0
	}

	p.XP += xp
	p.UpdatedAt = time.Now()
	m.maybeLevelUpLocked(p)
	return xp
}

// computeXP evaluates the per-trade XP formula and clamps the result.
func (m *Machine) computeXP(outcome TradeOutcome) float64 {
	hops := outcome.Hops
	if hops > m.cfg.HopCap {
		hops = m.cfg.HopCap
	}
	quality := outcome.Quality
	if quality < 0 {
		quality = 0
	} else if quality > 1 {
		quality = 1
	}

	xp := m.cfg.XPBase *
		(outcome.TradeValue / m.cfg.Normalization) *
		(1 + quality*m.cfg.QualityWeight) *
		(1 + float64(hops)*m.cfg.PerHopBonus) *
		m.cfg.XPMultiplier

	return math.Min(math.Max(xp, m.cfg.MinXPPerTrade), m.cfg.MaxXPPerTrade)
}

// maybeLevelUpLocked advances the pilot while its cumulative XP clears the
// next threshold. Entering a gate level stops further advancement until the
// certification completes, even with surplus XP banked.
func (m *Machine) maybeLevelUpLocked(p *models.PilotRecord) {
	for p.Level < MaxLevel {
		next := p.Level + 1
		if next >= len(m.thresholds) || p.XP < m.thresholds[next] {
			return
		}
		p.Level = next
		if m.gates[next] {
			// Surplus XP is retained, not lost; it counts once ungated.
			p.GatePending = true
		}
		m.logger.Info().
			Str("pilot", p.PilotID).
			Int("level", p.Level).
			Bool("gated", p.GatePending).
			Msg("Pilot leveled up")
		if p.GatePending {
			return
		}
	}
}

// StartCertification marks a gated pilot as training. Returns an error when
// the pilot is not gated; callers treat it as a no-op.
func (m *Machine) StartCertification(pilotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pilots[pilotID]
	if !ok {
		return errors.NewProgressionError(pilotID, "start_certification", errors.ErrPilotNotFound)
	}
	if !m.gatedLocked(p) {
		return errors.NewProgressionError(pilotID, "start_certification", errors.ErrNotGated)
	}
	p.TrainingInProgress = true
	p.UpdatedAt = time.Now()
	return nil
}

// CompleteCertification opens the pilot's current gate and resumes both XP
// accrual and any level-ups its banked surplus already pays for. Completing
// a certification that was never started is tolerated and logged.
func (m *Machine) CompleteCertification(pilotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pilots[pilotID]
	if !ok {
		return errors.NewProgressionError(pilotID, "complete_certification", errors.ErrPilotNotFound)
	}
	if !p.GatePending {
		m.logger.Debug().Str("pilot", pilotID).Int("level", p.Level).Msg("Certification completion without pending gate ignored")
		return errors.NewProgressionError(pilotID, "complete_certification", errors.ErrNotGated)
	}
	if !p.TrainingInProgress {
		m.logger.Debug().Str("pilot", pilotID).Msg("Certification completed without start; accepting")
	}

	p.TrainingInProgress = false
	p.GatePending = false
	p.UpdatedAt = time.Now()

	m.logger.Info().Str("pilot", pilotID).Int("level", p.Level).Msg("Certification complete, gate opened")

	// Banked surplus may immediately pay for the next level.
	m.maybeLevelUpLocked(p)
	return nil
}

// Record returns a copy of the pilot's record.
func (m *Machine) Record(pilotID string) (models.PilotRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pilots[pilotID]
	if !ok {
		return models.PilotRecord{}, false
	}
	return *p, true
}

// Snapshot returns the display view of a pilot.
func (m *Machine) Snapshot(pilotID string) (models.PilotSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pilots[pilotID]
	if !ok {
		return models.PilotSnapshot{}, false
	}

	var nextXP float64
	if next := p.Level + 1; next < len(m.thresholds) {
		nextXP = m.thresholds[next]
	}
	return models.PilotSnapshot{
		PilotID:     p.PilotID,
		Level:       p.Level,
		XP:          p.XP,
		NextLevelXP: nextXP,
		Gated:       m.gatedLocked(p),
	}, true
}

// Pilots returns copies of every pilot record, for persistence snapshots.
func (m *Machine) Pilots() []models.PilotRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PilotRecord, 0, len(m.pilots))
	for _, p := range m.pilots {
		out = append(out, *p)
	}
	return out
}

// Capabilities derives the level-gated evaluator limits for a pilot,
// layered on top of the agent's configured thresholds.
func (m *Machine) Capabilities(pilotID string, base models.Capabilities) models.Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()

	caps := base
	p, ok := m.pilots[pilotID]
	if !ok {
		caps.MaxJumpRange = 0
		return caps
	}

	// Jump range widens with level; ware tiers and risk tolerance unlock at
	// fixed steps.
	caps.MaxJumpRange = levelJumpRange(p.Level)
	switch {
	case p.Level >= 10:
		caps.MaxWareTier = models.TierAdvanced
	case p.Level >= 5:
		caps.MaxWareTier = models.TierRefined
	default:
		caps.MaxWareTier = models.TierBasic
	}
	if base.RiskTolerance > 0 {
		caps.RiskTolerance = base.RiskTolerance * (0.5 + float64(p.Level)/float64(MaxLevel)*0.5)
	}
	return caps
}

func levelJumpRange(level int) int {
	switch {
	case level >= 13:
		return 12
	case level >= 10:
		return 9
	case level >= 7:
		return 7
	case level >= 4:
		return 5
	default:
		return 3
	}
}
