package engine

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"galaxy-trader/internal/cache"
	"galaxy-trader/internal/danger"
	"galaxy-trader/internal/ledger"
	"galaxy-trader/internal/progression"
	"galaxy-trader/internal/store"
)

// Sweeper runs periodic maintenance: expired cache entries and reservations
// are compacted away, stale danger reports decay, pilot progression is
// persisted, and old threat history is pruned. The per-lookup lazy expiry in
// each component stays correct without it; the sweeper just keeps memory flat.
type Sweeper struct {
	cache   *cache.Cache
	ledger  *ledger.Ledger
	danger  *danger.Registry
	prog    *progression.Machine
	store   store.DataStore
	history time.Duration
	logger  zerolog.Logger
	cron    *cron.Cron
}

// NewSweeper creates a sweeper. Store may be nil.
func NewSweeper(oc *cache.Cache, lg *ledger.Ledger, reg *danger.Registry, prog *progression.Machine, st store.DataStore, historyRetention time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		cache:   oc,
		ledger:  lg,
		danger:  reg,
		prog:    prog,
		store:   st,
		history: historyRetention,
		logger:  logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the sweep on the given cron expression.
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("Maintenance sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one maintenance pass with the current clock.
func (s *Sweeper) Sweep() {
	s.SweepAt(time.Now())
}

// SweepAt runs one maintenance pass with an explicit clock.
func (s *Sweeper) SweepAt(now time.Time) {
	cacheRemoved := s.cache.SweepExpired(now)
	ledgerRemoved := s.ledger.SweepExpired(now)
	dangerRemoved := s.danger.Sweep(now)

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.store.SavePilots(ctx, s.prog.Pilots()); err != nil {
			s.logger.Warn().Err(err).Msg("Pilot persistence failed")
		}
		if s.history > 0 {
			if _, err := s.store.PruneDangerReports(ctx, now.Add(-s.history)); err != nil {
				s.logger.Warn().Err(err).Msg("Danger history prune failed")
			}
		}
	}

	s.logger.Debug().
		Int("cache", cacheRemoved).
		Int("reservations", ledgerRemoved).
		Int("danger", dangerRemoved).
		Msg("Maintenance sweep completed")
}
