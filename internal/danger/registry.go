// Package danger tracks hostile-activity reports per zone and derives the
// current blocked-zone set from a rolling severity window.
package danger

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"galaxy-trader/internal/errors"
	"galaxy-trader/internal/models"
	"galaxy-trader/internal/universe"
)

// Registry reduces per-zone threat reports to a blocked set. Block status is
// always derived from the records still inside the window, never stored, so
// a zone silently unblocks once its reports age out.
type Registry struct {
	mu        sync.RWMutex
	records   []models.DangerRecord
	threshold int
	window    time.Duration
	enabled   bool
	publisher universe.RoutePublisher
	logger    zerolog.Logger

	lastPublished map[models.SectorID]bool
}

// NewRegistry creates a danger registry. A nil publisher disables route
// publication.
func NewRegistry(threshold int, window time.Duration, enabled bool, publisher universe.RoutePublisher, logger zerolog.Logger) *Registry {
	return &Registry{
		threshold:     threshold,
		window:        window,
		enabled:       enabled,
		publisher:     publisher,
		logger:        logger,
		lastPublished: make(map[models.SectorID]bool),
	}
}

// Report appends a hostile-activity record. Empty zone identifiers are
// rejected and logged, never fatal. Severity is clamped to 1..5.
func (r *Registry) Report(zoneID models.SectorID, severity int, reportedAt time.Time) error {
	if zoneID == "" {
		r.logger.Warn().Int("severity", severity).Msg("Threat report rejected: empty zone id")
		return errors.ErrInvalidZone
	}
	if severity < 1 {
		severity = 1
	} else if severity > 5 {
		severity = 5
	}

	r.mu.Lock()
	r.records = append(r.records, models.DangerRecord{
		ZoneID:     zoneID,
		Severity:   severity,
		ReportedAt: reportedAt,
	})
	r.mu.Unlock()

	blocked := r.BlockedAt(zoneID, reportedAt)
	r.logger.Info().
		Str("zone", string(zoneID)).
		Int("severity", severity).
		Bool("blocked", blocked).
		Msg("Threat reported")

	r.publish(reportedAt)
	return nil
}

// IsBlocked reports whether a zone is currently blocked.
func (r *Registry) IsBlocked(zoneID models.SectorID) bool {
	return r.BlockedAt(zoneID, time.Now())
}

// BlockedAt reports whether a zone is blocked as of the given time.
func (r *Registry) BlockedAt(zoneID models.SectorID, now time.Time) bool {
	if !r.enabled {
		return false
	}
	return r.SeverityAt(zoneID, now) >= r.threshold
}

// CurrentBlockedSet returns the zones blocked as of now, sorted for stable
// output.
func (r *Registry) CurrentBlockedSet() []models.SectorID {
	return r.BlockedSetAt(time.Now())
}

// BlockedSetAt returns the zones blocked as of the given time.
func (r *Registry) BlockedSetAt(now time.Time) []models.SectorID {
	if !r.enabled {
		return nil
	}

	r.mu.RLock()
	max := make(map[models.SectorID]int)
	cutoff := now.Add(-r.window)
	for _, rec := range r.records {
		if rec.ReportedAt.Before(cutoff) || rec.ReportedAt.After(now) {
			continue
		}
		if rec.Severity > max[rec.ZoneID] {
			max[rec.ZoneID] = rec.Severity
		}
	}
	r.mu.RUnlock()

	var out []models.SectorID
	for zone, sev := range max {
		if sev >= r.threshold {
			out = append(out, zone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SeverityAt reduces a zone's qualifying records to the max severity within
// the rolling window. Zones below the block threshold still carry a nonzero
// severity that feeds opportunity risk scoring.
func (r *Registry) SeverityAt(zoneID models.SectorID, now time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := now.Add(-r.window)
	max := 0
	for _, rec := range r.records {
		if rec.ZoneID != zoneID {
			continue
		}
		if rec.ReportedAt.Before(cutoff) || rec.ReportedAt.After(now) {
			continue
		}
		if rec.Severity > max {
			max = rec.Severity
		}
	}
	return max
}

// Sweep prunes records outside the rolling window and republishes the block
// set if it changed. Invoked on the maintenance cadence.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if !rec.ReportedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := len(r.records) - len(kept)
	r.records = kept
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Debug().Int("removed", removed).Msg("Danger records pruned")
	}
	r.publish(now)
	return removed
}

// RecordCount returns the number of retained records.
func (r *Registry) RecordCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// publish pushes the block set to the routing layer when it changed since
// the last push.
func (r *Registry) publish(now time.Time) {
	if r.publisher == nil {
		return
	}

	set := r.BlockedSetAt(now)

	r.mu.Lock()
	changed := len(set) != len(r.lastPublished)
	if !changed {
		for _, z := range set {
			if !r.lastPublished[z] {
				changed = true
				break
			}
		}
	}
	if changed {
		r.lastPublished = make(map[models.SectorID]bool, len(set))
		for _, z := range set {
			r.lastPublished[z] = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.publisher.PublishBlockedZones(set)
		r.logger.Info().Int("zones", len(set)).Msg("Blocked zone set published")
	}
}
