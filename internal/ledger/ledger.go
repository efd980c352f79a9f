// Package ledger provides the shared reservation table that prevents two
// agents from converging on the same trade.
package ledger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"galaxy-trader/internal/models"
)

// Ledger maps opportunity keys to live reservations. TryReserve is the sole
// admission-control point: first committer wins, everyone else picks their
// next-best candidate. Expired entries are evicted lazily on lookup; the
// maintenance sweep clears the rest.
type Ledger struct {
	mu     sync.Mutex
	claims map[string]models.Reservation
	logger zerolog.Logger
}

// New creates an empty reservation ledger.
func New(logger zerolog.Logger) *Ledger {
	return &Ledger{
		claims: make(map[string]models.Reservation),
		logger: logger,
	}
}

// TryReserve atomically claims an opportunity key for holderID. It succeeds
// only if no live reservation exists for the key. A false return is an
// expected, frequent outcome under contention, not an error.
func (l *Ledger) TryReserve(key, holderID string, ttl time.Duration) bool {
	return l.TryReserveAt(key, holderID, ttl, time.Now())
}

// TryReserveAt is TryReserve with an explicit clock, used by tests and the
// deterministic tick driver.
func (l *Ledger) TryReserveAt(key, holderID string, ttl time.Duration, now time.Time) bool {
	if key == "" || holderID == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.claims[key]; ok && !cur.Expired(now) {
		if cur.HolderID == holderID {
			// Re-reserving one's own claim refreshes the expiry.
			cur.ExpiresAt = now.Add(ttl)
			l.claims[key] = cur
			return true
		}
		return false
	}

	l.claims[key] = models.Reservation{
		OpportunityKey: key,
		HolderID:       holderID,
		ExpiresAt:      now.Add(ttl),
	}
	return true
}

// Release clears a reservation only if the caller is the current holder. A
// late release after expiry and re-reservation is a no-op, so a slow agent
// cannot clobber a newer holder's claim.
func (l *Ledger) Release(key, holderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.claims[key]
	if !ok || cur.HolderID != holderID {
		return false
	}
	delete(l.claims, key)
	return true
}

// ReleaseAllHeldBy drops every reservation held by holderID. Used when an
// agent deregisters mid-flight.
func (l *Ledger) ReleaseAllHeldBy(holderID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, cur := range l.claims {
		if cur.HolderID == holderID {
			delete(l.claims, key)
			n++
		}
	}
	if n > 0 {
		l.logger.Debug().Str("holder", holderID).Int("released", n).Msg("Reservations released on deregistration")
	}
	return n
}

// Holder returns the current live holder of a key, if any.
func (l *Ledger) Holder(key string) (string, bool) {
	return l.HolderAt(key, time.Now())
}

// HolderAt returns the live holder of a key as of now, lazily evicting an
// expired entry.
func (l *Ledger) HolderAt(key string, now time.Time) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.claims[key]
	if !ok {
		return "", false
	}
	if cur.Expired(now) {
		delete(l.claims, key)
		return "", false
	}
	return cur.HolderID, true
}

// SweepExpired evicts stale entries. Runs on the maintenance cadence as a
// backstop for keys nobody looks up anymore.
func (l *Ledger) SweepExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, cur := range l.claims {
		if cur.Expired(now) {
			delete(l.claims, key)
			n++
		}
	}
	if n > 0 {
		l.logger.Debug().Int("evicted", n).Msg("Expired reservations swept")
	}
	return n
}

// LiveCount returns the number of live reservations as of now.
func (l *Ledger) LiveCount(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, cur := range l.claims {
		if !cur.Expired(now) {
			n++
		}
	}
	return n
}

// Snapshot returns the live reservations as of now for the status API.
func (l *Ledger) Snapshot(now time.Time) []models.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Reservation, 0, len(l.claims))
	for _, cur := range l.claims {
		if !cur.Expired(now) {
			out = append(out, cur)
		}
	}
	return out
}
