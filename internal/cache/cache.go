// Package cache provides the flat opportunity cache: an append-only list of
// previously discovered profitable trades, read-filtered in linear time and
// compacted on a maintenance cadence.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"galaxy-trader/internal/models"
)

// BlockChecker answers whether a zone is currently excluded. Block status is
// evaluated at query time, never at store time, so entries cached before a
// threat report are still filtered out.
type BlockChecker interface {
	BlockedAt(zoneID models.SectorID, now time.Time) bool
}

// Filter narrows a cache query to what the asking agent may actually fly.
type Filter struct {
	Origin       models.SectorID
	MaxHops      int
	MinProfit    float64
	MinROI       float64
	MaxRisk      float64
	MaxWareTier  models.WareTier
	AllowIllegal bool
	AvoidBlocked bool
	// ExcludedKeys holds opportunity keys already claimed by squadmates.
	ExcludedKeys map[string]bool
	// WareTierOf and IllegalWare classify wares for legality filtering. Nil
	// functions skip the corresponding check.
	WareTierOf  func(models.WareID) models.WareTier
	IllegalWare func(models.WareID) bool
}

// Cache is the shared opportunity store. Entries are write-once; an agent
// that wants fresh pricing re-discovers rather than mutates. The flat slice
// plus periodic rebuild deliberately replaces a keyed structure (see the
// platform note in the project design log).
type Cache struct {
	mu         sync.RWMutex
	entries    []models.Opportunity
	maxEntries int
	minProfit  float64
	defaultTTL time.Duration
	blocks     BlockChecker
	logger     zerolog.Logger
}

// New creates an opportunity cache. blocks may be nil when blacklist
// filtering is handled elsewhere.
func New(maxEntries int, minProfitToCache float64, defaultTTL time.Duration, blocks BlockChecker, logger zerolog.Logger) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		minProfit:  minProfitToCache,
		defaultTTL: defaultTTL,
		blocks:     blocks,
		logger:     logger,
	}
}

// Store appends an opportunity. Entries below the configured caching profit
// floor are dropped silently; callers treat that as normal.
func (c *Cache) Store(opp models.Opportunity) bool {
	if opp.Profit < c.minProfit {
		return false
	}
	if opp.DiscoveredAt.IsZero() {
		opp.DiscoveredAt = time.Now()
	}
	if opp.TTL <= 0 {
		opp.TTL = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, opp)
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		// Oldest entries fall off the front.
		c.entries = c.entries[len(c.entries)-c.maxEntries:]
	}
	return true
}

// QueryBest returns the best matching cached opportunity as of now.
func (c *Cache) QueryBest(f Filter, hops func(from, to models.SectorID) (int, bool)) (models.Opportunity, bool) {
	return c.QueryBestAt(f, hops, time.Now())
}

// QueryBestAt performs a single linear scan over the cache, applying
// expiry, range, profitability, blacklist, and ware-legality filters. Ties
// break on highest score, then lowest travel cost.
func (c *Cache) QueryBestAt(f Filter, hops func(from, to models.SectorID) (int, bool), now time.Time) (models.Opportunity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best models.Opportunity
	found := false

	for _, e := range c.entries {
		if e.Expired(now) {
			continue
		}
		if e.Profit < f.MinProfit || e.ROI() < f.MinROI {
			continue
		}
		if f.MaxRisk > 0 && e.RiskScore > f.MaxRisk {
			continue
		}
		if f.ExcludedKeys != nil && f.ExcludedKeys[e.Key()] {
			continue
		}
		if f.AvoidBlocked && c.blocks != nil {
			if c.blocks.BlockedAt(e.Destination, now) || c.blocks.BlockedAt(e.Origin, now) {
				continue
			}
		}
		if f.WareTierOf != nil && f.MaxWareTier > 0 && f.WareTierOf(e.Ware) > f.MaxWareTier {
			continue
		}
		if f.IllegalWare != nil && !f.AllowIllegal && f.IllegalWare(e.Ware) {
			continue
		}
		if f.MaxHops > 0 && hops != nil {
			// e.Hops includes the discovering agent's approach leg, so the
			// trip is recomputed relative to the asking agent.
			approach, ok := hops(f.Origin, e.Origin)
			if !ok {
				continue
			}
			leg, ok := hops(e.Origin, e.Destination)
			if !ok {
				continue
			}
			if approach+leg > f.MaxHops {
				continue
			}
		}

		if !found || better(e, best) {
			best = e
			found = true
		}
	}

	return best, found
}

func better(a, b models.Opportunity) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.TravelCost < b.TravelCost
}

// SweepExpired rebuilds the list omitting expired and no-longer-profitable
// entries. Runs on the maintenance cadence, not per query, to bound query
// cost. Returns the number of entries dropped.
func (c *Cache) SweepExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rebuilt := make([]models.Opportunity, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Expired(now) || e.Profit < c.minProfit {
			continue
		}
		rebuilt = append(rebuilt, e)
	}
	dropped := len(c.entries) - len(rebuilt)
	c.entries = rebuilt

	if dropped > 0 {
		c.logger.Debug().Int("dropped", dropped).Int("kept", len(rebuilt)).Msg("Opportunity cache compacted")
	}
	return dropped
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of the current entries for the status API.
func (c *Cache) Snapshot() []models.Opportunity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Opportunity, len(c.entries))
	copy(out, c.entries)
	return out
}
