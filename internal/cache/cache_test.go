package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galaxy-trader/internal/models"
)

type stubBlocks struct {
	blocked map[models.SectorID]bool
}

func (s *stubBlocks) BlockedAt(zoneID models.SectorID, _ time.Time) bool {
	return s.blocked[zoneID]
}

func opp(origin, dest models.SectorID, ware models.WareID, profit, score float64, ttl time.Duration, at time.Time) models.Opportunity {
	return models.Opportunity{
		Origin:       origin,
		Destination:  dest,
		Ware:         ware,
		BuyPrice:     10,
		SellPrice:    20,
		Quantity:     100,
		Profit:       profit,
		Score:        score,
		TTL:          ttl,
		DiscoveredAt: at,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := New(100, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	stored := c.Store(opp("a", "b", "energy-cells", 5000, 4000, time.Minute, t0))
	require.True(t, stored)

	// Before TTL elapses the entry is served.
	got, ok := c.QueryBestAt(Filter{}, nil, t0.Add(30*time.Second))
	require.True(t, ok)
	assert.Equal(t, models.WareID("energy-cells"), got.Ware)

	// After TTL it never comes back.
	_, ok = c.QueryBestAt(Filter{}, nil, t0.Add(61*time.Second))
	assert.False(t, ok)
}

func TestQueryBestTieBreaking(t *testing.T) {
	c := New(100, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	low := opp("a", "b", "w1", 1000, 500, time.Hour, t0)
	high := opp("a", "c", "w2", 1000, 900, time.Hour, t0)
	c.Store(low)
	c.Store(high)

	got, ok := c.QueryBestAt(Filter{}, nil, t0)
	require.True(t, ok)
	assert.Equal(t, models.WareID("w2"), got.Ware, "higher score wins")

	// Equal scores: lower travel cost wins.
	near := opp("a", "d", "w3", 1000, 900, time.Hour, t0)
	near.TravelCost = 1
	far := opp("a", "e", "w4", 1000, 900, time.Hour, t0)
	far.TravelCost = 5

	c2 := New(100, 0, time.Hour, nil, zerolog.Nop())
	c2.Store(far)
	c2.Store(near)
	got, ok = c2.QueryBestAt(Filter{}, nil, t0)
	require.True(t, ok)
	assert.Equal(t, models.WareID("w3"), got.Ware)
}

func TestBlockedDestinationFilteredAtQueryTime(t *testing.T) {
	blocks := &stubBlocks{blocked: map[models.SectorID]bool{}}
	c := New(100, 0, time.Hour, blocks, zerolog.Nop())
	t0 := time.Now()

	c.Store(opp("a", "pirate-alley", "w1", 2000, 1500, time.Hour, t0))

	got, ok := c.QueryBestAt(Filter{AvoidBlocked: true}, nil, t0)
	require.True(t, ok)
	assert.Equal(t, models.SectorID("pirate-alley"), got.Destination)

	// The zone becomes blocked after storage; the unexpired entry is
	// excluded at query time.
	blocks.blocked["pirate-alley"] = true
	_, ok = c.QueryBestAt(Filter{AvoidBlocked: true}, nil, t0)
	assert.False(t, ok)

	// With avoidance off the entry is still served.
	_, ok = c.QueryBestAt(Filter{AvoidBlocked: false}, nil, t0)
	assert.True(t, ok)
}

func TestMinProfitToCache(t *testing.T) {
	c := New(100, 10000, time.Hour, nil, zerolog.Nop())
	assert.False(t, c.Store(opp("a", "b", "w1", 500, 400, time.Hour, time.Now())))
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Store(opp("a", "b", "w2", 20000, 15000, time.Hour, time.Now())))
}

func TestExcludedKeysAndLegality(t *testing.T) {
	c := New(100, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	reserved := opp("a", "b", "w1", 2000, 1800, time.Hour, t0)
	contraband := opp("a", "c", "spacefuel", 2000, 1900, time.Hour, t0)
	c.Store(reserved)
	c.Store(contraband)

	f := Filter{
		ExcludedKeys: map[string]bool{reserved.Key(): true},
		IllegalWare:  func(w models.WareID) bool { return w == "spacefuel" },
	}
	_, ok := c.QueryBestAt(f, nil, t0)
	assert.False(t, ok, "both entries filtered: one excluded, one illegal")

	f.AllowIllegal = true
	got, ok := c.QueryBestAt(f, nil, t0)
	require.True(t, ok)
	assert.Equal(t, models.WareID("spacefuel"), got.Ware)
}

func TestRangeFilter(t *testing.T) {
	c := New(100, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	far := opp("x", "y", "w1", 2000, 1800, time.Hour, t0)
	far.Hops = 4
	c.Store(far)

	// The asking agent sits 3 jumps from the entry origin; the trade leg
	// itself is 2 jumps.
	hops := func(from, to models.SectorID) (int, bool) {
		if from == "home" && to == "x" {
			return 3, true
		}
		if from == "x" && to == "y" {
			return 2, true
		}
		return 0, false
	}

	_, ok := c.QueryBestAt(Filter{Origin: "home", MaxHops: 4}, hops, t0)
	assert.False(t, ok, "3 approach + 2 leg exceeds range 4")

	_, ok = c.QueryBestAt(Filter{Origin: "home", MaxHops: 5}, hops, t0)
	assert.True(t, ok)
}

func TestRangeFilterIgnoresDiscovererApproach(t *testing.T) {
	c := New(100, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	// Discovered by an agent 3 jumps out, so the stored Hops (4) dwarfs the
	// actual 1-jump trade leg.
	e := opp("b", "c", "w1", 2000, 1800, time.Hour, t0)
	e.Hops = 4
	c.Store(e)

	hops := func(from, to models.SectorID) (int, bool) {
		if from == "a" && to == "b" {
			return 2, true
		}
		if from == "b" && to == "c" {
			return 1, true
		}
		return 0, false
	}

	got, ok := c.QueryBestAt(Filter{Origin: "a", MaxHops: 3}, hops, t0)
	require.True(t, ok, "2 approach + 1 leg fits range 3 regardless of the stored trip length")
	assert.Equal(t, models.WareID("w1"), got.Ware)
}

func TestSweepExpiredCompacts(t *testing.T) {
	c := New(100, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	c.Store(opp("a", "b", "w1", 2000, 1800, time.Minute, t0))
	c.Store(opp("a", "c", "w2", 2000, 1800, time.Hour, t0))
	require.Equal(t, 2, c.Len())

	dropped := c.SweepExpired(t0.Add(2 * time.Minute))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, c.Len())
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	c := New(2, 0, time.Hour, nil, zerolog.Nop())
	t0 := time.Now()

	c.Store(opp("a", "b", "w1", 1000, 900, time.Hour, t0))
	c.Store(opp("a", "c", "w2", 1000, 901, time.Hour, t0))
	c.Store(opp("a", "d", "w3", 1000, 902, time.Hour, t0))

	assert.Equal(t, 2, c.Len())
	snap := c.Snapshot()
	assert.Equal(t, models.WareID("w2"), snap[0].Ware)
	assert.Equal(t, models.WareID("w3"), snap[1].Ware)
}
