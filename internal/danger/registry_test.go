package danger

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galaxy-trader/internal/errors"
	"galaxy-trader/internal/models"
)

type capturePublisher struct {
	mu    sync.Mutex
	calls [][]models.SectorID
}

func (p *capturePublisher) PublishBlockedZones(zones []models.SectorID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]models.SectorID, len(zones))
	copy(cp, zones)
	p.calls = append(p.calls, cp)
}

func (p *capturePublisher) last() []models.SectorID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func newTestRegistry(pub *capturePublisher) *Registry {
	if pub == nil {
		return NewRegistry(3, 20*time.Minute, true, nil, zerolog.Nop())
	}
	return NewRegistry(3, 20*time.Minute, true, pub, zerolog.Nop())
}

func TestReportRejectsEmptyZone(t *testing.T) {
	r := newTestRegistry(nil)
	err := r.Report("", 5, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidZone)
	assert.Equal(t, 0, r.RecordCount())
}

func TestBlockedAboveThreshold(t *testing.T) {
	r := newTestRegistry(nil)
	t0 := time.Now()

	require.NoError(t, r.Report("argon-prime", 2, t0))
	assert.False(t, r.BlockedAt("argon-prime", t0.Add(time.Second)), "severity below threshold must not block")

	require.NoError(t, r.Report("argon-prime", 3, t0))
	assert.True(t, r.BlockedAt("argon-prime", t0.Add(time.Second)))
}

func TestSelfHealing(t *testing.T) {
	r := newTestRegistry(nil)
	t0 := time.Now()

	require.NoError(t, r.Report("hatikvahs-choice", 5, t0))
	assert.True(t, r.BlockedAt("hatikvahs-choice", t0.Add(time.Second)))

	// Unblocks with no explicit clear once the window fully elapses.
	after := t0.Add(20*time.Minute + time.Second)
	assert.False(t, r.BlockedAt("hatikvahs-choice", after))
	assert.Empty(t, r.BlockedSetAt(after))
}

func TestMaxSeverityWithinWindow(t *testing.T) {
	r := newTestRegistry(nil)
	t0 := time.Now()

	require.NoError(t, r.Report("silent-witness", 5, t0))
	require.NoError(t, r.Report("silent-witness", 1, t0.Add(5*time.Minute)))

	// The max-of-window reduction keeps the zone blocked while the severe
	// report still qualifies, even though a milder one came later.
	assert.True(t, r.BlockedAt("silent-witness", t0.Add(10*time.Minute)))

	// Once only the mild report remains in the window, the zone unblocks.
	assert.False(t, r.BlockedAt("silent-witness", t0.Add(21*time.Minute)))
}

func TestDisabledRegistryNeverBlocks(t *testing.T) {
	r := NewRegistry(3, 20*time.Minute, false, nil, zerolog.Nop())
	t0 := time.Now()
	require.NoError(t, r.Report("pirate-alley", 5, t0))
	assert.False(t, r.BlockedAt("pirate-alley", t0.Add(time.Second)))
	assert.Empty(t, r.BlockedSetAt(t0.Add(time.Second)))
}

func TestSweepPrunesAndRepublishes(t *testing.T) {
	pub := &capturePublisher{}
	r := newTestRegistry(pub)
	t0 := time.Now()

	require.NoError(t, r.Report("zone-a", 5, t0))
	require.NoError(t, r.Report("zone-b", 4, t0))
	assert.ElementsMatch(t, []models.SectorID{"zone-a", "zone-b"}, pub.last())

	removed := r.Sweep(t0.Add(25 * time.Minute))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, r.RecordCount())
	assert.Empty(t, pub.last())
}

func TestSeverityClamped(t *testing.T) {
	r := newTestRegistry(nil)
	t0 := time.Now()

	require.NoError(t, r.Report("fringe", 99, t0))
	assert.True(t, r.BlockedAt("fringe", t0.Add(time.Second)))

	require.NoError(t, r.Report("core", -3, t0))
	assert.False(t, r.BlockedAt("core", t0.Add(time.Second)))
}
