package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstCommitterWins(t *testing.T) {
	l := New(zerolog.Nop())
	now := time.Now()

	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now))
	assert.False(t, l.TryReserveAt("k1", "ship-b", time.Minute, now))

	holder, ok := l.HolderAt("k1", now)
	require.True(t, ok)
	assert.Equal(t, "ship-a", holder)
}

func TestReReserveRefreshesOwnClaim(t *testing.T) {
	l := New(zerolog.Nop())
	now := time.Now()

	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now))
	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now.Add(50*time.Second)))

	// The refreshed claim outlives the original TTL.
	holder, ok := l.HolderAt("k1", now.Add(100*time.Second))
	require.True(t, ok)
	assert.Equal(t, "ship-a", holder)
}

func TestExpiryFreesKey(t *testing.T) {
	l := New(zerolog.Nop())
	now := time.Now()

	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now))
	assert.True(t, l.TryReserveAt("k1", "ship-b", time.Minute, now.Add(2*time.Minute)))
}

func TestLateReleaseDoesNotClobberNewHolder(t *testing.T) {
	l := New(zerolog.Nop())
	now := time.Now()

	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now))
	// ship-a's claim lapses; ship-b takes the key.
	require.True(t, l.TryReserveAt("k1", "ship-b", time.Minute, now.Add(2*time.Minute)))

	// ship-a's tardy release is a no-op.
	assert.False(t, l.Release("k1", "ship-a"))
	holder, ok := l.HolderAt("k1", now.Add(2*time.Minute))
	require.True(t, ok)
	assert.Equal(t, "ship-b", holder)
}

func TestReleaseAllHeldBy(t *testing.T) {
	l := New(zerolog.Nop())
	now := time.Now()

	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now))
	require.True(t, l.TryReserveAt("k2", "ship-a", time.Minute, now))
	require.True(t, l.TryReserveAt("k3", "ship-b", time.Minute, now))

	assert.Equal(t, 2, l.ReleaseAllHeldBy("ship-a"))
	assert.Equal(t, 1, l.LiveCount(now))
}

func TestSweepExpired(t *testing.T) {
	l := New(zerolog.Nop())
	now := time.Now()

	require.True(t, l.TryReserveAt("k1", "ship-a", time.Minute, now))
	require.True(t, l.TryReserveAt("k2", "ship-b", time.Hour, now))

	assert.Equal(t, 1, l.SweepExpired(now.Add(2*time.Minute)))
	assert.Equal(t, 1, l.LiveCount(now.Add(2*time.Minute)))
}

func TestEmptyKeyOrHolderRejected(t *testing.T) {
	l := New(zerolog.Nop())
	assert.False(t, l.TryReserve("", "ship-a", time.Minute))
	assert.False(t, l.TryReserve("k1", "", time.Minute))
}

// TestConcurrentAdmission hammers a single key from many goroutines; exactly
// one must win.
func TestConcurrentAdmission(t *testing.T) {
	l := New(zerolog.Nop())

	const contenders = 64
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if l.TryReserve("hot-key", fmt.Sprintf("ship-%d", id), time.Minute) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}
