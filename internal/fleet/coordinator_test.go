package fleet

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusionsCoverSquadmatesOnly(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())

	c.Register("wing-1", "cmdr-a")
	c.Register("wing-2", "cmdr-a")
	c.Register("lone-1", "cmdr-b")

	c.SetClaim("wing-1", "key-alpha")
	c.SetClaim("lone-1", "key-beta")

	ex := c.Exclusions("wing-2")
	assert.True(t, ex["key-alpha"], "squadmate claim must be excluded")
	assert.False(t, ex["key-beta"], "other commander's claim is not excluded")

	// An agent does not exclude its own claim.
	ex = c.Exclusions("wing-1")
	assert.False(t, ex["key-alpha"])
}

func TestClearClaim(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	c.Register("wing-1", "cmdr-a")
	c.Register("wing-2", "cmdr-a")

	c.SetClaim("wing-1", "key-alpha")
	require.True(t, c.Exclusions("wing-2")["key-alpha"])

	c.SetClaim("wing-1", "")
	assert.Empty(t, c.Exclusions("wing-2"))
}

func TestCommanderlessAgentHasNoExclusions(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	c.Register("drifter", "")
	c.SetClaim("drifter", "key-alpha")

	assert.Empty(t, c.Exclusions("drifter"))
	_, registered := c.CommanderOf("drifter")
	assert.True(t, registered, "commanderless agent is still registered")
}

func TestDeregisterRemovesBookkeeping(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	c.Register("wing-1", "cmdr-a")
	c.Register("wing-2", "cmdr-a")
	c.SetClaim("wing-1", "key-alpha")

	c.Deregister("wing-1")

	assert.Empty(t, c.Exclusions("wing-2"))
	_, registered := c.CommanderOf("wing-1")
	assert.False(t, registered)
	assert.Equal(t, 1, c.SquadSize("cmdr-a"))
}

func TestPromotionOnCommanderLoss(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	c.Register("wing-1", "cmdr-a")
	c.Register("wing-2", "cmdr-a")
	c.Register("wing-3", "cmdr-a")
	c.SetClaim("wing-2", "key-alpha")

	promoted := c.OnCommanderLost("cmdr-a")
	assert.Equal(t, "wing-1", promoted)

	// The promoted agent rides commanderless; the rest rebind under it.
	cmdr, ok := c.CommanderOf("wing-1")
	require.True(t, ok)
	assert.Equal(t, "", cmdr)
	cmdr, _ = c.CommanderOf("wing-2")
	assert.Equal(t, "wing-1", cmdr)

	// Claims survive the reshuffle.
	assert.True(t, c.Exclusions("wing-3")["key-alpha"])
}

func TestCommanderSharesExclusionsWithSquad(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	c.Register("cmdr-a", "")
	c.Register("wing-1", "cmdr-a")
	c.Register("wing-2", "cmdr-a")

	c.SetClaim("cmdr-a", "key-lead")
	c.SetClaim("wing-1", "key-alpha")

	// The pre-filter works both ways across the lead/subordinate boundary.
	assert.True(t, c.Exclusions("cmdr-a")["key-alpha"], "lead must see subordinate claims")
	assert.True(t, c.Exclusions("wing-2")["key-lead"], "subordinates must see the lead's claim")
	assert.False(t, c.Exclusions("cmdr-a")["key-lead"], "own claim is never excluded")
}

func TestPromotedCommanderSharesExclusions(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	c.Register("wing-1", "cmdr-a")
	c.Register("wing-2", "cmdr-a")
	c.SetClaim("wing-2", "key-alpha")

	promoted := c.OnCommanderLost("cmdr-a")
	require.Equal(t, "wing-1", promoted)
	c.SetClaim("wing-1", "key-lead")

	assert.True(t, c.Exclusions("wing-1")["key-alpha"], "promoted lead still shares its squad's claims")
	assert.True(t, c.Exclusions("wing-2")["key-lead"], "subordinates see the promoted lead's claim")
}

func TestCommanderLossWithNoSquad(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	assert.Equal(t, "", c.OnCommanderLost("ghost"))
}
