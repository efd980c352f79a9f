// Package fleet coordinates agents sharing a commander so squadmates do not
// re-evaluate or claim each other's opportunities.
package fleet

import (
	"sync"

	"github.com/rs/zerolog"
)

// Coordinator groups agents by commander and maintains per-commander
// exclusion sets of opportunity keys. The exclusion set is a cheap
// pre-filter; the reservation ledger remains the authoritative check that
// closes the race between "I saw it was free" and "I reserve it".
type Coordinator struct {
	mu sync.RWMutex
	// agent -> commander ("" while commanderless)
	commanderOf map[string]string
	// commander -> member agents
	members map[string]map[string]bool
	// agent -> opportunity key it currently holds
	claimOf map[string]string
	logger  zerolog.Logger
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		commanderOf: make(map[string]string),
		members:     make(map[string]map[string]bool),
		claimOf:     make(map[string]string),
		logger:      logger,
	}
}

// Register adds an agent under a commander. An empty commanderID is valid:
// the agent is tracked but shares exclusions with nobody until assigned.
func (c *Coordinator) Register(agentID, commanderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commanderOf[agentID] = commanderID
	if commanderID != "" {
		if c.members[commanderID] == nil {
			c.members[commanderID] = make(map[string]bool)
		}
		c.members[commanderID][agentID] = true
	}
}

// Deregister removes an agent and its claim bookkeeping.
func (c *Coordinator) Deregister(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(agentID)
	delete(c.commanderOf, agentID)
	delete(c.claimOf, agentID)
}

func (c *Coordinator) removeLocked(agentID string) {
	if cmdr, ok := c.commanderOf[agentID]; ok && cmdr != "" {
		delete(c.members[cmdr], agentID)
		if len(c.members[cmdr]) == 0 {
			delete(c.members, cmdr)
		}
	}
}

// SetClaim records the opportunity key an agent currently holds. An empty
// key clears the claim.
func (c *Coordinator) SetClaim(agentID, opportunityKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.commanderOf[agentID]; !ok {
		return
	}
	if opportunityKey == "" {
		delete(c.claimOf, agentID)
		return
	}
	c.claimOf[agentID] = opportunityKey
}

// Exclusions returns the opportunity keys currently claimed by the agent's
// squadmates. The commander counts as a squad member both ways: subordinates
// see its claim and it sees theirs. The agent's own claim is not excluded so
// it can refresh it.
func (c *Coordinator) Exclusions(agentID string) map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]bool)
	cmdr, ok := c.commanderOf[agentID]
	if !ok {
		return out
	}
	if cmdr == "" {
		// Commanderless agents lead their own group (possibly empty).
		cmdr = agentID
	}
	for member := range c.members[cmdr] {
		if member == agentID {
			continue
		}
		if key, held := c.claimOf[member]; held {
			out[key] = true
		}
	}
	if cmdr != agentID {
		if key, held := c.claimOf[cmdr]; held {
			out[key] = true
		}
	}
	return out
}

// OnCommanderLost clears the commander binding of its subordinates and, if
// any remain, promotes the first registered subordinate to commander. The
// commanderless window in between is legal: agents keep their assignments
// and claims and are not treated as deregistered.
func (c *Coordinator) OnCommanderLost(commanderID string) (promoted string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	squad := c.members[commanderID]
	if len(squad) == 0 {
		delete(c.members, commanderID)
		return ""
	}

	// Deterministic promotion: lexicographically first member.
	for member := range squad {
		if promoted == "" || member < promoted {
			promoted = member
		}
	}

	delete(c.members, commanderID)
	rebound := make(map[string]bool)
	for member := range squad {
		if member == promoted {
			c.commanderOf[member] = ""
			continue
		}
		c.commanderOf[member] = promoted
		rebound[member] = true
	}
	if len(rebound) > 0 {
		c.members[promoted] = rebound
	}

	c.logger.Info().
		Str("lost", commanderID).
		Str("promoted", promoted).
		Int("squad", len(squad)).
		Msg("Commander lost, subordinate promoted")
	return promoted
}

// CommanderOf returns the agent's current commander and whether the agent is
// registered at all.
func (c *Coordinator) CommanderOf(agentID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmdr, ok := c.commanderOf[agentID]
	return cmdr, ok
}

// SquadSize returns the number of agents under a commander.
func (c *Coordinator) SquadSize(commanderID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members[commanderID])
}
