package universe

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"galaxy-trader/internal/errors"
	"galaxy-trader/internal/models"
)

// SimUniverse implements Universe in memory for local runs and tests. Prices
// drift on each executed leg so repeated runs do not converge on a single
// route forever.
type SimUniverse struct {
	mu       sync.RWMutex
	adjacent map[models.SectorID][]models.SectorID
	quotes   map[models.SectorID]map[models.WareID]*Quote
	tiers    map[models.WareID]models.WareTier
	illegal  map[models.WareID]bool
	balance  float64
	rng      *rand.Rand
}

// NewSimUniverse creates an empty simulated universe with the given starting
// balance.
func NewSimUniverse(initialBalance float64, seed int64) *SimUniverse {
	return &SimUniverse{
		adjacent: make(map[models.SectorID][]models.SectorID),
		quotes:   make(map[models.SectorID]map[models.WareID]*Quote),
		tiers:    make(map[models.WareID]models.WareTier),
		illegal:  make(map[models.WareID]bool),
		balance:  initialBalance,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// AddSector registers a sector with its gate connections. Connections are
// bidirectional.
func (u *SimUniverse) AddSector(id models.SectorID, neighbors ...models.SectorID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.adjacent[id]; !ok {
		u.adjacent[id] = nil
	}
	for _, n := range neighbors {
		u.adjacent[id] = append(u.adjacent[id], n)
		u.adjacent[n] = append(u.adjacent[n], id)
	}
}

// SetQuote installs or replaces the market state for a ware at a sector.
func (u *SimUniverse) SetQuote(q Quote) {
	u.mu.Lock()
	defer u.mu.Unlock()
	m, ok := u.quotes[q.Sector]
	if !ok {
		m = make(map[models.WareID]*Quote)
		u.quotes[q.Sector] = m
	}
	cp := q
	m[q.Ware] = &cp
}

// SetWareTier sets the capability tier for a ware.
func (u *SimUniverse) SetWareTier(ware models.WareID, tier models.WareTier) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tiers[ware] = tier
}

// SetIllegal marks a ware as contraband.
func (u *SimUniverse) SetIllegal(ware models.WareID, illegal bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.illegal[ware] = illegal
}

// Hops returns the BFS jump distance between two sectors.
func (u *SimUniverse) Hops(ctx context.Context, from, to models.SectorID) (int, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if _, ok := u.adjacent[from]; !ok {
		return 0, errors.Wrapf(errors.ErrSectorNotFound, "sector %s", from)
	}
	if _, ok := u.adjacent[to]; !ok {
		return 0, errors.Wrapf(errors.ErrSectorNotFound, "sector %s", to)
	}
	if from == to {
		return 0, nil
	}

	visited := map[models.SectorID]bool{from: true}
	frontier := []models.SectorID{from}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []models.SectorID
		for _, s := range frontier {
			for _, n := range u.adjacent[s] {
				if visited[n] {
					continue
				}
				if n == to {
					return depth, nil
				}
				visited[n] = true
				next = append(next, n)
			}
		}
		frontier = next
	}
	return 0, errors.Wrapf(errors.ErrUnreachable, "%s -> %s", from, to)
}

// Reachable returns all sectors within maxHops of origin.
func (u *SimUniverse) Reachable(ctx context.Context, origin models.SectorID, maxHops int) ([]models.SectorID, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if _, ok := u.adjacent[origin]; !ok {
		return nil, errors.Wrapf(errors.ErrSectorNotFound, "sector %s", origin)
	}

	var out []models.SectorID
	visited := map[models.SectorID]bool{origin: true}
	frontier := []models.SectorID{origin}
	for depth := 1; depth <= maxHops && len(frontier) > 0; depth++ {
		var next []models.SectorID
		for _, s := range frontier {
			for _, n := range u.adjacent[s] {
				if visited[n] {
					continue
				}
				visited[n] = true
				out = append(out, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return out, nil
}

// Sectors returns every known sector.
func (u *SimUniverse) Sectors(ctx context.Context) ([]models.SectorID, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]models.SectorID, 0, len(u.adjacent))
	for s := range u.adjacent {
		out = append(out, s)
	}
	return out, nil
}

// Quote returns the market state for a ware at a sector.
func (u *SimUniverse) Quote(ctx context.Context, sector models.SectorID, ware models.WareID) (*Quote, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	m, ok := u.quotes[sector]
	if !ok {
		return nil, errors.Wrapf(errors.ErrSectorNotFound, "sector %s", sector)
	}
	q, ok := m[ware]
	if !ok {
		return nil, errors.Wrapf(errors.ErrWareNotFound, "%s at %s", ware, sector)
	}
	cp := *q
	return &cp, nil
}

// Wares returns the wares traded at a sector.
func (u *SimUniverse) Wares(ctx context.Context, sector models.SectorID) ([]models.WareID, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	m, ok := u.quotes[sector]
	if !ok {
		return nil, errors.Wrapf(errors.ErrSectorNotFound, "sector %s", sector)
	}
	out := make([]models.WareID, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	return out, nil
}

// WareTier returns the capability tier of a ware. Unknown wares default to
// the basic tier.
func (u *SimUniverse) WareTier(ware models.WareID) models.WareTier {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if t, ok := u.tiers[ware]; ok {
		return t
	}
	return models.TierBasic
}

// IsIllegal reports whether a ware is contraband.
func (u *SimUniverse) IsIllegal(ware models.WareID) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.illegal[ware]
}

// Execute settles a buy or sell leg against the simulated market. Buying
// consumes supply and nudges the buy price up; selling consumes demand and
// nudges the sell price down.
func (u *SimUniverse) Execute(ctx context.Context, sector models.SectorID, ware models.WareID, quantity int, buy bool) (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	m, ok := u.quotes[sector]
	if !ok {
		return 0, errors.Wrapf(errors.ErrSectorNotFound, "sector %s", sector)
	}
	q, ok := m[ware]
	if !ok {
		return 0, errors.Wrapf(errors.ErrWareNotFound, "%s at %s", ware, sector)
	}

	if buy {
		if q.Supply < quantity {
			return 0, fmt.Errorf("insufficient supply for %s at %s: have %d, want %d", ware, sector, q.Supply, quantity)
		}
		price := q.BuyPrice
		q.Supply -= quantity
		q.BuyPrice *= 1 + 0.02*float64(quantity)/float64(q.Supply+quantity)
		return price, nil
	}

	if q.Demand < quantity {
		return 0, fmt.Errorf("insufficient demand for %s at %s: have %d, want %d", ware, sector, q.Demand, quantity)
	}
	price := q.SellPrice
	q.Demand -= quantity
	q.SellPrice *= 1 - 0.02*float64(quantity)/float64(q.Demand+quantity)
	return price, nil
}

// Balance returns the shared wallet balance.
func (u *SimUniverse) Balance(ctx context.Context) (float64, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.balance, nil
}

// Debit removes funds from the shared wallet.
func (u *SimUniverse) Debit(ctx context.Context, amount float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.balance < amount {
		return errors.Wrapf(errors.ErrInsufficientFunds, "balance %.2f, need %.2f", u.balance, amount)
	}
	u.balance -= amount
	return nil
}

// Credit adds funds to the shared wallet.
func (u *SimUniverse) Credit(ctx context.Context, amount float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.balance += amount
	return nil
}
