// Package evaluator generates and scores candidate trade opportunities under
// a bounded per-tick work budget, falling back to the opportunity cache when
// a live search comes up empty.
package evaluator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"galaxy-trader/internal/cache"
	"galaxy-trader/internal/config"
	"galaxy-trader/internal/danger"
	"galaxy-trader/internal/models"
	"galaxy-trader/internal/universe"
)

// Request describes one evaluation pass for an agent. The caller owns the
// Cursor and passes the same instance back on the next tick to resume an
// enumeration the budget cut short.
type Request struct {
	AgentID       string
	Origin        models.SectorID
	Caps          models.Capabilities
	Excluded      map[string]bool // opportunity keys claimed by squadmates
	Cargo         *models.CargoLot
	CargoCapacity int
	Budget        int // 0 uses the configured default
	Cursor        *Cursor
	Now           time.Time
}

// Cursor carries enumeration progress across ticks: the candidate sector
// snapshot, loop indices, and the best candidate found so far. A cooperative
// yield, not a blocking wait.
type Cursor struct {
	started bool
	buys    []models.SectorID
	sells   []models.SectorID
	wares   []models.WareID // wares at buys[bi], fetched lazily
	bi, si, wi int
	best    models.Opportunity
	found   bool
}

// Reset drops all carried progress.
func (c *Cursor) Reset() {
	*c = Cursor{}
}

// InProgress reports whether a suspended enumeration is pending.
func (c *Cursor) InProgress() bool {
	return c.started
}

// Evaluator scores candidate trades. It only reads shared structures and
// never blocks other agents during scoring.
type Evaluator struct {
	uni    universe.Universe
	cache  *cache.Cache
	danger *danger.Registry
	cfg    config.TradingConfig
	logger zerolog.Logger
}

// New creates an evaluator.
func New(uni universe.Universe, oc *cache.Cache, reg *danger.Registry, cfg config.TradingConfig, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		uni:    uni,
		cache:  oc,
		danger: reg,
		cfg:    cfg,
		logger: logger,
	}
}

// FindBest returns the best opportunity the agent may fly, or false when
// nothing qualifies yet. A false return with req.Cursor.InProgress() true
// means the budget ran out mid-enumeration and the search resumes next
// tick; a false return with a reset cursor is a genuine empty result the
// caller handles with a backoff. Neither is an error.
func (e *Evaluator) FindBest(ctx context.Context, req *Request) (models.Opportunity, bool) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	if req.Cursor == nil {
		req.Cursor = &Cursor{}
	}
	budget := req.Budget
	if budget <= 0 {
		budget = e.cfg.WorkBudget
	}

	// A loaded agent matches sell-side first; only when no buyer exists in
	// range does a fresh buy+sell search run.
	if req.Cargo != nil && req.Cargo.Quantity > 0 {
		if opp, ok := e.bestSellFor(ctx, req); ok {
			req.Cursor.Reset()
			return opp, true
		}
	}

	opp, ok, exhausted := e.liveSearch(ctx, req, budget)
	if ok {
		req.Cursor.Reset()
		return opp, true
	}
	if exhausted {
		// Budget ran out with nothing above threshold yet; resume later.
		return models.Opportunity{}, false
	}

	// Enumeration completed empty: serve from cache.
	req.Cursor.Reset()
	return e.queryCache(ctx, req)
}

// liveSearch walks (buy sector, sell sector, ware) triples from the cursor
// position, spending one budget unit per scored candidate. Returns
// exhausted=true when it stopped on budget rather than completing.
func (e *Evaluator) liveSearch(ctx context.Context, req *Request, budget int) (models.Opportunity, bool, bool) {
	cur := req.Cursor
	if !cur.started {
		if !e.seedCursor(ctx, req) {
			return models.Opportunity{}, false, false
		}
	}

	spent := 0
	for cur.bi < len(cur.buys) {
		buy := cur.buys[cur.bi]

		if cur.wares == nil {
			wares, err := e.uni.Wares(ctx, buy)
			if err != nil {
				e.logger.Debug().Err(err).Str("sector", string(buy)).Msg("Ware listing failed, sector skipped")
				e.advanceBuy(cur)
				continue
			}
			cur.wares = e.filterWares(wares, req.Caps)
		}

		for cur.si < len(cur.sells) {
			sell := cur.sells[cur.si]
			if sell == buy {
				cur.si++
				cur.wi = 0
				continue
			}

			for cur.wi < len(cur.wares) {
				if spent >= budget {
					// Out of budget: hand back the best so far when it
					// already clears thresholds, otherwise resume next tick.
					if cur.found && e.clearsThresholds(cur.best, req.Caps) {
						return cur.best, true, false
					}
					return models.Opportunity{}, false, true
				}
				ware := cur.wares[cur.wi]
				cur.wi++
				spent++

				cand, ok := e.scoreCandidate(ctx, req, buy, sell, ware)
				if !ok {
					continue
				}
				// The cache applies its own profit floor on store.
				e.cache.Store(cand)
				if !cur.found || betterCandidate(cand, cur.best) {
					cur.best = cand
					cur.found = true
				}
			}
			cur.si++
			cur.wi = 0
		}
		e.advanceBuy(cur)
	}

	// Enumeration complete.
	if cur.found && e.clearsThresholds(cur.best, req.Caps) {
		return cur.best, true, false
	}
	return models.Opportunity{}, false, false
}

func (e *Evaluator) advanceBuy(cur *Cursor) {
	cur.bi++
	cur.si = 0
	cur.wi = 0
	cur.wares = nil
}

// seedCursor snapshots the candidate sector lists for a fresh enumeration.
func (e *Evaluator) seedCursor(ctx context.Context, req *Request) bool {
	reachable, err := e.uni.Reachable(ctx, req.Origin, req.Caps.MaxJumpRange)
	if err != nil {
		e.logger.Debug().Err(err).Str("origin", string(req.Origin)).Msg("Reachability query failed")
		return false
	}

	candidates := make([]models.SectorID, 0, len(reachable)+1)
	candidates = append(candidates, req.Origin)
	for _, s := range reachable {
		if req.Caps.AvoidBlacklisted && e.danger.BlockedAt(s, req.Now) {
			continue
		}
		candidates = append(candidates, s)
	}
	if req.Caps.AvoidBlacklisted && e.danger.BlockedAt(req.Origin, req.Now) {
		// The agent can still buy where it sits, but never sell into a
		// blocked zone; keep origin as buy candidate only.
		candidates = candidates[:0]
		candidates = append(candidates, req.Origin)
		for _, s := range reachable {
			if !e.danger.BlockedAt(s, req.Now) {
				candidates = append(candidates, s)
			}
		}
	}

	cur := req.Cursor
	cur.buys = candidates
	cur.sells = candidates
	cur.bi, cur.si, cur.wi = 0, 0, 0
	cur.wares = nil
	cur.best = models.Opportunity{}
	cur.found = false
	cur.started = true
	return len(candidates) > 1
}

// filterWares drops wares beyond the agent's tier or legality settings.
// Capability violations are simply excluded from candidate generation.
func (e *Evaluator) filterWares(wares []models.WareID, caps models.Capabilities) []models.WareID {
	out := wares[:0]
	for _, w := range wares {
		if caps.MaxWareTier > 0 && e.uni.WareTier(w) > caps.MaxWareTier {
			continue
		}
		if !caps.AllowIllegal && e.uni.IsIllegal(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// scoreCandidate prices one (buy, sell, ware) triple. Invalid or stale
// references are filtered silently at debug level.
func (e *Evaluator) scoreCandidate(ctx context.Context, req *Request, buy, sell models.SectorID, ware models.WareID) (models.Opportunity, bool) {
	key := models.OpportunityKey(buy, sell, ware)
	if req.Excluded != nil && req.Excluded[key] {
		return models.Opportunity{}, false
	}

	buyQuote, err := e.uni.Quote(ctx, buy, ware)
	if err != nil {
		return models.Opportunity{}, false
	}
	sellQuote, err := e.uni.Quote(ctx, sell, ware)
	if err != nil {
		return models.Opportunity{}, false
	}
	if buyQuote.BuyPrice <= 0 || sellQuote.SellPrice <= buyQuote.BuyPrice {
		return models.Opportunity{}, false
	}

	toBuy, err := e.uni.Hops(ctx, req.Origin, buy)
	if err != nil {
		return models.Opportunity{}, false
	}
	toSell, err := e.uni.Hops(ctx, buy, sell)
	if err != nil {
		return models.Opportunity{}, false
	}
	hops := toBuy + toSell
	if req.Caps.MaxJumpRange > 0 && hops > req.Caps.MaxJumpRange {
		return models.Opportunity{}, false
	}

	qty := buyQuote.Supply
	if sellQuote.Demand < qty {
		qty = sellQuote.Demand
	}
	if req.CargoCapacity > 0 {
		fill := int(float64(req.CargoCapacity) * e.cfg.CargoFillTarget)
		if fill < qty {
			qty = fill
		}
	}
	if qty <= 0 {
		return models.Opportunity{}, false
	}
	if balance, err := e.uni.Balance(ctx); err == nil {
		affordable := int(balance / buyQuote.BuyPrice)
		if affordable < qty {
			qty = affordable
		}
		if qty <= 0 {
			return models.Opportunity{}, false
		}
	}

	revenue := sellQuote.SellPrice * float64(qty)
	cost := buyQuote.BuyPrice * float64(qty)
	fees := revenue * e.cfg.FeeRate
	profit := revenue - cost - fees
	if profit <= 0 {
		return models.Opportunity{}, false
	}

	risk := float64(e.danger.SeverityAt(sell, req.Now))
	if req.Caps.RiskTolerance > 0 && risk > req.Caps.RiskTolerance {
		return models.Opportunity{}, false
	}

	opp := models.Opportunity{
		Origin:       buy,
		Destination:  sell,
		Ware:         ware,
		BuyPrice:     buyQuote.BuyPrice,
		SellPrice:    sellQuote.SellPrice,
		Quantity:     qty,
		Profit:       profit,
		Hops:         hops,
		TravelCost:   float64(hops),
		RiskScore:    risk,
		DiscoveredAt: req.Now,
	}
	opp.Score = e.score(opp, req.Caps)
	return opp, true
}

// score applies the composite formula: profit discounted by normalized
// travel distance, boosted by how favorably both legs deviate from the
// galactic average price.
func (e *Evaluator) score(opp models.Opportunity, caps models.Capabilities) float64 {
	maxRange := caps.MaxJumpRange
	if maxRange <= 0 {
		maxRange = 1
	}
	normalized := float64(opp.Hops) / float64(maxRange)
	if normalized > 1 {
		normalized = 1
	}
	return opp.Profit * (1 - e.cfg.DistancePenalty*normalized) * e.qualityBonus(opp)
}

func (e *Evaluator) qualityBonus(opp models.Opportunity) float64 {
	avg := (opp.BuyPrice + opp.SellPrice) / 2
	if q, err := e.uni.Quote(context.Background(), opp.Origin, opp.Ware); err == nil && q.AvgPrice > 0 {
		avg = q.AvgPrice
	}
	if avg <= 0 {
		return 1
	}
	buyEdge := (avg - opp.BuyPrice) / avg
	sellEdge := (opp.SellPrice - avg) / avg
	quality := (buyEdge + sellEdge) / 2
	if quality < 0 {
		quality = 0
	} else if quality > 1 {
		quality = 1
	}
	return 1 + e.cfg.QualityWeight*quality
}

// clearsThresholds checks the agent's minimum profit and ROI floor.
func (e *Evaluator) clearsThresholds(opp models.Opportunity, caps models.Capabilities) bool {
	minProfit := caps.MinProfit
	if minProfit <= 0 {
		minProfit = e.cfg.MinProfit
	}
	minROI := caps.MinROI
	if minROI <= 0 {
		minROI = e.cfg.MinROI
	}
	return opp.Profit >= minProfit && opp.ROI() >= minROI
}

// bestSellFor finds the best in-range buyer for cargo the agent already
// holds.
func (e *Evaluator) bestSellFor(ctx context.Context, req *Request) (models.Opportunity, bool) {
	cargo := req.Cargo
	reachable, err := e.uni.Reachable(ctx, req.Origin, req.Caps.MaxJumpRange)
	if err != nil {
		return models.Opportunity{}, false
	}

	var best models.Opportunity
	found := false
	for _, sell := range reachable {
		if req.Caps.AvoidBlacklisted && e.danger.BlockedAt(sell, req.Now) {
			continue
		}
		key := models.OpportunityKey(req.Origin, sell, cargo.Ware)
		if req.Excluded != nil && req.Excluded[key] {
			continue
		}
		q, err := e.uni.Quote(ctx, sell, cargo.Ware)
		if err != nil {
			continue
		}
		qty := cargo.Quantity
		if q.Demand < qty {
			qty = q.Demand
		}
		if qty <= 0 {
			continue
		}
		hops, err := e.uni.Hops(ctx, req.Origin, sell)
		if err != nil {
			continue
		}
		revenue := q.SellPrice * float64(qty)
		profit := revenue - cargo.UnitCost*float64(qty) - revenue*e.cfg.FeeRate
		if profit <= 0 {
			continue
		}
		opp := models.Opportunity{
			Origin:       req.Origin,
			Destination:  sell,
			Ware:         cargo.Ware,
			BuyPrice:     cargo.UnitCost,
			SellPrice:    q.SellPrice,
			Quantity:     qty,
			Profit:       profit,
			Hops:         hops,
			TravelCost:   float64(hops),
			RiskScore:    float64(e.danger.SeverityAt(sell, req.Now)),
			DiscoveredAt: req.Now,
		}
		opp.Score = e.score(opp, req.Caps)
		if !found || betterCandidate(opp, best) {
			best = opp
			found = true
		}
	}
	return best, found
}

// queryCache serves the agent from previously discovered opportunities.
func (e *Evaluator) queryCache(ctx context.Context, req *Request) (models.Opportunity, bool) {
	hops := func(from, to models.SectorID) (int, bool) {
		d, err := e.uni.Hops(ctx, from, to)
		if err != nil {
			return 0, false
		}
		return d, true
	}
	f := cache.Filter{
		Origin:       req.Origin,
		MaxHops:      req.Caps.MaxJumpRange,
		MinProfit:    req.Caps.MinProfit,
		MinROI:       req.Caps.MinROI,
		MaxRisk:      req.Caps.RiskTolerance,
		MaxWareTier:  req.Caps.MaxWareTier,
		AllowIllegal: req.Caps.AllowIllegal,
		AvoidBlocked: req.Caps.AvoidBlacklisted,
		ExcludedKeys: req.Excluded,
		WareTierOf:   e.uni.WareTier,
		IllegalWare:  e.uni.IsIllegal,
	}
	if f.MinProfit <= 0 {
		f.MinProfit = e.cfg.MinProfit
	}
	if f.MinROI <= 0 {
		f.MinROI = e.cfg.MinROI
	}
	return e.cache.QueryBestAt(f, hops, req.Now)
}

func betterCandidate(a, b models.Opportunity) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.TravelCost < b.TravelCost
}
