package engine

import (
	"context"
	"time"

	"galaxy-trader/internal/models"
	"galaxy-trader/internal/progression"
	"galaxy-trader/internal/stream"
)

// startPlan turns a reserved opportunity into an in-flight trade. A loaded
// agent whose cargo matches the opportunity skips straight to the sell leg.
func (e *Engine) startPlan(ctx context.Context, a *agent, opp models.Opportunity, key string, now time.Time) {
	plan := &tradePlan{
		opp: opp,
		key: key,
		report: models.TradeReport{
			TradeID:     newTradeID(),
			AgentID:     a.id,
			PilotID:     a.pilotID,
			Origin:      opp.Origin,
			Destination: opp.Destination,
			Ware:        opp.Ware,
			Quantity:    opp.Quantity,
			StartedAt:   now,
		},
	}

	if a.cargo != nil && a.cargo.Ware == opp.Ware && a.location == opp.Origin {
		plan.leg = legToSell
		plan.travelLeft = e.travelTicks(ctx, a.location, opp.Destination)
	} else {
		plan.leg = legToBuy
		plan.travelLeft = e.travelTicks(ctx, a.location, opp.Origin)
	}

	a.plan = plan
	e.setStatus(a, models.StatusEnRoute)
	e.logger.Info().
		Str("agent", a.id).
		Str("key", key).
		Float64("profit", opp.Profit).
		Int("qty", opp.Quantity).
		Msg("Trade plan started")
}

// advancePlan moves an in-flight trade forward by one tick: travel, then the
// buy or sell leg on arrival. A destination that turned hostile mid-flight
// aborts the plan; held cargo survives for a sell-side rematch.
func (e *Engine) advancePlan(ctx context.Context, a *agent, now time.Time) {
	plan := a.plan
	target := plan.opp.Origin
	if plan.leg == legToSell {
		target = plan.opp.Destination
	}

	caps := e.prog.Capabilities(a.pilotID, a.baseCaps)
	if caps.AvoidBlacklisted && e.danger.BlockedAt(target, now) {
		e.logger.Info().
			Str("agent", a.id).
			Str("sector", string(target)).
			Msg("Destination blocked mid-flight, plan aborted")
		e.abortPlan(ctx, a, now)
		return
	}

	if plan.travelLeft > 0 {
		plan.travelLeft--
		return
	}

	a.location = target
	if plan.leg == legToBuy {
		e.executeBuy(ctx, a, now)
		return
	}
	e.executeSell(ctx, a, now)
}

// executeBuy settles the buy leg and turns the ship toward the sell sector.
func (e *Engine) executeBuy(ctx context.Context, a *agent, now time.Time) {
	plan := a.plan
	opp := plan.opp
	e.setStatus(a, models.StatusTrading)

	price, err := e.uni.Execute(ctx, opp.Origin, opp.Ware, opp.Quantity, true)
	if err != nil {
		e.logger.Warn().Err(err).Str("agent", a.id).Str("key", plan.key).Msg("Buy leg failed, plan aborted")
		e.abortPlan(ctx, a, now)
		return
	}
	cost := price * float64(opp.Quantity)
	if err := e.uni.Debit(ctx, cost); err != nil {
		e.logger.Warn().Err(err).Str("agent", a.id).Msg("Wallet debit failed, plan aborted")
		e.abortPlan(ctx, a, now)
		return
	}

	a.cargo = &models.CargoLot{
		Ware:     opp.Ware,
		Quantity: opp.Quantity,
		BoughtAt: opp.Origin,
		UnitCost: price,
	}
	plan.leg = legToSell
	plan.travelLeft = e.travelTicks(ctx, a.location, opp.Destination)
	e.setStatus(a, models.StatusEnRoute)
}

// executeSell settles the sell leg, credits the wallet, awards XP, journals
// the trade, and frees the reservation.
func (e *Engine) executeSell(ctx context.Context, a *agent, now time.Time) {
	plan := a.plan
	opp := plan.opp
	e.setStatus(a, models.StatusTrading)

	qty := opp.Quantity
	if a.cargo != nil && a.cargo.Quantity < qty {
		qty = a.cargo.Quantity
	}

	price, err := e.uni.Execute(ctx, opp.Destination, opp.Ware, qty, false)
	if err != nil {
		// Demand evaporated while in flight: keep the cargo and rematch.
		e.logger.Warn().Err(err).Str("agent", a.id).Str("key", plan.key).Msg("Sell leg failed, rematching cargo")
		e.abortPlan(ctx, a, now)
		return
	}

	revenue := price * float64(qty)
	fees := revenue * e.cfg.Trading.FeeRate
	if err := e.uni.Credit(ctx, revenue-fees); err != nil {
		e.logger.Error().Err(err).Str("agent", a.id).Msg("Wallet credit failed")
	}

	unitCost := opp.BuyPrice
	if a.cargo != nil {
		unitCost = a.cargo.UnitCost
	}
	profit := revenue - unitCost*float64(qty) - fees

	levelBefore := 0
	if rec, ok := e.prog.Record(a.pilotID); ok {
		levelBefore = rec.Level
	}
	xp := e.prog.AwardXP(a.pilotID, progression.TradeOutcome{
		TradeValue: revenue,
		Quality:    tradeQuality(unitCost, price),
		Hops:       opp.Hops,
	})

	report := plan.report
	report.Quantity = qty
	report.Profit = profit
	report.XPAwarded = xp
	report.Completed = true
	report.CompletedAt = now
	a.lastTrade = &report

	if e.store != nil {
		if err := e.store.SaveTrade(ctx, report); err != nil {
			e.logger.Warn().Err(err).Str("trade", report.TradeID).Msg("Trade not journaled")
		}
	}
	if e.hub != nil {
		e.hub.Publish(stream.TradeEvent(report))
		if rec, ok := e.prog.Record(a.pilotID); ok && rec.Level > levelBefore {
			e.hub.Publish(stream.LevelUpEvent(a.pilotID, rec.Level, now))
		}
	}

	e.ledger.Release(plan.key, a.id)
	e.fleet.SetClaim(a.id, "")
	a.cargo = nil
	a.plan = nil
	a.backoff.Reset()
	e.setStatus(a, models.StatusIdle)

	e.logger.Info().
		Str("agent", a.id).
		Str("ware", string(opp.Ware)).
		Int("qty", qty).
		Float64("profit", profit).
		Float64("xp", xp).
		Msg("Trade completed")
}

// abortPlan releases the reservation and puts the agent back into search.
// Cargo already bought stays on board; the next search matches it sell-side.
func (e *Engine) abortPlan(ctx context.Context, a *agent, now time.Time) {
	plan := a.plan
	e.ledger.Release(plan.key, a.id)
	e.fleet.SetClaim(a.id, "")
	a.plan = nil

	report := plan.report
	report.Completed = false
	report.CompletedAt = now
	if e.store != nil {
		if err := e.store.SaveTrade(ctx, report); err != nil {
			e.logger.Warn().Err(err).Str("trade", report.TradeID).Msg("Aborted trade not journaled")
		}
	}

	e.setStatus(a, models.StatusSearching)
}

// travelTicks converts the jump distance between two sectors into ticks.
func (e *Engine) travelTicks(ctx context.Context, from, to models.SectorID) int {
	if from == to {
		return 0
	}
	hops, err := e.uni.Hops(ctx, from, to)
	if err != nil {
		// Unknown route: a single tick keeps the plan moving; the legs fail
		// cleanly if the sector truly is unreachable.
		return 1
	}
	return hops * e.cfg.Engine.TravelTicksPerHop
}

// tradeQuality maps the realized margin into the 0..1 quality input of the
// XP formula.
func tradeQuality(unitCost, sellPrice float64) float64 {
	if sellPrice <= 0 {
		return 0
	}
	q := (sellPrice - unitCost) / sellPrice
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}
