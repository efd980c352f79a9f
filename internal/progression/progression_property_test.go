package progression

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

// Property: for any sequence of trades and certification completions, a
// gated pilot's XP never changes on an award, XP is monotonically
// non-decreasing overall, and the level never exceeds the ceiling or moves
// backwards.

type pilotOp struct {
	Certify    bool
	TradeValue float64
	Quality    float64
	Hops       int
}

func pilotOpGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),
		gen.Float64Range(0, 2_000_000),
		gen.Float64Range(-0.5, 1.5),
		gen.IntRange(0, 12),
	).Map(func(vals []interface{}) pilotOp {
		return pilotOp{
			Certify:    vals[0].(bool),
			TradeValue: vals[1].(float64),
			Quality:    vals[2].(float64),
			Hops:       vals[3].(int),
		}
	})
}

func TestNoXPWhileGatedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("gated pilots accrue nothing; level and XP never regress", prop.ForAll(
		func(ops []pilotOp) bool {
			m := NewMachine(testConfig(), zerolog.Nop())
			m.AddPilot("p", 1)

			prevXP := 0.0
			prevLevel := 1

			for _, op := range ops {
				if op.Certify {
					// Misuse when not gated must be a tolerated no-op.
					_ = m.CompleteCertification("p")
				} else {
					gatedBefore := m.Gated("p")
					before, _ := m.Record("p")
					awarded := m.AwardXP("p", TradeOutcome{
						TradeValue: op.TradeValue,
						Quality:    op.Quality,
						Hops:       op.Hops,
					})
					after, _ := m.Record("p")

					if gatedBefore && (awarded != 0 || after.XP != before.XP) {
						return false
					}
					if !gatedBefore && awarded < 0 {
						return false
					}
				}

				rec, _ := m.Record("p")
				if rec.XP < prevXP || rec.Level < prevLevel || rec.Level > MaxLevel {
					return false
				}
				prevXP = rec.XP
				prevLevel = rec.Level
			}
			return true
		},
		gen.SliceOfN(60, pilotOpGen()),
	))

	properties.TestingRun(t)
}
