package ledger

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

// Property: under any interleaving of reserve/release/expiry operations, at
// most one live reservation exists per key at any point in time, and the
// live count never exceeds the number of distinct keys touched.

type ledgerOp struct {
	Kind    int // 0 reserve, 1 release, 2 advance clock
	Key     int
	Holder  int
	Advance int64 // seconds
}

func ledgerOpGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.IntRange(0, 4),
		gen.IntRange(0, 7),
		gen.Int64Range(0, 90),
	).Map(func(vals []interface{}) ledgerOp {
		return ledgerOp{
			Kind:    vals[0].(int),
			Key:     vals[1].(int),
			Holder:  vals[2].(int),
			Advance: vals[3].(int64),
		}
	})
}

func TestAtMostOneLiveReservationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	keys := []string{"k0", "k1", "k2", "k3", "k4"}
	holders := []string{"h0", "h1", "h2", "h3", "h4", "h5", "h6", "h7"}

	properties.Property("at most one live holder per key", prop.ForAll(
		func(ops []ledgerOp) bool {
			l := New(zerolog.Nop())
			now := time.Unix(1_000_000, 0)
			ttl := time.Minute

			for _, op := range ops {
				key := keys[op.Key]
				holder := holders[op.Holder]

				switch op.Kind {
				case 0:
					l.TryReserveAt(key, holder, ttl, now)
				case 1:
					l.Release(key, holder)
				case 2:
					now = now.Add(time.Duration(op.Advance) * time.Second)
				}

				// Invariant: each key has at most one live holder. Winning a
				// second reserve for an already-held key must fail for a
				// different holder.
				if h, ok := l.HolderAt(key, now); ok {
					for _, other := range holders {
						if other == h {
							continue
						}
						if l.TryReserveAt(key, other, ttl, now) {
							return false
						}
					}
				}

				if l.LiveCount(now) > len(keys) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, ledgerOpGen()),
	))

	properties.TestingRun(t)
}
