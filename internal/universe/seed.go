package universe

import (
	"context"
	"fmt"

	"galaxy-trader/internal/models"
)

// SeedDemo populates a small ring-and-spoke galaxy with price spreads wide
// enough to produce profitable routes. Used by the run command and tests.
func SeedDemo(u *SimUniverse) {
	wares := []struct {
		id      models.WareID
		tier    models.WareTier
		base    float64
		illegal bool
	}{
		{"energy-cells", models.TierBasic, 16, false},
		{"food-rations", models.TierBasic, 21, false},
		{"silicon-wafers", models.TierRefined, 140, false},
		{"refined-metals", models.TierRefined, 48, false},
		{"microchips", models.TierAdvanced, 820, false},
		{"spacefuel", models.TierBasic, 98, true},
	}

	const ringSize = 8
	ring := make([]models.SectorID, ringSize)
	for i := 0; i < ringSize; i++ {
		ring[i] = models.SectorID(fmt.Sprintf("sector-%02d", i+1))
	}
	for i := 0; i < ringSize; i++ {
		u.AddSector(ring[i], ring[(i+1)%ringSize])
	}
	// Spoke sectors hang one jump off the ring.
	for i := 0; i < ringSize; i += 2 {
		spoke := models.SectorID(fmt.Sprintf("outpost-%02d", i+1))
		u.AddSector(spoke, ring[i])
	}

	sectors, _ := u.Sectors(context.Background())
	for _, w := range wares {
		u.SetWareTier(w.id, w.tier)
		u.SetIllegal(w.id, w.illegal)
		for i, s := range sectors {
			// Alternate producer/consumer sectors for the spread.
			spread := 0.25 + 0.05*float64(i%4)
			buy := w.base * (1 - spread/2)
			sell := w.base * (1 + spread/2)
			if i%2 == 1 {
				buy, sell = sell*1.05, buy*0.95
			}
			u.SetQuote(Quote{
				Sector:    s,
				Ware:      w.id,
				BuyPrice:  buy,
				SellPrice: sell,
				Supply:    2000 + 300*(i%5),
				Demand:    2000 + 300*((i+2)%5),
				AvgPrice:  w.base,
			})
		}
	}
}
