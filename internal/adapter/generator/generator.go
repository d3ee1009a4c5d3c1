// Package generator produces synthetic delivery records for demos and load
// tests.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// Window is how far back from the clock pickups are drawn.
const Window = 30 * 24 * time.Hour

type weighted struct {
	value  string
	weight float64
}

var packageWeights = []weighted{
	{domain.PackageSmall, 0.40},
	{domain.PackageMedium, 0.30},
	{domain.PackageLarge, 0.15},
	{domain.PackageExtraLarge, 0.10},
	{domain.PackageSpecial, 0.05},
}

var zoneWeights = []weighted{
	{domain.ZoneUrban, 0.35},
	{domain.ZoneSuburban, 0.25},
	{domain.ZoneRural, 0.20},
	{domain.ZoneIndustrial, 0.10},
	{domain.ZoneShoppingCenter, 0.10},
}

// Generator draws rows deliveries with IDs SC1000, SC1001 and so on.
// It implements pipeline.Extractor.
type Generator struct {
	rows int
	seed uint64
}

// New creates a Generator. The same seed and clock time yield the same records.
func New(rows int, seed uint64) *Generator {
	return &Generator{rows: rows, seed: seed}
}

// Describe implements pipeline.Extractor.
func (g *Generator) Describe() string {
	return fmt.Sprintf("generator(rows=%d)", g.rows)
}

// Extract implements pipeline.Extractor. Pickups fall uniformly in the Window
// before the clock's current time; deliveries follow 20 to 360 whole minutes
// later.
func (g *Generator) Extract(ctx context.Context) ([]domain.DeliveryRecord, error) {
	if g.rows < 0 {
		return nil, fmt.Errorf("generator: rows must be >= 0, got %d", g.rows)
	}

	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
	end := domain.Clock().Now().Truncate(time.Second)
	start := end.Add(-Window)
	windowSecs := int64(Window / time.Second)

	out := make([]domain.DeliveryRecord, g.rows)
	for i := range out {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		pickup := start.Add(time.Duration(rng.Int64N(windowSecs+1)) * time.Second)
		minutes := int(20 + rng.Float64()*340)
		out[i] = domain.DeliveryRecord{
			ID:           fmt.Sprintf("SC%d", 1000+i),
			PickupTime:   pickup,
			DeliveryTime: pickup.Add(time.Duration(minutes) * time.Minute),
			PackageType:  pick(rng, packageWeights),
			DistanceKm:   math.Round((1+rng.Float64()*49)*100) / 100,
			Zone:         pick(rng, zoneWeights),
		}
	}
	return out, nil
}

func pick(rng *rand.Rand, options []weighted) string {
	r := rng.Float64()
	for _, o := range options {
		if r < o.weight {
			return o.value
		}
		r -= o.weight
	}
	return options[len(options)-1].value
}
