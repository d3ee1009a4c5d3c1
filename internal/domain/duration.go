package domain

import (
	"fmt"
	"math"
	"time"
)

// AddDeliveryDurations derives the elapsed delivery time in minutes (2 dp)
// and its "MM.SS" display form. Rows whose delivery timestamp is missing or
// earlier than the pickup reject the whole batch.
func AddDeliveryDurations(batch []EnrichedDelivery) ([]EnrichedDelivery, error) {
	var invalid []int
	out := make([]EnrichedDelivery, len(batch))
	for i, row := range batch {
		if row.DeliveryTime.IsZero() || row.DeliveryTime.Before(row.PickupTime) {
			invalid = append(invalid, i)
		}
		elapsed := row.DeliveryTime.Sub(row.PickupTime)
		row.ActualDeliveryMinutes = round2(elapsed.Minutes())
		row.ActualDeliveryDisplay = durationDisplay(elapsed)
		out[i] = row
	}
	if err := violation("delivery timestamp missing or before pickup", batch, invalid); err != nil {
		return nil, err
	}
	return out, nil
}

// durationDisplay renders whole minutes and remainder seconds as "MM.SS".
func durationDisplay(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d.%02d", secs/60, secs%60)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
