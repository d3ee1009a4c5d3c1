package domain

import "time"

// AddTemporalFeatures derives Hour, Weekday and Day_Type from the pickup
// timestamp. A batch containing a zero pickup timestamp is rejected.
func AddTemporalFeatures(batch []EnrichedDelivery) ([]EnrichedDelivery, error) {
	var missing []int
	out := make([]EnrichedDelivery, len(batch))
	for i, row := range batch {
		if row.PickupTime.IsZero() {
			missing = append(missing, i)
		}
		row.Hour = row.PickupTime.Hour()
		row.Weekday = row.PickupTime.Weekday().String()
		row.DayType = dayType(row.PickupTime.Weekday())
		out[i] = row
	}
	if err := violation("missing pickup timestamp", batch, missing); err != nil {
		return nil, err
	}
	return out, nil
}

func dayType(d time.Weekday) string {
	if d == time.Saturday || d == time.Sunday {
		return DayTypeWeekend
	}
	return DayTypeWeekday
}

// weatherDate is the calendar date used to join hourly weather, in the
// timestamp's own location.
func weatherDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
