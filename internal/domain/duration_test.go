package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDeliveryDurations(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		minutes float64
		display string
	}{
		{"minutes and seconds", 45*time.Minute + 30*time.Second, 45.5, "45.30"},
		{"zero", 0, 0, "00.00"},
		{"under a minute", 9 * time.Second, 0.15, "00.09"},
		{"over an hour", 125*time.Minute + 7*time.Second, 125.12, "125.07"},
		{"sub-second truncated in display", 20*time.Minute + 1800*time.Millisecond, 20.03, "20.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pickup := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
			out, err := AddDeliveryDurations(NewBatch([]DeliveryRecord{record("SC1000", pickup, tt.elapsed)}))
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.InDelta(t, tt.minutes, out[0].ActualDeliveryMinutes, 1e-9)
			assert.Equal(t, tt.display, out[0].ActualDeliveryDisplay)
		})
	}
}

func TestAddDeliveryDurations_Scenario(t *testing.T) {
	pickup := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
	delivered := time.Date(2025, time.August, 1, 10, 45, 30, 0, time.UTC)
	batch := NewBatch([]DeliveryRecord{{ID: "SC1000", PickupTime: pickup, DeliveryTime: delivered}})

	out, err := AddDeliveryDurations(batch)
	require.NoError(t, err)
	assert.Equal(t, 45.5, out[0].ActualDeliveryMinutes)
	assert.Equal(t, "45.30", out[0].ActualDeliveryDisplay)
}

func TestAddDeliveryDurations_DeliveryBeforePickup(t *testing.T) {
	pickup := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
	batch := NewBatch([]DeliveryRecord{
		record("SC1000", pickup, time.Hour),
		record("SC1001", pickup, -time.Minute),
		{ID: "SC1002", PickupTime: pickup},
	})

	_, err := AddDeliveryDurations(batch)
	require.ErrorIs(t, err, ErrPrecondition)

	var perr *PreconditionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "delivery timestamp missing or before pickup", perr.Rule)
	assert.Equal(t, []string{"SC1001", "SC1002"}, perr.DeliveryIDs)
	assert.Equal(t, []int{1, 2}, perr.Rows)
}
