package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawEvent(t *testing.T) {
	raw := RawEvent{
		Key: []byte("SC1042"),
		Value: []byte(`{"Delivery_ID":"SC1042","Pickup_DateTime":"2025-08-01 10:00:00",` +
			`"Delivery_Timestamp":"2025-08-01T10:45:30Z","Package_Type":"Large",` +
			`"Distance":12.5,"Delivery_Zone":"Urban"}`),
	}

	rec, err := ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, DeliveryRecord{
		ID:           "SC1042",
		PickupTime:   time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC),
		DeliveryTime: time.Date(2025, time.August, 1, 10, 45, 30, 0, time.UTC),
		PackageType:  PackageLarge,
		DistanceKm:   12.5,
		Zone:         ZoneUrban,
	}, rec)
}

func TestParseRawEvent_DistanceAsStringAndKeyFallback(t *testing.T) {
	raw := RawEvent{
		Key:   []byte("SC1001"),
		Value: []byte(`{"Pickup_DateTime":"2025-08-01T10:00:00","Delivery_Timestamp":"2025-08-01T11:00:00","Distance":"3.25"}`),
	}

	rec, err := ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "SC1001", rec.ID)
	assert.InDelta(t, 3.25, rec.DistanceKm, 1e-9)
}

func TestParseRawEvent_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":      `not json`,
		"bad timestamp": `{"Delivery_ID":"SC1","Pickup_DateTime":"yesterday","Distance":1}`,
		"bad distance":  `{"Delivery_ID":"SC1","Pickup_DateTime":"2025-08-01 10:00:00","Distance":"far"}`,
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRawEvent(RawEvent{Value: []byte(value)})
			assert.Error(t, err)
		})
	}
}

func TestParseTimestamp_EmptyIsZero(t *testing.T) {
	ts, err := ParseTimestamp("  ")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestParseTimestamp_KeepsOffset(t *testing.T) {
	ts, err := ParseTimestamp("2025-08-02T00:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 0, ts.Hour())
}

func TestSerializeDelivery(t *testing.T) {
	cond := "Mist"
	row := EnrichedDelivery{
		DeliveryRecord:   DeliveryRecord{ID: "SC1042", Zone: ZoneRural, PackageType: PackageSmall},
		Hour:             9,
		WeatherCondition: &cond,
		Status:           StatusDelayed,
	}

	out, err := SerializeDelivery(row)
	require.NoError(t, err)
	assert.Equal(t, []byte("SC1042"), out.Key)
	assert.Equal(t, map[string]string{"status": "Delayed", "zone": "Rural"}, out.Headers)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, "SC1042", decoded["Delivery_ID"])
	assert.Equal(t, "Mist", decoded["Weather_Condition"])
	assert.Equal(t, "Delayed", decoded["Status"])
	assert.InDelta(t, 9, decoded["Hour"], 0)
}
