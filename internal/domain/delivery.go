package domain

import (
	"context"
	"time"
)

// Known package types.
const (
	PackageSmall      = "Small"
	PackageMedium     = "Medium"
	PackageLarge      = "Large"
	PackageExtraLarge = "Extra Large"
	PackageSpecial    = "Special"
)

// Known delivery zones.
const (
	ZoneUrban          = "Urban"
	ZoneSuburban       = "Suburban"
	ZoneRural          = "Rural"
	ZoneIndustrial     = "Industrial"
	ZoneShoppingCenter = "Shopping Center"
)

// Day types derived from the pickup weekday.
const (
	DayTypeWeekday = "Weekday"
	DayTypeWeekend = "Weekend"
)

// Status is the delay classification of a delivery.
type Status string

const (
	StatusOnTime  Status = "On-time"
	StatusDelayed Status = "Delayed"
)

// DeliveryRecord is one raw delivery as produced by extraction.
type DeliveryRecord struct {
	ID           string    `json:"Delivery_ID"`
	PickupTime   time.Time `json:"Pickup_DateTime"`
	DeliveryTime time.Time `json:"Delivery_Timestamp"`
	PackageType  string    `json:"Package_Type"`
	DistanceKm   float64   `json:"Distance"`
	Zone         string    `json:"Delivery_Zone"`
}

// EnrichedDelivery is a delivery record with every derived column attached.
type EnrichedDelivery struct {
	DeliveryRecord

	Hour    int    `json:"Hour"`
	Weekday string `json:"Weekday"`
	DayType string `json:"Day_Type"`

	// WeatherCondition is nil when no hourly observation matched the pickup.
	WeatherCondition *string `json:"Weather_Condition"`

	ActualDeliveryMinutes float64 `json:"Actual_Delivery_Time_Minutes"`
	ActualDeliveryDisplay string  `json:"Actual_Delivery_Time_Display"`
	TheoreticalMinutes    float64 `json:"Theoretical_Time_Minutes"`
	Status                Status  `json:"Status"`
}

// Columns lists the output column names in the order writers emit them.
var Columns = []string{
	"Delivery_ID",
	"Pickup_DateTime",
	"Delivery_Timestamp",
	"Package_Type",
	"Distance",
	"Delivery_Zone",
	"Hour",
	"Weekday",
	"Day_Type",
	"Weather_Condition",
	"Actual_Delivery_Time_Minutes",
	"Actual_Delivery_Time_Display",
	"Theoretical_Time_Minutes",
	"Status",
}

// NewBatch wraps raw records as the working batch for the transform stages.
func NewBatch(records []DeliveryRecord) []EnrichedDelivery {
	batch := make([]EnrichedDelivery, len(records))
	for i, rec := range records {
		batch[i] = EnrichedDelivery{DeliveryRecord: rec}
	}
	return batch
}

// WeatherConditionOrEmpty returns the condition text, or "" when absent.
func (d EnrichedDelivery) WeatherConditionOrEmpty() string {
	if d.WeatherCondition == nil {
		return ""
	}
	return *d.WeatherCondition
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// TransformResult is the enriched batch plus a description of how it was built.
type TransformResult struct {
	Rows    []EnrichedDelivery
	Summary Summary
}

// Summary describes a transformed batch for manifests and metrics.
type Summary struct {
	Rows                  int            `json:"rows"`
	OnTime                int            `json:"on_time"`
	Delayed               int            `json:"delayed"`
	WeatherDatesRequested int            `json:"weather_dates_requested"`
	WeatherDatesFailed    int            `json:"weather_dates_failed"`
	RowsWithoutWeather    int            `json:"rows_without_weather"`
	UnknownPackageTypes   map[string]int `json:"unknown_package_types,omitempty"`
	UnknownZones          map[string]int `json:"unknown_zones,omitempty"`
}
