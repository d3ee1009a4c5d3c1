package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawDeliveryRecord is the flat record shape shared by CSV rows and source
// topic messages. Timestamps stay as text until ParseRecord.
type RawDeliveryRecord struct {
	ID          string      `json:"Delivery_ID"`
	Pickup      string      `json:"Pickup_DateTime"`
	Delivery    string      `json:"Delivery_Timestamp"`
	PackageType string      `json:"Package_Type"`
	Distance    json.Number `json:"Distance"`
	Zone        string      `json:"Delivery_Zone"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	"2006-01-02 15:04",
}

// ParseTimestamp parses the timestamp formats seen in delivery exports.
// An empty string yields the zero time so the transform can report it.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseRecord converts a raw record into a typed DeliveryRecord.
func ParseRecord(rec RawDeliveryRecord) (DeliveryRecord, error) {
	pickup, err := ParseTimestamp(rec.Pickup)
	if err != nil {
		return DeliveryRecord{}, fmt.Errorf("delivery %s: pickup: %w", rec.ID, err)
	}
	delivered, err := ParseTimestamp(rec.Delivery)
	if err != nil {
		return DeliveryRecord{}, fmt.Errorf("delivery %s: delivery: %w", rec.ID, err)
	}
	distance, err := rec.Distance.Float64()
	if err != nil {
		return DeliveryRecord{}, fmt.Errorf("delivery %s: distance: %w", rec.ID, err)
	}
	return DeliveryRecord{
		ID:           strings.TrimSpace(rec.ID),
		PickupTime:   pickup,
		DeliveryTime: delivered,
		PackageType:  strings.TrimSpace(rec.PackageType),
		DistanceKm:   distance,
		Zone:         strings.TrimSpace(rec.Zone),
	}, nil
}

// ParseRawEvent deserializes a source topic message into a DeliveryRecord.
func ParseRawEvent(raw RawEvent) (DeliveryRecord, error) {
	var rec RawDeliveryRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return DeliveryRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	if rec.ID == "" {
		rec.ID = string(raw.Key)
	}
	return ParseRecord(rec)
}

// SerializeDelivery builds the sink message for an enriched delivery, keyed by
// delivery ID.
func SerializeDelivery(row EnrichedDelivery) (OutputEvent, error) {
	value, err := json.Marshal(row)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("marshal delivery %s: %w", row.ID, err)
	}
	return OutputEvent{
		Key:   []byte(row.ID),
		Value: value,
		Headers: map[string]string{
			"status": string(row.Status),
			"zone":   row.Zone,
		},
	}, nil
}
