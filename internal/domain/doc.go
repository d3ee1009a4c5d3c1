// Package domain models courier delivery records and the transform core that
// turns them into delay classifications.
//
// # Input Records
//
// Each delivery arrives with six fields, named after the columns used by the
// upstream extract step:
//
//	Delivery_ID         unique within a batch, e.g. "SC1042"
//	Pickup_DateTime     pickup timestamp
//	Delivery_Timestamp  completion timestamp, never before pickup
//	Package_Type        Small | Medium | Large | Extra Large | Special
//	Distance            kilometres, positive
//	Delivery_Zone       Urban | Suburban | Rural | Industrial | Shopping Center
//
// Timestamps are used in whatever location they carry. Hour, weekday and the
// calendar date used for the weather join are all read from the timestamp as
// given; nothing is converted to UTC.
//
// # Transform Stages
//
// The core runs four stages in a fixed order. Each stage returns a new slice
// with the same length and order as its input:
//
//  1. AddTemporalFeatures    Hour, Weekday, Day_Type
//  2. WeatherEnricher.Enrich Weather_Condition (left join on date + hour)
//  3. AddDeliveryDurations   Actual_Delivery_Time_Minutes / _Display
//  4. Classifier.ClassifyBatch Theoretical_Time_Minutes, Status
//
// # Delay Model
//
// The theoretical delivery time is a base time scaled by five multipliers:
//
//	base = 30 + distance_km * 0.8
//	theoretical = round2(base * package * zone * peak * day * weather)
//	threshold = theoretical * 1.2
//
// A delivery is Delayed only when its actual minutes are strictly greater
// than the threshold. Package and zone values outside the known sets use a
// neutral 1.0. Peak, day and weather multipliers are ordered rule lists where
// the first matching rule wins:
//
//	peak:    07-09h 1.3 | 17-19h 1.4 | otherwise 1.0
//	day:     Monday, Friday 1.2 | Saturday, Sunday 0.9 | otherwise 1.0
//	weather: absent 1.0 | rain, drizzle 1.2 | snow, blizzard, sleet 1.8 |
//	         fog, mist 1.1 | otherwise 1.0
//
// # Weather Data
//
// Hourly conditions come from a [WeatherSource], one request per distinct
// calendar date in the batch. Requests run concurrently with a bounded limit
// and each is retried under a [RetryPolicy]. A date that still fails
// contributes no rows to the join, so its deliveries keep an absent condition
// and a weather multiplier of 1.0.
//
// # Failures
//
// Only precondition violations (missing timestamps, delivery before pickup)
// fail a batch; they are reported as a [PreconditionError] listing the
// offending delivery IDs. Weather outages and unknown categories degrade
// gracefully and surface in the [Summary] instead.
package domain
