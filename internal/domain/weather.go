package domain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// HourlyCondition is one hourly weather observation.
type HourlyCondition struct {
	Hour      int    `json:"hour"`
	Condition string `json:"condition"`
}

// WeatherSource returns the hourly conditions observed at a location on a
// calendar date formatted as YYYY-MM-DD. Implementations may wrap an error
// with backoff.Permanent to signal that retrying cannot help.
type WeatherSource interface {
	HourlyConditions(ctx context.Context, location, date string) ([]HourlyCondition, error)
}

// RetryPolicy bounds the attempts made for a single date.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy allows 3 attempts, 2 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// DefaultWeatherConcurrency is the default number of dates fetched at once.
const DefaultWeatherConcurrency = 10

// WeatherCoverage describes how much of a batch received weather data.
type WeatherCoverage struct {
	DatesRequested     int
	DatesFailed        int
	RowsWithoutWeather int
}

// WeatherEnricher joins hourly weather conditions onto a batch.
type WeatherEnricher struct {
	source      WeatherSource
	location    string
	concurrency int
	retry       RetryPolicy
	logger      *slog.Logger
}

// NewWeatherEnricher creates a WeatherEnricher for one location. A nil source
// disables weather enrichment: every row gets an absent condition.
func NewWeatherEnricher(source WeatherSource, location string, concurrency int, retry RetryPolicy, logger *slog.Logger) *WeatherEnricher {
	if concurrency <= 0 {
		concurrency = DefaultWeatherConcurrency
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &WeatherEnricher{
		source:      source,
		location:    location,
		concurrency: concurrency,
		retry:       retry,
		logger:      logger,
	}
}

// Location returns the location weather is fetched for.
func (e *WeatherEnricher) Location() string {
	return e.location
}

type weatherKey struct {
	date string
	hour int
}

// Enrich sets WeatherCondition on every row by joining on the pickup's
// calendar date and Hour. Dates that cannot be fetched leave their rows with
// an absent condition. An error is returned only when ctx ends first.
func (e *WeatherEnricher) Enrich(ctx context.Context, batch []EnrichedDelivery) ([]EnrichedDelivery, WeatherCoverage, error) {
	dates := distinctDates(batch)
	cov := WeatherCoverage{DatesRequested: len(dates)}

	conditions := map[weatherKey]string{}
	if e.source != nil && len(dates) > 0 {
		results, failed := e.fetchAll(ctx, dates)
		if err := ctx.Err(); err != nil {
			return nil, WeatherCoverage{}, fmt.Errorf("weather enrichment aborted: %w", err)
		}
		cov.DatesFailed = failed
		for i, date := range dates {
			for _, hc := range results[i] {
				k := weatherKey{date: date, hour: hc.Hour}
				if _, dup := conditions[k]; !dup {
					conditions[k] = hc.Condition
				}
			}
		}
	} else if e.source == nil {
		cov.DatesRequested = 0
	}

	out := make([]EnrichedDelivery, len(batch))
	for i, row := range batch {
		row.WeatherCondition = nil
		if c, ok := conditions[weatherKey{date: weatherDate(row.PickupTime), hour: row.Hour}]; ok {
			row.WeatherCondition = &c
		} else {
			cov.RowsWithoutWeather++
		}
		out[i] = row
	}

	if cov.DatesFailed > 0 && cov.DatesFailed == cov.DatesRequested {
		e.logger.Warn("weather unavailable for every date in batch",
			"location", e.location, "dates", cov.DatesRequested, "rows", len(batch))
	}
	return out, cov, nil
}

// fetchAll requests every date with at most e.concurrency requests in flight.
// Each task writes only to its own slot in results.
func (e *WeatherEnricher) fetchAll(ctx context.Context, dates []string) ([][]HourlyCondition, int) {
	results := make([][]HourlyCondition, len(dates))
	failed := make([]bool, len(dates))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, date := range dates {
		g.Go(func() error {
			conds, err := e.fetchWithRetry(ctx, date)
			if err != nil {
				failed[i] = true
				e.logger.Warn("weather fetch failed, continuing without weather for date",
					"location", e.location, "date", date, "error", err)
				return nil
			}
			results[i] = conds
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return results, n
}

func (e *WeatherEnricher) fetchWithRetry(ctx context.Context, date string) ([]HourlyCondition, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retry.Delay), uint64(e.retry.MaxAttempts-1)),
		ctx,
	)
	attempt := 0
	return backoff.RetryNotifyWithData(func() ([]HourlyCondition, error) {
		attempt++
		return e.source.HourlyConditions(ctx, e.location, date)
	}, policy, func(err error, wait time.Duration) {
		e.logger.Debug("retrying weather fetch",
			"date", date, "attempt", attempt, "wait", wait, "error", err)
	})
}

// distinctDates returns the sorted calendar dates of the batch's pickups.
func distinctDates(batch []EnrichedDelivery) []string {
	seen := map[string]struct{}{}
	for _, row := range batch {
		seen[weatherDate(row.PickupTime)] = struct{}{}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}
