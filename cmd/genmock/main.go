// Command genmock writes reproducible delivery fixtures: the raw records as a
// JSON array, plus the enriched NDJSON output and manifest the pipeline
// produces for them. Weather comes from a fixed hourly table so no API key is
// needed.
//
// Usage:
//
//	go run ./cmd/genmock -rows 200 -raw-out data/mock/deliveries_raw.json -out data/mock/deliveries
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/adapter/file"
	"github.com/couchcryptid/courier-delay-etl/internal/adapter/generator"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
	"github.com/couchcryptid/courier-delay-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// fixtureNow anchors the generator window so fixtures are stable.
var fixtureNow = time.Date(2025, time.August, 31, 12, 0, 0, 0, time.UTC)

const fixtureLocation = "Paris"

// hourlyTable cycles through conditions that exercise every weather factor.
var hourlyTable = []string{
	"Sunny", "Partly cloudy", "Light rain", "Overcast", "Mist",
	"Patchy light drizzle", "Clear", "Moderate snow", "Fog", "Cloudy",
}

// tableWeather is a deterministic domain.WeatherSource.
type tableWeather struct{}

func (tableWeather) HourlyConditions(_ context.Context, _, date string) ([]domain.HourlyCondition, error) {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, err
	}
	out := make([]domain.HourlyCondition, 24)
	for h := range out {
		out[h] = domain.HourlyCondition{Hour: h, Condition: hourlyTable[(d.YearDay()+h)%len(hourlyTable)]}
	}
	return out, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rows := flag.Int("rows", 200, "number of deliveries to generate")
	seed := flag.Uint64("seed", 20250831, "generator seed")
	rawOut := flag.String("raw-out", "", "output path for the raw JSON fixture")
	out := flag.String("out", "", "base path for the enriched NDJSON fixture and manifest")
	flag.Parse()

	if *rawOut == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raw-out, -out")
	}

	domain.SetClock(clockwork.NewFakeClockAt(fixtureNow))
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := generator.New(*rows, *seed)

	records, err := gen.Extract(context.Background())
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := writeJSON(*rawOut, toRaw(records)); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s (%d records)", *rawOut, len(records))

	weather := domain.NewWeatherEnricher(tableWeather{}, fixtureLocation, 1, domain.RetryPolicy{MaxAttempts: 1}, logger)
	transformer := pipeline.NewTransformer(weather, domain.NewClassifier(domain.DefaultCoefficients(), logger), logger)
	ndjson := file.NewNDJSONWriter(*out)

	runner := pipeline.NewRunner(gen, transformer,
		pipeline.MultiLoader{{Name: filepath.Base(ndjson.Path()), Loader: ndjson}},
		logger, observability.NewUnregisteredMetrics(),
		pipeline.WithManifestWriter(file.NewManifestWriter(*out)),
		pipeline.WithWeatherLocation(fixtureLocation),
	)
	manifest, err := runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("transform fixture: %w", err)
	}
	log.Printf("wrote enriched fixture: %s", ndjson.Path())
	log.Printf("wrote manifest: %s", file.ManifestPath(*out))

	printStats(manifest.Summary)
	return nil
}

// toRaw renders records the way upstream exports do: naive local timestamps.
func toRaw(records []domain.DeliveryRecord) []domain.RawDeliveryRecord {
	out := make([]domain.RawDeliveryRecord, len(records))
	for i, r := range records {
		out[i] = domain.RawDeliveryRecord{
			ID:          r.ID,
			Pickup:      r.PickupTime.Format(time.DateTime),
			Delivery:    r.DeliveryTime.Format(time.DateTime),
			PackageType: r.PackageType,
			Distance:    json.Number(fmt.Sprint(r.DistanceKm)),
			Zone:        r.Zone,
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(s domain.Summary) {
	fmt.Println()
	fmt.Println("=== Fixture Statistics ===")
	fmt.Printf("Rows:                 %d\n", s.Rows)
	fmt.Printf("On-time:              %d\n", s.OnTime)
	fmt.Printf("Delayed:              %d\n", s.Delayed)
	fmt.Printf("Weather dates:        %d (%d failed)\n", s.WeatherDatesRequested, s.WeatherDatesFailed)
	fmt.Printf("Rows without weather: %d\n", s.RowsWithoutWeather)

	unknown := make([]string, 0, len(s.UnknownPackageTypes)+len(s.UnknownZones))
	for k := range s.UnknownPackageTypes {
		unknown = append(unknown, "package:"+k)
	}
	for k := range s.UnknownZones {
		unknown = append(unknown, "zone:"+k)
	}
	sort.Strings(unknown)
	for _, u := range unknown {
		fmt.Printf("Unknown category:     %s\n", u)
	}
}
