// Command validate checks an enriched NDJSON output against its run manifest
// and re-derives every computed column from the raw fields to confirm the
// stored values.
//
// Usage:
//
//	go run ./cmd/validate -ndjson data/mock/deliveries.ndjson -manifest data/mock/deliveries_manifest.json
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"regexp"
	"slices"

	"github.com/couchcryptid/courier-delay-etl/internal/adapter/file"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	ndjsonPath := flag.String("ndjson", "", "path to the enriched NDJSON output")
	manifestPath := flag.String("manifest", "", "path to the run manifest")
	flag.Parse()

	if *ndjsonPath == "" || *manifestPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *ndjsonPath, *manifestPath))
}

func run(w io.Writer, ndjsonPath, manifestPath string) int {
	fmt.Fprintln(w, "=== Delivery Output Validation ===")
	fmt.Fprintln(w)

	rows, err := file.ReadDeliveries(ndjsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load output: %v\n", err)
		return 1
	}
	manifest, err := file.ReadManifest(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load manifest: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(rows),
		validateDerivedColumns(rows),
		validateManifest(rows, manifest),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d output rows, manifest run %s\n", len(rows), manifest.RunID)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

var displayPattern = regexp.MustCompile(`^\d{2,}\.[0-5]\d$`)

// validateSchema checks field presence and value domains.
func validateSchema(rows []domain.EnrichedDelivery) *phase {
	p := &phase{name: "Schema & value domains"}
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		switch {
		case r.ID == "":
			p.errorf("row %d: empty Delivery_ID", i+1)
		case seen[r.ID]:
			p.errorf("row %d: duplicate Delivery_ID %s", i+1, r.ID)
		}
		seen[r.ID] = true

		if r.Status != domain.StatusOnTime && r.Status != domain.StatusDelayed {
			p.errorf("%s: invalid Status %q", r.ID, r.Status)
		}
		if r.DayType != domain.DayTypeWeekday && r.DayType != domain.DayTypeWeekend {
			p.errorf("%s: invalid Day_Type %q", r.ID, r.DayType)
		}
		if r.Hour < 0 || r.Hour > 23 {
			p.errorf("%s: Hour %d out of range", r.ID, r.Hour)
		}
		if !displayPattern.MatchString(r.ActualDeliveryDisplay) {
			p.errorf("%s: malformed Actual_Delivery_Time_Display %q", r.ID, r.ActualDeliveryDisplay)
		}
		if r.WeatherCondition != nil && *r.WeatherCondition == "" {
			p.errorf("%s: empty Weather_Condition should be null", r.ID)
		}
	}
	return p
}

// validateDerivedColumns recomputes every derived column from the raw fields
// and the stored weather condition.
func validateDerivedColumns(rows []domain.EnrichedDelivery) *phase {
	p := &phase{name: "Derived column re-computation"}
	classifier := domain.NewClassifier(domain.DefaultCoefficients(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, r := range rows {
		temporal, err := domain.AddTemporalFeatures(domain.NewBatch([]domain.DeliveryRecord{r.DeliveryRecord}))
		if err != nil {
			p.errorf("%s: %v", r.ID, err)
			continue
		}
		durations, err := domain.AddDeliveryDurations(temporal)
		if err != nil {
			p.errorf("%s: %v", r.ID, err)
			continue
		}
		want := durations[0]
		want.WeatherCondition = r.WeatherCondition
		want = classifier.Classify(want)

		if r.Hour != want.Hour || r.Weekday != want.Weekday || r.DayType != want.DayType {
			p.errorf("%s: temporal features %d/%s/%s, want %d/%s/%s",
				r.ID, r.Hour, r.Weekday, r.DayType, want.Hour, want.Weekday, want.DayType)
		}
		if !closeTo(r.ActualDeliveryMinutes, want.ActualDeliveryMinutes) || r.ActualDeliveryDisplay != want.ActualDeliveryDisplay {
			p.errorf("%s: duration %.2f (%s), want %.2f (%s)",
				r.ID, r.ActualDeliveryMinutes, r.ActualDeliveryDisplay, want.ActualDeliveryMinutes, want.ActualDeliveryDisplay)
		}
		if !closeTo(r.TheoreticalMinutes, want.TheoreticalMinutes) {
			p.errorf("%s: Theoretical_Time_Minutes %.2f, want %.2f", r.ID, r.TheoreticalMinutes, want.TheoreticalMinutes)
		}
		if r.Status != want.Status {
			p.errorf("%s: Status %s, want %s", r.ID, r.Status, want.Status)
		}
	}
	return p
}

// validateManifest checks the manifest's shape and summary against the rows.
func validateManifest(rows []domain.EnrichedDelivery, m domain.Manifest) *phase {
	p := &phase{name: "Manifest consistency"}

	if m.Shape.Rows != len(rows) {
		p.errorf("shape.rows %d, output has %d rows", m.Shape.Rows, len(rows))
	}
	if m.Shape.Columns != len(domain.Columns) {
		p.errorf("shape.columns %d, want %d", m.Shape.Columns, len(domain.Columns))
	}
	if !slices.Equal(m.Columns, domain.Columns) {
		p.errorf("columns %v, want %v", m.Columns, domain.Columns)
	}

	var onTime, delayed, noWeather int
	for _, r := range rows {
		if r.Status == domain.StatusDelayed {
			delayed++
		} else {
			onTime++
		}
		if r.WeatherCondition == nil {
			noWeather++
		}
	}
	if m.Summary.OnTime != onTime || m.Summary.Delayed != delayed {
		p.errorf("summary on_time/delayed %d/%d, output has %d/%d", m.Summary.OnTime, m.Summary.Delayed, onTime, delayed)
	}
	if m.Summary.RowsWithoutWeather != noWeather {
		p.errorf("summary rows_without_weather %d, output has %d", m.Summary.RowsWithoutWeather, noWeather)
	}
	if m.RunID == "" {
		p.errorf("missing run_id")
	}
	return p
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
