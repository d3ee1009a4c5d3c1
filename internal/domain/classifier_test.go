package domain

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func classified(distance float64, pkg, zone string, hour int, weekday string, weather *string, actual float64) EnrichedDelivery {
	return EnrichedDelivery{
		DeliveryRecord: DeliveryRecord{
			ID:          "SC1000",
			PackageType: pkg,
			DistanceKm:  distance,
			Zone:        zone,
		},
		Hour:                  hour,
		Weekday:               weekday,
		WeatherCondition:      weather,
		ActualDeliveryMinutes: actual,
	}
}

func TestClassifier_Scenario(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	row := classified(10.0, PackageLarge, ZoneUrban, 8, "Monday", strPtr("Light rain"), 100.0)

	f := c.Factors(row)
	assert.Equal(t, Factors{Package: 1.5, Zone: 1.2, Peak: 1.3, Day: 1.2, Weather: 1.2, KnownPackage: true, KnownZone: true}, f)

	out := c.Classify(row)
	assert.InDelta(t, 128.04, out.TheoreticalMinutes, 1e-9)
	assert.InDelta(t, 153.648, c.DelayThreshold(out.TheoreticalMinutes), 1e-9)
	assert.Equal(t, StatusOnTime, out.Status)
}

func TestClassifier_PeakFactor(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	tests := []struct {
		hour   int
		factor float64
	}{
		{0, 1.0}, {6, 1.0}, {7, 1.3}, {8, 1.3}, {9, 1.3}, {10, 1.0},
		{16, 1.0}, {17, 1.4}, {19, 1.4}, {20, 1.0}, {23, 1.0},
	}
	for _, tt := range tests {
		row := classified(10, PackageSmall, ZoneSuburban, tt.hour, "Wednesday", nil, 0)
		assert.Equal(t, tt.factor, c.Factors(row).Peak, "hour %d", tt.hour)
	}
}

func TestClassifier_DayFactor(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	tests := map[string]float64{
		"Monday":    1.2,
		"Tuesday":   1.0,
		"Wednesday": 1.0,
		"Thursday":  1.0,
		"Friday":    1.2,
		"Saturday":  0.9,
		"Sunday":    0.9,
	}
	for day, factor := range tests {
		row := classified(10, PackageSmall, ZoneSuburban, 12, day, nil, 0)
		assert.Equal(t, factor, c.Factors(row).Day, day)
	}
}

func TestClassifier_WeatherFactor(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	tests := []struct {
		name      string
		condition *string
		factor    float64
	}{
		{"absent", nil, 1.0},
		{"sunny", strPtr("Sunny"), 1.0},
		{"light rain", strPtr("Light rain"), 1.2},
		{"drizzle", strPtr("Patchy light drizzle"), 1.2},
		{"heavy snow uppercase", strPtr("Heavy SNOW"), 1.8},
		{"blizzard", strPtr("Blizzard"), 1.8},
		{"sleet", strPtr("Light sleet showers"), 1.8},
		{"fog", strPtr("Freezing fog"), 1.1},
		{"mist", strPtr("Mist"), 1.1},
		{"rain listed before snow wins", strPtr("Moderate rain and snow"), 1.2},
		{"empty text", strPtr(""), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := classified(10, PackageSmall, ZoneSuburban, 12, "Wednesday", tt.condition, 0)
			assert.Equal(t, tt.factor, c.Factors(row).Weather)
		})
	}
}

func TestClassifier_TieBreakIsOnTime(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	row := classified(25, PackageSmall, ZoneSuburban, 12, "Wednesday", nil, 0)
	theoretical := c.TheoreticalMinutes(row)
	require.InDelta(t, 50.0, theoretical, 1e-9)

	threshold := c.DelayThreshold(theoretical)

	row.ActualDeliveryMinutes = threshold
	assert.Equal(t, StatusOnTime, c.Classify(row).Status)

	row.ActualDeliveryMinutes = math.Nextafter(threshold, math.Inf(1))
	assert.Equal(t, StatusDelayed, c.Classify(row).Status)
}

func TestClassifier_UnknownCategoriesUseNeutralFactor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewClassifier(DefaultCoefficients(), logger)

	batch := []EnrichedDelivery{
		classified(10, "Mystery", "Moon", 12, "Wednesday", nil, 30),
		classified(10, "Mystery", ZoneUrban, 12, "Wednesday", nil, 30),
		classified(10, PackageSmall, ZoneSuburban, 12, "Wednesday", nil, 30),
	}

	out, stats := c.ClassifyBatch(batch)
	require.Len(t, out, 3)

	f := c.Factors(batch[0])
	assert.Equal(t, 1.0, f.Package)
	assert.Equal(t, 1.0, f.Zone)
	assert.False(t, f.KnownPackage)
	assert.False(t, f.KnownZone)
	assert.InDelta(t, 38.0, out[0].TheoreticalMinutes, 1e-9)

	assert.Equal(t, map[string]int{"Mystery": 2}, stats.UnknownPackageTypes)
	assert.Equal(t, map[string]int{"Moon": 1}, stats.UnknownZones)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("unrecognized package type")))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("unrecognized delivery zone")))
}

func TestClassifier_ClassifyBatchCounts(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	batch := []EnrichedDelivery{
		classified(10, PackageSmall, ZoneSuburban, 12, "Wednesday", nil, 20),  // theoretical 38
		classified(10, PackageSmall, ZoneSuburban, 12, "Wednesday", nil, 300), // delayed
		classified(10, PackageSpecial, ZoneRural, 18, "Friday", strPtr("Snow"), 300),
	}

	out, stats := c.ClassifyBatch(batch)
	assert.Equal(t, []Status{StatusOnTime, StatusDelayed, StatusOnTime}, []Status{out[0].Status, out[1].Status, out[2].Status})
	assert.Equal(t, 2, stats.OnTime)
	assert.Equal(t, 1, stats.Delayed)
	assert.Empty(t, stats.UnknownPackageTypes)
	assert.Empty(t, stats.UnknownZones)
	assert.Empty(t, batch[0].Status, "input rows are not modified")
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	batch := []EnrichedDelivery{
		classified(12.34, PackageMedium, ZoneIndustrial, 7, "Monday", strPtr("Mist"), 61.5),
		classified(49.99, PackageExtraLarge, ZoneShoppingCenter, 19, "Sunday", nil, 200),
	}

	first, _ := c.ClassifyBatch(batch)
	second, _ := c.ClassifyBatch(batch)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("classification not deterministic (-first +second):\n%s", diff)
	}
}

func TestNewClassifier_OwnsCoefficients(t *testing.T) {
	coeffs := DefaultCoefficients()
	c := NewClassifier(coeffs, discardLogger())

	coeffs.PackageFactors[PackageSmall] = 10
	coeffs.PeakRules[0].Factor = 10

	row := classified(10, PackageSmall, ZoneSuburban, 8, "Wednesday", nil, 0)
	f := c.Factors(row)
	assert.Equal(t, 1.0, f.Package)
	assert.Equal(t, 1.3, f.Peak)
}

func TestClassifier_CustomCoefficients(t *testing.T) {
	coeffs := DefaultCoefficients()
	coeffs.PeakRules = append(coeffs.PeakRules, FactorRule[int]{Name: "night", Match: func(h int) bool { return h >= 20 || h < 7 }, Factor: 0.8})
	coeffs.DelayTolerance = 1.0
	c := NewClassifier(coeffs, discardLogger())

	row := classified(25, PackageSmall, ZoneSuburban, 22, "Wednesday", nil, 41)
	out := c.Classify(row)
	assert.InDelta(t, 40.0, out.TheoreticalMinutes, 1e-9)
	assert.Equal(t, StatusDelayed, out.Status)
}

func TestClassifier_IgnoresPickupTime(t *testing.T) {
	c := NewClassifier(DefaultCoefficients(), discardLogger())
	a := classified(10, PackageSmall, ZoneSuburban, 12, "Wednesday", nil, 40)
	b := a
	b.PickupTime = time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, c.Classify(a).TheoreticalMinutes, c.Classify(b).TheoreticalMinutes)
}
