package domain

import (
	"log/slog"
	"maps"
	"regexp"
	"slices"
)

// FactorRule pairs a predicate with the multiplier applied when it matches.
// Rule lists are evaluated in order and the first match wins.
type FactorRule[T any] struct {
	Name   string
	Match  func(T) bool
	Factor float64
}

func firstMatch[T any](rules []FactorRule[T], v T, fallback float64) float64 {
	for _, r := range rules {
		if r.Match(v) {
			return r.Factor
		}
	}
	return fallback
}

// HourBetween matches hours in [from, to], inclusive at both ends.
func HourBetween(from, to int) func(int) bool {
	return func(h int) bool { return h >= from && h <= to }
}

// WeekdayIn matches any of the given day names.
func WeekdayIn(days ...string) func(string) bool {
	return func(d string) bool { return slices.Contains(days, d) }
}

// ConditionMatches matches condition text against a case-insensitive pattern.
func ConditionMatches(pattern string) func(string) bool {
	re := regexp.MustCompile("(?i)" + pattern)
	return re.MatchString
}

// Coefficients is the full parameter set of the delay model.
type Coefficients struct {
	BaseMinutes    float64
	MinutesPerKm   float64
	DelayTolerance float64

	PackageFactors map[string]float64
	ZoneFactors    map[string]float64

	PeakRules    []FactorRule[int]
	DayRules     []FactorRule[string]
	WeatherRules []FactorRule[string]
}

// DefaultCoefficients returns the production delay model.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		BaseMinutes:    30,
		MinutesPerKm:   0.8,
		DelayTolerance: 1.2,
		PackageFactors: map[string]float64{
			PackageSmall:      1.0,
			PackageMedium:     1.2,
			PackageLarge:      1.5,
			PackageExtraLarge: 2.0,
			PackageSpecial:    2.5,
		},
		ZoneFactors: map[string]float64{
			ZoneUrban:          1.2,
			ZoneSuburban:       1.0,
			ZoneRural:          1.3,
			ZoneIndustrial:     0.9,
			ZoneShoppingCenter: 1.4,
		},
		PeakRules: []FactorRule[int]{
			{Name: "morning peak", Match: HourBetween(7, 9), Factor: 1.3},
			{Name: "evening peak", Match: HourBetween(17, 19), Factor: 1.4},
		},
		DayRules: []FactorRule[string]{
			{Name: "busy weekday", Match: WeekdayIn("Monday", "Friday"), Factor: 1.2},
			{Name: "weekend", Match: WeekdayIn("Saturday", "Sunday"), Factor: 0.9},
		},
		WeatherRules: []FactorRule[string]{
			{Name: "rain", Match: ConditionMatches(`rain|drizzle`), Factor: 1.2},
			{Name: "snow", Match: ConditionMatches(`snow|blizzard|sleet`), Factor: 1.8},
			{Name: "fog", Match: ConditionMatches(`fog|mist`), Factor: 1.1},
		},
	}
}

// Factors holds every multiplier applied to one delivery.
type Factors struct {
	Package float64
	Zone    float64
	Peak    float64
	Day     float64
	Weather float64

	KnownPackage bool
	KnownZone    bool
}

// ClassificationStats counts the outcome of classifying a batch.
type ClassificationStats struct {
	OnTime              int
	Delayed             int
	UnknownPackageTypes map[string]int
	UnknownZones        map[string]int
}

// Classifier applies the delay model to enriched deliveries.
type Classifier struct {
	coeffs Coefficients
	logger *slog.Logger
}

// NewClassifier creates a Classifier that owns a private copy of coeffs.
func NewClassifier(coeffs Coefficients, logger *slog.Logger) *Classifier {
	coeffs.PackageFactors = maps.Clone(coeffs.PackageFactors)
	coeffs.ZoneFactors = maps.Clone(coeffs.ZoneFactors)
	coeffs.PeakRules = slices.Clone(coeffs.PeakRules)
	coeffs.DayRules = slices.Clone(coeffs.DayRules)
	coeffs.WeatherRules = slices.Clone(coeffs.WeatherRules)
	return &Classifier{coeffs: coeffs, logger: logger}
}

// Factors looks up every multiplier for a row. Requires Hour, Weekday and
// WeatherCondition to be populated.
func (c *Classifier) Factors(row EnrichedDelivery) Factors {
	f := Factors{Package: 1.0, Zone: 1.0, Weather: 1.0}
	if v, ok := c.coeffs.PackageFactors[row.PackageType]; ok {
		f.Package, f.KnownPackage = v, true
	}
	if v, ok := c.coeffs.ZoneFactors[row.Zone]; ok {
		f.Zone, f.KnownZone = v, true
	}
	f.Peak = firstMatch(c.coeffs.PeakRules, row.Hour, 1.0)
	f.Day = firstMatch(c.coeffs.DayRules, row.Weekday, 1.0)
	if row.WeatherCondition != nil {
		f.Weather = firstMatch(c.coeffs.WeatherRules, *row.WeatherCondition, 1.0)
	}
	return f
}

// TheoreticalMinutes is the model's expected delivery time, rounded to 2 dp.
func (c *Classifier) TheoreticalMinutes(row EnrichedDelivery) float64 {
	return c.theoretical(row, c.Factors(row))
}

func (c *Classifier) theoretical(row EnrichedDelivery, f Factors) float64 {
	base := c.coeffs.BaseMinutes + row.DistanceKm*c.coeffs.MinutesPerKm
	return round2(base * f.Package * f.Zone * f.Peak * f.Day * f.Weather)
}

// DelayThreshold is the actual duration above which a delivery counts as delayed.
func (c *Classifier) DelayThreshold(theoretical float64) float64 {
	return theoretical * c.coeffs.DelayTolerance
}

// Classify sets TheoreticalMinutes and Status on a single row.
func (c *Classifier) Classify(row EnrichedDelivery) EnrichedDelivery {
	return c.classify(row, c.Factors(row))
}

func (c *Classifier) classify(row EnrichedDelivery, f Factors) EnrichedDelivery {
	row.TheoreticalMinutes = c.theoretical(row, f)
	row.Status = StatusOnTime
	if row.ActualDeliveryMinutes > c.DelayThreshold(row.TheoreticalMinutes) {
		row.Status = StatusDelayed
	}
	return row
}

// ClassifyBatch classifies every row independently. Unknown package types and
// zones are logged once per distinct value and counted in the stats.
func (c *Classifier) ClassifyBatch(batch []EnrichedDelivery) ([]EnrichedDelivery, ClassificationStats) {
	stats := ClassificationStats{
		UnknownPackageTypes: map[string]int{},
		UnknownZones:        map[string]int{},
	}
	out := make([]EnrichedDelivery, len(batch))
	for i, row := range batch {
		f := c.Factors(row)
		if !f.KnownPackage {
			stats.UnknownPackageTypes[row.PackageType]++
		}
		if !f.KnownZone {
			stats.UnknownZones[row.Zone]++
		}
		row = c.classify(row, f)
		if row.Status == StatusDelayed {
			stats.Delayed++
		} else {
			stats.OnTime++
		}
		out[i] = row
	}

	for _, v := range slices.Sorted(maps.Keys(stats.UnknownPackageTypes)) {
		c.logger.Warn("unrecognized package type, using neutral factor",
			"package_type", v, "rows", stats.UnknownPackageTypes[v])
	}
	for _, v := range slices.Sorted(maps.Keys(stats.UnknownZones)) {
		c.logger.Warn("unrecognized delivery zone, using neutral factor",
			"delivery_zone", v, "rows", stats.UnknownZones[v])
	}
	return out, stats
}
