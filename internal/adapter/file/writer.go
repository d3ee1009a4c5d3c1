package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// CSVWriter writes enriched deliveries to <base>.csv with a header row.
// Each LoadBatch replaces the file. It implements pipeline.BatchLoader.
type CSVWriter struct {
	path string
}

// NewCSVWriter creates a CSVWriter for the given base path.
func NewCSVWriter(base string) *CSVWriter {
	return &CSVWriter{path: base + ".csv"}
}

// Path returns the output file path.
func (w *CSVWriter) Path() string { return w.path }

func (w *CSVWriter) LoadBatch(_ context.Context, rows []domain.EnrichedDelivery) error {
	f, err := create(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(domain.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return f.Close()
}

// csvRecord renders a row in domain.Columns order. An absent weather
// condition is an empty cell.
func csvRecord(r domain.EnrichedDelivery) []string {
	return []string{
		r.ID,
		r.PickupTime.Format(time.RFC3339),
		r.DeliveryTime.Format(time.RFC3339),
		r.PackageType,
		formatFloat(r.DistanceKm),
		r.Zone,
		strconv.Itoa(r.Hour),
		r.Weekday,
		r.DayType,
		r.WeatherConditionOrEmpty(),
		formatFloat(r.ActualDeliveryMinutes),
		r.ActualDeliveryDisplay,
		formatFloat(r.TheoreticalMinutes),
		string(r.Status),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NDJSONWriter writes one JSON object per line to <base>.ndjson.
// Each LoadBatch replaces the file. It implements pipeline.BatchLoader.
type NDJSONWriter struct {
	path string
}

// NewNDJSONWriter creates an NDJSONWriter for the given base path.
func NewNDJSONWriter(base string) *NDJSONWriter {
	return &NDJSONWriter{path: base + ".ndjson"}
}

// Path returns the output file path.
func (w *NDJSONWriter) Path() string { return w.path }

func (w *NDJSONWriter) LoadBatch(_ context.Context, rows []domain.EnrichedDelivery) error {
	f, err := create(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row %s: %w", row.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return f.Close()
}

// ReadDeliveries decodes an NDJSON file produced by NDJSONWriter.
func ReadDeliveries(path string) ([]domain.EnrichedDelivery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []domain.EnrichedDelivery
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var row domain.EnrichedDelivery
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", path, len(out)+1, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
