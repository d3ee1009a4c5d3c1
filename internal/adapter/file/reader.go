// Package file reads raw deliveries from and writes enriched deliveries to
// local CSV and JSON files.
package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// Format identifies a file encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
)

// ErrUnsupportedFormat is returned for file extensions with no reader.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// requiredColumns are the input columns every record must carry.
var requiredColumns = []string{"Delivery_ID", "Pickup_DateTime", "Delivery_Timestamp", "Package_Type", "Distance", "Delivery_Zone"}

// Reader loads every delivery in a CSV, JSON array or NDJSON file.
// It implements pipeline.Extractor.
type Reader struct {
	path   string
	format Format
}

// NewReader picks the format from the file extension: .csv for CSV and
// .json, .ndjson or .jsonl for JSON.
func NewReader(path string) (*Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &Reader{path: path, format: FormatCSV}, nil
	case ".json", ".ndjson", ".jsonl":
		return &Reader{path: path, format: FormatNDJSON}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Describe implements pipeline.Extractor.
func (r *Reader) Describe() string {
	return "file:" + r.path
}

// Extract implements pipeline.Extractor.
func (r *Reader) Extract(_ context.Context) ([]domain.DeliveryRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var raws []domain.RawDeliveryRecord
	if r.format == FormatCSV {
		raws, err = readCSV(f)
	} else {
		raws, err = readJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	records := make([]domain.DeliveryRecord, 0, len(raws))
	for i, raw := range raws {
		if col := missingColumn(raw); col != "" {
			return nil, fmt.Errorf("read %s: record %d: missing column %s", r.path, i+1, col)
		}
		rec, err := domain.ParseRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("read %s: record %d: %w", r.path, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readCSV(r io.Reader) ([]domain.RawDeliveryRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	var out []domain.RawDeliveryRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RawDeliveryRecord{
			ID:          row[idx["Delivery_ID"]],
			Pickup:      row[idx["Pickup_DateTime"]],
			Delivery:    row[idx["Delivery_Timestamp"]],
			PackageType: row[idx["Package_Type"]],
			Distance:    json.Number(strings.TrimSpace(row[idx["Distance"]])),
			Zone:        row[idx["Delivery_Zone"]],
		})
	}
	return out, nil
}

// readJSON accepts a JSON array of objects or one object per line.
func readJSON(r io.Reader) ([]domain.RawDeliveryRecord, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var out []domain.RawDeliveryRecord
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return out, nil
	}

	var out []domain.RawDeliveryRecord
	for {
		var rec domain.RawDeliveryRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
}

// missingColumn names the first required column that is absent or blank in
// raw, or returns "" when the record is complete.
func missingColumn(raw domain.RawDeliveryRecord) string {
	values := []string{raw.ID, raw.Pickup, raw.Delivery, raw.PackageType, raw.Distance.String(), raw.Zone}
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			return requiredColumns[i]
		}
	}
	return ""
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
