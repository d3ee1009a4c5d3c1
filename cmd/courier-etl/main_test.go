package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/adapter/file"
	"github.com/couchcryptid/courier-delay-etl/internal/config"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in       string
		postgres bool
		want     []string
		wantErr  bool
	}{
		{in: "", want: []string{"preview"}},
		{in: "preview", want: []string{"preview"}},
		{in: "csv", want: []string{"csv"}},
		{in: "CSV, ndjson,csv", want: []string{"csv", "ndjson"}},
		{in: "all", want: []string{"csv", "ndjson", "sqlite"}},
		{in: "all", postgres: true, want: []string{"csv", "ndjson", "sqlite", "postgres"}},
		{in: "parquet", wantErr: true},
		{in: "csv,preview", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormats(tt.in, tt.postgres)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewExtractor(t *testing.T) {
	e, err := newExtractor(options{source: "generator", rows: 3, seed: 1})
	require.NoError(t, err)
	assert.Equal(t, "generator(rows=3)", e.Describe())

	_, err = newExtractor(options{source: "file"})
	assert.ErrorContains(t, err, "-input")

	_, err = newExtractor(options{source: "kafka"})
	assert.Error(t, err)
}

func TestRun_GeneratorToFiles(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.August, 31, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	base := filepath.Join(t.TempDir(), "out", "deliveries")
	cfg := &config.Config{TransformTimeout: time.Minute}
	opts := options{source: "generator", rows: 50, seed: 7, format: "all", output: base}

	require.NoError(t, run(context.Background(), cfg, opts, slog.New(slog.NewTextHandler(io.Discard, nil))))

	for _, suffix := range []string{".csv", ".ndjson", ".db", "_manifest.json"} {
		_, err := os.Stat(base + suffix)
		assert.NoError(t, err, suffix)
	}

	m, err := file.ReadManifest(base + "_manifest.json")
	require.NoError(t, err)
	assert.Equal(t, 50, m.Shape.Rows)
	assert.Equal(t, 14, m.Shape.Columns)
	assert.Equal(t, 50, m.Summary.OnTime+m.Summary.Delayed)
	assert.Equal(t, 50, m.Summary.RowsWithoutWeather)
	assert.Equal(t, "generator(rows=50)", m.Source)
	assert.Equal(t, []string{base + ".csv", base + ".ndjson", "sqlite:" + base + ".db"}, m.Outputs)

	rows, err := file.ReadDeliveries(base + ".ndjson")
	require.NoError(t, err)
	assert.Len(t, rows, 50)
}
