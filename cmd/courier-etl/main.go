// Command courier-etl runs the delivery ETL once: extract from the generator
// or a file, enrich and classify, write the requested outputs and a manifest.
//
// Usage:
//
//	go run ./cmd/courier-etl -source generator -rows 5000 -format all -output output/deliveries
//	go run ./cmd/courier-etl -source file -input data/deliveries.csv -format csv,ndjson
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/couchcryptid/courier-delay-etl/internal/adapter/file"
	"github.com/couchcryptid/courier-delay-etl/internal/adapter/generator"
	"github.com/couchcryptid/courier-delay-etl/internal/app"
	"github.com/couchcryptid/courier-delay-etl/internal/config"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
	"github.com/couchcryptid/courier-delay-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

// Output formats accepted by -format.
const (
	formatCSV      = "csv"
	formatNDJSON   = "ndjson"
	formatSQLite   = "sqlite"
	formatPostgres = "postgres"
	formatAll      = "all"
	formatPreview  = "preview"
)

var knownFormats = []string{formatCSV, formatNDJSON, formatSQLite, formatPostgres}

type options struct {
	source      string
	rows        int
	input       string
	format      string
	output      string
	seed        uint64
	previewRows int
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.source, "source", "generator", "data source: generator or file")
	flag.IntVar(&opts.rows, "rows", 1000, "rows to generate when -source=generator")
	flag.StringVar(&opts.input, "input", "", "source file (.csv, .json, .ndjson) when -source=file")
	flag.StringVar(&opts.format, "format", formatPreview, "comma-separated outputs: csv, ndjson, sqlite, postgres, all, or preview")
	flag.StringVar(&opts.output, "output", "output/deliveries", "base path for output files and the manifest")
	flag.Uint64Var(&opts.seed, "seed", 0, "generator seed (0 picks one from the clock)")
	flag.IntVar(&opts.previewRows, "preview-rows", 5, "rows logged by the preview output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	formats, err := parseFormats(opts.format, cfg.PostgresURL != "")
	if err != nil {
		return err
	}
	if slices.Contains(formats, formatSQLite) {
		cfg.SQLitePath = opts.output + ".db"
	}

	extractor, err := newExtractor(opts)
	if err != nil {
		return err
	}

	metrics := observability.NewUnregisteredMetrics()
	resources := app.New(cfg, metrics, logger)
	defer func() {
		if err := resources.Close(); err != nil {
			logger.Warn("resource close error", "error", err)
		}
	}()

	transformer, err := resources.Transformer(ctx)
	if err != nil {
		return err
	}

	loaders, err := buildLoaders(ctx, resources, formats, opts, logger)
	if err != nil {
		return err
	}

	runOpts := []pipeline.RunnerOption{
		pipeline.WithManifestWriter(file.NewManifestWriter(opts.output)),
		pipeline.WithTransformTimeout(cfg.TransformTimeout),
	}
	if cfg.WeatherEnabled {
		runOpts = append(runOpts, pipeline.WithWeatherLocation(cfg.WeatherLocation))
	}
	notifier, err := resources.Notifier()
	if err != nil {
		logger.Warn("rabbitmq unavailable, manifest will not be published", "error", err)
	} else if notifier != nil {
		runOpts = append(runOpts, pipeline.WithNotifier(notifier))
	}

	manifest, err := pipeline.NewRunner(extractor, transformer, loaders, logger, metrics, runOpts...).Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("manifest written", "path", file.ManifestPath(opts.output), "run_id", manifest.RunID)
	return nil
}

func newExtractor(opts options) (pipeline.Extractor, error) {
	switch opts.source {
	case "generator":
		seed := opts.seed
		if seed == 0 {
			seed = uint64(domain.Clock().Now().UnixNano())
		}
		return generator.New(opts.rows, seed), nil
	case "file":
		if opts.input == "" {
			return nil, errors.New("-input is required when -source=file")
		}
		return file.NewReader(opts.input)
	default:
		return nil, fmt.Errorf("unknown source %q: want generator or file", opts.source)
	}
}

// parseFormats expands the -format flag. "all" includes postgres only when a
// warehouse URL is configured.
func parseFormats(s string, postgresEnabled bool) ([]string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", formatPreview:
		return []string{formatPreview}, nil
	case formatAll:
		out := []string{formatCSV, formatNDJSON, formatSQLite}
		if postgresEnabled {
			out = append(out, formatPostgres)
		}
		return out, nil
	}

	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if !slices.Contains(knownFormats, f) {
			return nil, fmt.Errorf("unknown output format %q", f)
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func buildLoaders(ctx context.Context, resources *app.Resources, formats []string, opts options, logger *slog.Logger) (pipeline.MultiLoader, error) {
	var loaders pipeline.MultiLoader
	for _, f := range formats {
		switch f {
		case formatPreview:
			loaders = append(loaders, pipeline.NamedLoader{Name: formatPreview, Loader: pipeline.NewPreviewLoader(logger, opts.previewRows)})
		case formatCSV:
			w := file.NewCSVWriter(opts.output)
			loaders = append(loaders, pipeline.NamedLoader{Name: w.Path(), Loader: w})
		case formatNDJSON:
			w := file.NewNDJSONWriter(opts.output)
			loaders = append(loaders, pipeline.NamedLoader{Name: w.Path(), Loader: w})
		case formatSQLite:
			l, err := resources.SQLiteSink(ctx)
			if err != nil {
				return nil, err
			}
			loaders = append(loaders, l)
		case formatPostgres:
			l, err := resources.PostgresSink(ctx)
			if err != nil {
				return nil, err
			}
			loaders = append(loaders, l)
		}
	}
	return loaders, nil
}
