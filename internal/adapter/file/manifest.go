package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
)

// ManifestWriter writes run manifests to <base>_manifest.json.
// It implements pipeline.ManifestWriter.
type ManifestWriter struct {
	path string
}

// NewManifestWriter creates a ManifestWriter for the given base path.
func NewManifestWriter(base string) *ManifestWriter {
	return &ManifestWriter{path: ManifestPath(base)}
}

// ManifestPath returns the manifest location for an output base path.
func ManifestPath(base string) string {
	return base + "_manifest.json"
}

func (w *ManifestWriter) WriteManifest(_ context.Context, m domain.Manifest) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	f, err := create(w.path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return f.Close()
}

// ReadManifest decodes a manifest written by ManifestWriter.
func ReadManifest(path string) (domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}
