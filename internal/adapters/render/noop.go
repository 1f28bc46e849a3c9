package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// placeholderPNG is a 1x1 transparent PNG used for dry-run output.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// NoopRenderer writes a single placeholder image instead of driving
// LibreOffice. Used for dry runs and tests.
type NoopRenderer struct{}

// NewNoopRenderer creates a new NoopRenderer.
func NewNoopRenderer() *NoopRenderer {
	return &NoopRenderer{}
}

// Render writes one placeholder PNG into outDir.
// PRE: deckPath exists
// POST: outDir contains slide-0001.png; no external process is started
func (r *NoopRenderer) Render(_ context.Context, deckPath, outDir string) ([]string, error) {
	if _, err := os.Stat(deckPath); err != nil {
		return nil, fmt.Errorf("%w: source deck: %v", ErrRender, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrRender, err)
	}
	dst := filepath.Join(outDir, SlideImageName(0))
	if err := os.WriteFile(dst, placeholderPNG, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write placeholder image: %v", ErrRender, err)
	}
	slog.Info("noop_render", "deck", deckPath, "out_dir", outDir)
	return []string{dst}, nil
}
