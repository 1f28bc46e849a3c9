// Package render converts filled slide decks into per-slide PNG images by
// driving LibreOffice through its headless command-line interface.
package render

import (
	"context"
	"errors"
)

// ErrRender is returned when the external renderer fails. Render failures
// are fatal for the row being processed, never for the batch.
var ErrRender = errors.New("render failed")

// Renderer converts a deck file into one PNG per slide inside outDir and
// returns the image paths in slide order.
type Renderer interface {
	Render(ctx context.Context, deckPath, outDir string) ([]string, error)
}
