package orchestrators

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"certmill/internal/adapters/deck"
	"certmill/internal/adapters/render"
	"certmill/internal/domain/roster"
)

// PreviewInput carries input for rendering a single row's certificate
// without sending anything.
type PreviewInput struct {
	TemplatePath string
	Row          roster.Row
	OutDir       string // created if absent; images land here and are kept for the caller
}

// PreviewDeps holds dependencies for the preview orchestrator.
type PreviewDeps struct {
	Renderer render.Renderer
}

// ExecutePreview fills the template for one row and renders it, returning
// the first slide image. No email is sent and no delivery log is written.
// PRE: deps.Renderer is set; input.OutDir is non-empty
// POST: OutDir contains the rendered slides; returns the first image path
func ExecutePreview(ctx context.Context, input PreviewInput, deps PreviewDeps) (string, error) {
	if input.OutDir == "" {
		return "", errors.New("preview output directory is required")
	}

	template, err := deck.Open(input.TemplatePath)
	if err != nil {
		return "", err
	}

	scratch, err := os.MkdirTemp("", "certmill-preview-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(scratch)

	filled := template.Fill(input.Row.Values)
	filledPath := filepath.Join(scratch, input.Row.PathName()+".pptx")
	if err := filled.Save(filledPath); err != nil {
		return "", err
	}

	images, err := deps.Renderer.Render(ctx, filledPath, input.OutDir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", errors.New("renderer produced no images")
	}
	return images[0], nil
}
