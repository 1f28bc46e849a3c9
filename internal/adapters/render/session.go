package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Session is one logical LibreOffice rendering session. It owns a private
// user-profile directory so concurrent soffice instances on the same
// machine cannot corrupt each other's state. The orchestrator opens one
// session per batch, renders rows through it strictly one at a time, and
// closes it when the batch ends.
type Session struct {
	soffice    string
	pdftoppm   string
	profileDir string
	dpi        int
}

// Option configures a Session.
type Option func(*Session)

// WithBinaries overrides the soffice and pdftoppm executables.
func WithBinaries(soffice, pdftoppm string) Option {
	return func(s *Session) {
		if soffice != "" {
			s.soffice = soffice
		}
		if pdftoppm != "" {
			s.pdftoppm = pdftoppm
		}
	}
}

// WithDPI overrides the raster resolution.
func WithDPI(dpi int) Option {
	return func(s *Session) {
		if dpi > 0 {
			s.dpi = dpi
		}
	}
}

// NewSession initializes a rendering session with a fresh profile directory.
// PRE: LibreOffice and poppler-utils are installed and on PATH (or set via WithBinaries)
// POST: Returns a ready session; Close must be called to release the profile
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{soffice: "soffice", pdftoppm: "pdftoppm", dpi: 150}
	for _, opt := range opts {
		opt(s)
	}
	profile, err := os.MkdirTemp("", "certmill-lo-profile-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create profile dir: %v", ErrRender, err)
	}
	s.profileDir = profile
	slog.Info("render_session_opened", "profile", profile, "soffice", s.soffice)
	return s, nil
}

// Close tears the session down and removes its profile directory.
// PRE: s was created by NewSession
// POST: The profile directory is removed; the session is unusable afterwards
func (s *Session) Close() error {
	if s.profileDir == "" {
		return nil
	}
	err := os.RemoveAll(s.profileDir)
	s.profileDir = ""
	slog.Info("render_session_closed")
	return err
}

// Render converts the deck at deckPath into one PNG per slide under outDir.
// Conversion is two-stage — soffice to PDF, then pdftoppm to page images —
// because a direct PNG export only covers the first slide. Output files are
// named slide-0001.png, slide-0002.png, ... so lexical order is slide order.
// PRE: deckPath exists; the session is open
// POST: outDir exists and contains the page images; prior contents are kept
func (s *Session) Render(ctx context.Context, deckPath, outDir string) ([]string, error) {
	if _, err := os.Stat(deckPath); err != nil {
		return nil, fmt.Errorf("%w: source deck: %v", ErrRender, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrRender, err)
	}

	workDir, err := os.MkdirTemp("", "certmill-render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", ErrRender, err)
	}
	defer os.RemoveAll(workDir)

	convert := exec.CommandContext(ctx, s.soffice,
		"--headless", "--norestore",
		"-env:UserInstallation=file://"+s.profileDir,
		"--convert-to", "pdf",
		"--outdir", workDir,
		deckPath,
	)
	if out, err := convert.CombinedOutput(); err != nil {
		slog.Error("render_convert_failed", "deck", deckPath, "err", err, "output", strings.TrimSpace(string(out)))
		return nil, fmt.Errorf("%w: soffice convert: %v", ErrRender, err)
	}

	base := strings.TrimSuffix(filepath.Base(deckPath), filepath.Ext(deckPath))
	pdfPath := filepath.Join(workDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("%w: soffice produced no pdf for %s", ErrRender, deckPath)
	}

	prefix := filepath.Join(workDir, "page")
	raster := exec.CommandContext(ctx, s.pdftoppm, "-png", "-r", strconv.Itoa(s.dpi), pdfPath, prefix)
	if out, err := raster.CombinedOutput(); err != nil {
		slog.Error("render_raster_failed", "deck", deckPath, "err", err, "output", strings.TrimSpace(string(out)))
		return nil, fmt.Errorf("%w: pdftoppm: %v", ErrRender, err)
	}

	pages, err := collectPages(prefix)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no page images produced for %s", ErrRender, deckPath)
	}

	images := make([]string, 0, len(pages))
	for i, page := range pages {
		dst := filepath.Join(outDir, SlideImageName(i))
		if err := os.Rename(page, dst); err != nil {
			// Rename fails across filesystems; fall back to copy-by-read.
			data, readErr := os.ReadFile(page)
			if readErr != nil {
				return nil, fmt.Errorf("%w: move page image: %v", ErrRender, readErr)
			}
			if writeErr := os.WriteFile(dst, data, 0o644); writeErr != nil {
				return nil, fmt.Errorf("%w: move page image: %v", ErrRender, writeErr)
			}
		}
		images = append(images, dst)
	}

	slog.Info("render_done", "deck", deckPath, "slides", len(images), "out_dir", outDir)
	return images, nil
}

// SlideImageName returns the canonical file name for the i-th slide image.
// PRE: i >= 0
// POST: Names sort lexically in slide order for any deck under 10000 slides
func SlideImageName(i int) string {
	return fmt.Sprintf("slide-%04d.png", i+1)
}

var pageSuffix = regexp.MustCompile(`-([0-9]+)\.png$`)

// collectPages globs pdftoppm output for prefix and returns the page files
// sorted by page number. pdftoppm pads page numbers to the page-count width,
// so a plain lexical sort would misorder decks crossing a padding boundary.
func collectPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("%w: glob page images: %v", ErrRender, err)
	}
	type page struct {
		num  int
		path string
	}
	var pages []page
	for _, m := range matches {
		sm := pageSuffix.FindStringSubmatch(m)
		if sm == nil {
			continue
		}
		n, _ := strconv.Atoi(sm[1])
		pages = append(pages, page{num: n, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.path)
	}
	return out, nil
}
