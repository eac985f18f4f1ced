// Package raster converts PDF documents into per-page raster images.
//
// Rasterization is delegated to poppler's pdftoppm binary, invoked at a fixed
// DPI (default 300). The binary is an external collaborator: this package only
// owns the invocation, the collection of the page PNGs it writes, and their
// decoding into image.Image values for the downstream pipeline.
//
// A Page is immutable once produced and owned by the pipeline invocation that
// requested it; callers that want to keep the raw PNG bytes around (debug
// artifacts) read them from Page.PNG before the pipeline run ends.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"platmaster/internal/logger"
)

// Page is a decoded raster of one PDF page.
type Page struct {
	// Number is the 1-based page number within the source document.
	Number int

	// Image is the decoded page raster in page pixel coordinates.
	Image image.Image

	// PNG holds the encoded page image as written by the rasterizer.
	PNG []byte
}

// Config holds rasterizer settings.
type Config struct {
	// Pdftoppm is the binary name or absolute path (default "pdftoppm").
	Pdftoppm string

	// DPI is the rasterization resolution (default 300).
	DPI int
}

// Rasterizer renders PDF documents to page images via pdftoppm.
type Rasterizer struct {
	cfg    Config
	runner Runner
}

// NewRasterizer creates a Rasterizer with the given configuration and runner.
// A nil runner defaults to executing the real binary.
func NewRasterizer(cfg Config, runner Runner) *Rasterizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Rasterizer{cfg: cfg, runner: runner}
}

// RenderPages rasterizes every page of the PDF at the configured DPI and
// returns the pages in document order. A corrupt or unreadable PDF fails the
// whole document; sibling documents are unaffected because each call is
// independent.
func (r *Rasterizer) RenderPages(ctx context.Context, pdfPath string) ([]Page, error) {
	const op = "RenderPages"
	log := logger.WithComponent("raster")

	header, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, WrapRasterError(op, err, "failed to read PDF file")
	}
	if len(header) < 4 || string(header[:4]) != "%PDF" {
		return nil, WrapRasterError(op, ErrInvalidPDF, "missing PDF header")
	}

	tmpDir, err := os.MkdirTemp("", "platmaster-raster-*")
	if err != nil {
		return nil, WrapRasterError(op, err, "failed to create temp dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", tmpDir).Msg("Failed to remove raster temp dir")
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", r.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return nil, WrapRasterError(op, ErrRasterFailed, string(errb))
	}

	// pdftoppm writes prefix-1.png, prefix-2.png, ... (zero-padded for 10+ pages)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, WrapRasterError(op, ErrNoPages, "pdftoppm produced no images")
	}

	pages := make([]Page, 0, len(matches))
	for i, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapRasterError(op, err, fmt.Sprintf("failed to read page image %s", path))
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, WrapRasterError(op, err, fmt.Sprintf("failed to decode page image %s", path))
		}
		pages = append(pages, Page{Number: i + 1, Image: img, PNG: data})
	}

	log.Info().
		Str("file", filepath.Base(pdfPath)).
		Int("pages", len(pages)).
		Int("dpi", r.cfg.DPI).
		Msg("PDF rasterized")

	return pages, nil
}
