package detect

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"platmaster/internal/logger"
	"platmaster/internal/raster"
)

// TesseractConfig holds Tesseract backend configuration.
type TesseractConfig struct {
	// Language is the Tesseract language code (default "eng").
	Language string
}

// TesseractBackend is a combined detect+recognize backend over a local
// Tesseract install. The underlying client holds per-image state, so page
// submissions are serialized behind a mutex: one page at a time, per the
// shared-singleton model of the engine.
type TesseractBackend struct {
	mu     sync.Mutex
	client *gosseract.Client
	closed bool
}

// NewTesseractBackend creates a Tesseract backend. The caller owns the
// returned backend and must Close it.
func NewTesseractBackend(cfg TesseractConfig) (*TesseractBackend, error) {
	const op = "NewTesseractBackend"

	if cfg.Language == "" {
		cfg.Language = "eng"
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, WrapBackendError(op, err, "failed to set language "+cfg.Language)
	}

	return &TesseractBackend{client: client}, nil
}

// DetectRegions reports one region per recognized text line. Tesseract does
// not classify layout at this API level, so every region is CategoryText.
func (t *TesseractBackend) DetectRegions(ctx context.Context, page raster.Page) ([]Region, error) {
	const op = "DetectRegions"

	lines, err := t.lineBoxes(ctx, page.PNG)
	if err != nil {
		return nil, WrapBackendError(op, ErrDetectionFailed, err.Error())
	}

	regions := make([]Region, 0, len(lines))
	for _, box := range lines {
		regions = append(regions, Region{
			Box:        box.Box,
			Category:   CategoryText,
			Confidence: box.Confidence / 100,
		})
	}
	return regions, nil
}

// ReadBlocks recognizes text line by line across the whole page, or within
// the given crop rectangles. Blank blocks are dropped.
func (t *TesseractBackend) ReadBlocks(ctx context.Context, page raster.Page, crops []image.Rectangle) ([]Block, error) {
	const op = "ReadBlocks"
	log := logger.WithComponent("tesseract")

	if crops == nil {
		lines, err := t.lineBoxes(ctx, page.PNG)
		if err != nil {
			return nil, WrapBackendError(op, ErrRecognitionFailed, err.Error())
		}
		blocks := make([]Block, 0, len(lines))
		for _, box := range lines {
			blocks = append(blocks, Block{
				Box:        box.Box,
				Text:       box.Word,
				Confidence: box.Confidence / 100,
			})
		}
		return dropBlank(blocks), nil
	}

	blocks := make([]Block, 0, len(crops))
	for _, crop := range crops {
		data, err := cropPNG(page.Image, crop)
		if err != nil {
			return nil, WrapBackendError(op, err, "failed to crop page image")
		}

		lines, err := t.lineBoxes(ctx, data)
		if err != nil {
			return nil, WrapBackendError(op, ErrRecognitionFailed, err.Error())
		}

		var (
			text strings.Builder
			sum  float64
		)
		for i, box := range lines {
			if i > 0 {
				text.WriteString("\n")
			}
			text.WriteString(box.Word)
			sum += box.Confidence / 100
		}

		confidence := 0.0
		if len(lines) > 0 {
			confidence = sum / float64(len(lines))
		}

		log.Debug().
			Int("page", page.Number).
			Str("crop", crop.String()).
			Int("lines", len(lines)).
			Float64("confidence", confidence).
			Msg("Cluster crop recognized")

		blocks = append(blocks, Block{Box: crop, Text: text.String(), Confidence: confidence})
	}

	return dropBlank(blocks), nil
}

// lineBoxes runs Tesseract over one PNG image and returns text-line boxes.
func (t *TesseractBackend) lineBoxes(ctx context.Context, pngData []byte) ([]gosseract.BoundingBox, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := t.client.SetImageFromBytes(pngData); err != nil {
		return nil, err
	}
	return t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
}

// Close releases the Tesseract client.
func (t *TesseractBackend) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.client.Close()
}

// cropPNG encodes the given sub-rectangle of img as a standalone PNG.
func cropPNG(img image.Image, rect image.Rectangle) ([]byte, error) {
	rect = rect.Intersect(img.Bounds())

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}

	var crop image.Image
	if si, ok := img.(subImager); ok {
		crop = si.SubImage(rect)
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
		crop = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
