// Package annotate persists per-page debug artifacts: the rasterized input,
// an overlay of recognized boxes, the merged OCR text, and the final record.
package annotate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"platmaster/internal/detect"
	"platmaster/internal/logger"
)

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}

// Sink writes artifacts for one document into a directory. A nil Sink is a
// no-op, so the pipeline can carry one unconditionally.
type Sink struct {
	dir  string
	base string
	log  zerolog.Logger
}

// NewSink creates a sink for the document with the given base name (the
// source file name without extension). The directory is created if needed.
func NewSink(dir, base string) (*Sink, error) {
	const op = "NewSink"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create artifact directory: %w", op, err)
	}
	return &Sink{
		dir:  dir,
		base: base,
		log:  logger.WithComponent("annotate"),
	}, nil
}

// SavePageInput writes the rasterized page as <base>_pageN_input.png.
func (s *Sink) SavePageInput(page int, pngData []byte) {
	if s == nil {
		return
	}
	s.write(s.pageName(page, "input.png"), pngData)
}

// SaveBoxes draws the recognized blocks over the page image and writes
// <base>_pageN_boxes.png. Each box carries its text and confidence score.
func (s *Sink) SaveBoxes(page int, img image.Image, blocks []detect.Block) {
	if s == nil {
		return
	}

	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)
	for _, b := range blocks {
		drawRect(canvas, b.Box)
		label := fmt.Sprintf("%s (%.2f)", firstLine(b.Text), b.Confidence)
		drawLabel(canvas, b.Box.Min.X, b.Box.Min.Y-4, label)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		s.log.Warn().Err(err).Int("page", page).Msg("Failed to encode box overlay")
		return
	}
	s.write(s.pageName(page, "boxes.png"), buf.Bytes())
}

// SaveMergedText writes the consolidated OCR text as
// <base>_pageN_ocr_merged.txt.
func (s *Sink) SaveMergedText(page int, text string) {
	if s == nil {
		return
	}
	s.write(s.pageName(page, "ocr_merged.txt"), []byte(text))
}

// SavePageResult writes the extracted record for one page as
// <base>_pageN.json.
func (s *Sink) SavePageResult(page int, result any) {
	if s == nil {
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		s.log.Warn().Err(err).Int("page", page).Msg("Failed to serialize page result")
		return
	}
	s.write(fmt.Sprintf("%s_page%d.json", s.base, page), data)
}

// SaveResult writes the final document result as <base>.json.
func (s *Sink) SaveResult(result any) {
	if s == nil {
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to serialize result")
		return
	}
	s.write(s.base+".json", data)
}

func (s *Sink) pageName(page int, suffix string) string {
	return fmt.Sprintf("%s_page%d_%s", s.base, page, suffix)
}

func (s *Sink) write(name string, data []byte) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to write artifact")
		return
	}
	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Wrote artifact")
}

func drawRect(canvas *image.RGBA, r image.Rectangle) {
	for x := r.Min.X; x < r.Max.X; x++ {
		canvas.Set(x, r.Min.Y, boxColor)
		canvas.Set(x, r.Max.Y-1, boxColor)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		canvas.Set(r.Min.X, y, boxColor)
		canvas.Set(r.Max.X-1, y, boxColor)
	}
}

func drawLabel(canvas *image.RGBA, x, y int, label string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(boxColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	const max = 48
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
