// Package pipeline runs the full plat processing chain: rasterize the PDF,
// detect text regions per page, optionally cluster them, recognize text,
// consolidate it, and extract a structured record per page.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"platmaster/internal/annotate"
	"platmaster/internal/cluster"
	"platmaster/internal/detect"
	"platmaster/internal/extract"
	"platmaster/internal/logger"
	"platmaster/internal/raster"
	"platmaster/pkg/models"
)

// Config controls the per-page processing chain.
type Config struct {
	// ClusterEnabled groups detected regions into merged crops before
	// recognition. When off, the reader processes the whole page directly.
	ClusterEnabled bool
	// ClusterParams tunes the region grouping.
	ClusterParams cluster.Params
}

// ClusteredConfig returns the clustered-variant defaults: regions grouped
// at the standard radius before recognition.
func ClusteredConfig() Config {
	return Config{
		ClusterEnabled: true,
		ClusterParams:  cluster.DefaultParams(),
	}
}

// Pipeline wires the rasterizer, the detection backend, and the extractor
// into a document processor. Pages run strictly sequentially: the backend
// serializes its own dispatch, and a failed page never stops its siblings.
type Pipeline struct {
	rasterizer *raster.Rasterizer
	backend    detect.Backend
	extractor  extract.Extractor
	config     Config
	log        zerolog.Logger
}

// New creates a pipeline from explicit collaborators.
func New(rasterizer *raster.Rasterizer, backend detect.Backend, extractor extract.Extractor, config Config) *Pipeline {
	return &Pipeline{
		rasterizer: rasterizer,
		backend:    backend,
		extractor:  extractor,
		config:     config,
		log:        logger.WithComponent("pipeline"),
	}
}

// ProcessDocument runs the whole chain for one PDF and aggregates the
// per-page records. A single-page document yields the bare record; a
// multi-page document yields the numbered page sequence. The optional sink
// receives debug artifacts along the way.
func (p *Pipeline) ProcessDocument(ctx context.Context, pdfPath string, sink *annotate.Sink) (*models.DocumentResult, error) {
	const op = "ProcessDocument"

	base := DocumentBase(pdfPath)
	log := logger.WithDocument("pipeline", base)

	pages, err := p.rasterizer.RenderPages(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: %w", op, raster.ErrNoPages)
	}

	log.Info().Int("pages", len(pages)).Msg("Processing document")

	results := make([]models.PageResult, 0, len(pages))
	for _, page := range pages {
		sink.SavePageInput(page.Number, page.PNG)
		results = append(results, p.ProcessPage(ctx, base, page, sink))
	}

	result := aggregate(results)
	sink.SaveResult(result)
	return result, nil
}

// ProcessPage runs detection, optional clustering, recognition,
// consolidation, and extraction for one page. Failures at any stage are
// folded into the returned result.
func (p *Pipeline) ProcessPage(ctx context.Context, base string, page raster.Page, sink *annotate.Sink) models.PageResult {
	pageID := fmt.Sprintf("%s_page%d", base, page.Number)
	log := logger.WithDocument("pipeline", pageID)

	blocks, err := p.readPage(ctx, page)
	if err != nil {
		log.Error().Err(err).Msg("Recognition failed")
		return models.PageResult{Page: page.Number, Failed: true, Reason: err.Error()}
	}

	sink.SaveBoxes(page.Number, page.Image, blocks)

	text := Consolidate(blocks)
	sink.SaveMergedText(page.Number, text)

	log.Info().
		Int("blocks", len(blocks)).
		Int("text_length", len(text)).
		Msg("Page text consolidated")

	outcome := p.extractor.Extract(ctx, pageID, text)
	if outcome.Failed {
		log.Warn().Str("reason", outcome.Reason).Msg("Extraction failed for page")
		result := models.PageResult{Page: page.Number, Failed: true, Reason: outcome.Reason}
		sink.SavePageResult(page.Number, result)
		return result
	}

	sink.SavePageResult(page.Number, outcome.Record)
	return models.PageResult{Page: page.Number, Record: *outcome.Record}
}

// readPage recognizes the page text, either whole-page or through clustered
// crops.
func (p *Pipeline) readPage(ctx context.Context, page raster.Page) ([]detect.Block, error) {
	if !p.config.ClusterEnabled {
		return p.backend.ReadBlocks(ctx, page, nil)
	}

	regions, err := p.backend.DetectRegions(ctx, page)
	if err != nil {
		return nil, err
	}

	clusters := cluster.Group(regions, p.config.ClusterParams)
	if len(clusters) == 0 {
		// Too few regions to cluster; the page reads as empty under the
		// clustered variant.
		return nil, nil
	}

	crops := make([]image.Rectangle, len(clusters))
	for i, c := range clusters {
		crops[i] = c.Box
	}
	return p.backend.ReadBlocks(ctx, page, crops)
}

// Consolidate joins retained block texts with newlines, in reader order.
// Blocks whose trimmed text is empty are dropped.
func Consolidate(blocks []detect.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}

// DocumentBase returns the artifact base name for a source path: the file
// name without its extension.
func DocumentBase(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func aggregate(results []models.PageResult) *models.DocumentResult {
	if len(results) == 1 {
		r := results[0]
		return &models.DocumentResult{Record: &r}
	}
	return &models.DocumentResult{Pages: results}
}
