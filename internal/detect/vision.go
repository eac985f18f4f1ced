package detect

import (
	"bytes"
	"context"
	"image"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"platmaster/internal/raster"
)

// VisionBackend is a detect+recognize backend over the Google Cloud Vision
// document text detection API. The client is safe for concurrent page
// submissions.
type VisionBackend struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionBackend creates a Cloud Vision backend with credentials from the
// environment. It expects either GOOGLE_APPLICATION_CREDENTIALS path or
// GOOGLE_CREDENTIALS JSON in env, falling back to application default
// credentials.
func NewVisionBackend(ctx context.Context) (*VisionBackend, error) {
	const op = "NewVisionBackend"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapBackendError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapBackendError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapBackendError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionBackend{client: client}, nil
}

// NewVisionBackendWithClient creates a Cloud Vision backend with an explicit
// client (for testing).
func NewVisionBackendWithClient(client *vision.ImageAnnotatorClient) *VisionBackend {
	return &VisionBackend{client: client}
}

// DetectRegions reports one region per Vision block, with the API's block
// classification mapped onto the coarse category set.
func (v *VisionBackend) DetectRegions(ctx context.Context, page raster.Page) ([]Region, error) {
	const op = "DetectRegions"

	annotation, err := v.annotate(ctx, page.PNG)
	if err != nil {
		return nil, WrapBackendError(op, ErrDetectionFailed, err.Error())
	}
	if annotation == nil || len(annotation.Pages) == 0 {
		return nil, nil
	}

	var regions []Region
	for _, p := range annotation.Pages {
		for _, block := range p.Blocks {
			box, poly := boundingBox(block.BoundingBox)
			regions = append(regions, Region{
				Box:        box,
				Poly:       poly,
				Category:   mapBlockType(block.BlockType),
				Confidence: float64(block.Confidence),
			})
		}
	}
	return regions, nil
}

// ReadBlocks recognizes text per Vision block across the whole page, or
// within the given crop rectangles. Blank blocks are dropped.
func (v *VisionBackend) ReadBlocks(ctx context.Context, page raster.Page, crops []image.Rectangle) ([]Block, error) {
	const op = "ReadBlocks"

	if crops == nil {
		annotation, err := v.annotate(ctx, page.PNG)
		if err != nil {
			return nil, WrapBackendError(op, ErrRecognitionFailed, err.Error())
		}
		return dropBlank(blocksFromAnnotation(annotation, image.Point{})), nil
	}

	var blocks []Block
	for _, crop := range crops {
		data, err := cropPNG(page.Image, crop)
		if err != nil {
			return nil, WrapBackendError(op, err, "failed to crop page image")
		}
		annotation, err := v.annotate(ctx, data)
		if err != nil {
			return nil, WrapBackendError(op, ErrRecognitionFailed, err.Error())
		}

		var (
			text strings.Builder
			sum  float64
			n    int
		)
		for _, b := range blocksFromAnnotation(annotation, crop.Min) {
			if n > 0 {
				text.WriteString("\n")
			}
			text.WriteString(b.Text)
			sum += b.Confidence
			n++
		}

		confidence := 0.0
		if n > 0 {
			confidence = sum / float64(n)
		}
		blocks = append(blocks, Block{Box: crop, Text: text.String(), Confidence: confidence})
	}

	return dropBlank(blocks), nil
}

// Close closes the underlying Vision client.
func (v *VisionBackend) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func (v *VisionBackend) annotate(ctx context.Context, pngData []byte) (*visionpb.TextAnnotation, error) {
	img, err := vision.NewImageFromReader(bytes.NewReader(pngData))
	if err != nil {
		return nil, err
	}
	return v.client.DetectDocumentText(ctx, img, nil)
}

// blocksFromAnnotation flattens a Vision text annotation to one Block per
// API block, reassembling words from symbols and detected breaks. Offset
// shifts geometry back into page coordinates when reading from a crop.
func blocksFromAnnotation(annotation *visionpb.TextAnnotation, offset image.Point) []Block {
	if annotation == nil {
		return nil
	}

	var blocks []Block
	for _, p := range annotation.Pages {
		for _, block := range p.Blocks {
			var text strings.Builder
			for _, paragraph := range block.Paragraphs {
				for _, word := range paragraph.Words {
					for _, symbol := range word.Symbols {
						text.WriteString(symbol.Text)
						text.WriteString(breakText(symbol))
					}
				}
			}

			box, _ := boundingBox(block.BoundingBox)
			blocks = append(blocks, Block{
				Box:        box.Add(offset),
				Text:       strings.TrimRight(text.String(), "\n"),
				Confidence: float64(block.Confidence),
			})
		}
	}
	return blocks
}

func breakText(symbol *visionpb.Symbol) string {
	if symbol.Property == nil || symbol.Property.DetectedBreak == nil {
		return ""
	}
	switch symbol.Property.DetectedBreak.Type {
	case visionpb.TextAnnotation_DetectedBreak_SPACE,
		visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
		return " "
	case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
		visionpb.TextAnnotation_DetectedBreak_LINE_BREAK,
		visionpb.TextAnnotation_DetectedBreak_HYPHEN:
		return "\n"
	default:
		return ""
	}
}

func boundingBox(poly *visionpb.BoundingPoly) (image.Rectangle, []image.Point) {
	if poly == nil || len(poly.Vertices) == 0 {
		return image.Rectangle{}, nil
	}

	points := make([]image.Point, 0, len(poly.Vertices))
	minX, minY := int(poly.Vertices[0].X), int(poly.Vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices {
		x, y := int(v.X), int(v.Y)
		points = append(points, image.Pt(x, y))
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return image.Rect(minX, minY, maxX, maxY), points
}

func mapBlockType(t visionpb.Block_BlockType) Category {
	switch t {
	case visionpb.Block_TABLE:
		return CategoryTable
	case visionpb.Block_PICTURE, visionpb.Block_RULER, visionpb.Block_BARCODE:
		return CategoryFigure
	default:
		return CategoryText
	}
}
