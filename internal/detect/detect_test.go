package detect

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

func TestDropBlank(t *testing.T) {
	blocks := []Block{
		{Text: "Elev: 1234"},
		{Text: "   "},
		{Text: ""},
		{Text: "\n\t"},
		{Text: "SHL"},
	}

	got := dropBlank(blocks)
	if len(got) != 2 {
		t.Fatalf("expected 2 retained blocks, got %d", len(got))
	}
	if got[0].Text != "Elev: 1234" || got[1].Text != "SHL" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestRegionCenter(t *testing.T) {
	r := Region{Box: image.Rect(10, 20, 30, 60)}
	if c := r.Center(); c != image.Pt(20, 40) {
		t.Errorf("center = %v, want (20,40)", c)
	}
}

func TestCropPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(55, 55, color.RGBA{R: 255, A: 255})

	data, err := cropPNG(img, image.Rect(50, 50, 70, 70))
	if err != nil {
		t.Fatal(err)
	}

	cropped, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	bounds := cropped.Bounds()
	if bounds.Dx() != 20 || bounds.Dy() != 20 {
		t.Errorf("crop size = %dx%d, want 20x20", bounds.Dx(), bounds.Dy())
	}
}

func TestBoundingBox(t *testing.T) {
	poly := &visionpb.BoundingPoly{
		Vertices: []*visionpb.Vertex{
			{X: 10, Y: 20},
			{X: 110, Y: 18},
			{X: 112, Y: 58},
			{X: 12, Y: 60},
		},
	}

	box, points := boundingBox(poly)
	if box != image.Rect(10, 18, 112, 60) {
		t.Errorf("box = %v, want (10,18)-(112,60)", box)
	}
	if len(points) != 4 {
		t.Errorf("expected 4 polygon points, got %d", len(points))
	}

	if box, points := boundingBox(nil); !box.Empty() || points != nil {
		t.Error("nil poly must yield empty geometry")
	}
}

func TestMapBlockType(t *testing.T) {
	cases := []struct {
		in   visionpb.Block_BlockType
		want Category
	}{
		{visionpb.Block_TEXT, CategoryText},
		{visionpb.Block_TABLE, CategoryTable},
		{visionpb.Block_PICTURE, CategoryFigure},
		{visionpb.Block_UNKNOWN, CategoryText},
	}
	for _, tc := range cases {
		if got := mapBlockType(tc.in); got != tc.want {
			t.Errorf("mapBlockType(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBlocksFromAnnotation(t *testing.T) {
	annotation := &visionpb.TextAnnotation{
		Pages: []*visionpb.Page{{
			Blocks: []*visionpb.Block{{
				BlockType:  visionpb.Block_TEXT,
				Confidence: 0.93,
				BoundingBox: &visionpb.BoundingPoly{
					Vertices: []*visionpb.Vertex{{X: 0, Y: 0}, {X: 50, Y: 20}},
				},
				Paragraphs: []*visionpb.Paragraph{{
					Words: []*visionpb.Word{
						{Symbols: symbols("Elev:", visionpb.TextAnnotation_DetectedBreak_SPACE)},
						{Symbols: symbols("1234", visionpb.TextAnnotation_DetectedBreak_LINE_BREAK)},
					},
				}},
			}},
		}},
	}

	blocks := blocksFromAnnotation(annotation, image.Pt(100, 200))
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Text != "Elev: 1234" {
		t.Errorf("text = %q, want %q", blocks[0].Text, "Elev: 1234")
	}
	if blocks[0].Box.Min != image.Pt(100, 200) {
		t.Errorf("offset not applied: %v", blocks[0].Box)
	}
}

// symbols converts a word to Vision symbols with a trailing break.
func symbols(word string, brk visionpb.TextAnnotation_DetectedBreak_BreakType) []*visionpb.Symbol {
	out := make([]*visionpb.Symbol, 0, len(word))
	for i, r := range word {
		s := &visionpb.Symbol{Text: string(r)}
		if i == len(word)-1 {
			s.Property = &visionpb.TextAnnotation_TextProperty{
				DetectedBreak: &visionpb.TextAnnotation_DetectedBreak{Type: brk},
			}
		}
		out = append(out, s)
	}
	return out
}
