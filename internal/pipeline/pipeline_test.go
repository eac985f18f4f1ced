package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platmaster/internal/cluster"
	"platmaster/internal/detect"
	"platmaster/internal/extract"
	"platmaster/internal/raster"
	"platmaster/pkg/models"
)

// stubBackend scripts detection and recognition results per page number.
type stubBackend struct {
	regions  map[int][]detect.Region
	blocks   map[int][]detect.Block
	detErr   error
	readErr  error
	gotCrops map[int][]image.Rectangle
}

func (s *stubBackend) DetectRegions(ctx context.Context, page raster.Page) ([]detect.Region, error) {
	if s.detErr != nil {
		return nil, s.detErr
	}
	return s.regions[page.Number], nil
}

func (s *stubBackend) ReadBlocks(ctx context.Context, page raster.Page, crops []image.Rectangle) ([]detect.Block, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.gotCrops == nil {
		s.gotCrops = make(map[int][]image.Rectangle)
	}
	s.gotCrops[page.Number] = crops
	return s.blocks[page.Number], nil
}

func (s *stubBackend) Close() error { return nil }

// stubExtractor returns a canned result and records the text it was given.
type stubExtractor struct {
	result  extract.Result
	gotText []string
}

func (s *stubExtractor) Extract(ctx context.Context, pageID, text string) extract.Result {
	s.gotText = append(s.gotText, text)
	if text == "" {
		return extract.Failure("no text to extract from")
	}
	return s.result
}

func strPtr(s string) *string { return &s }

func testRecord(elevation string) *models.Plat {
	return &models.Plat{
		Elevation:           elevation,
		SurfaceHoleLocation: models.CoordinatePoint{Lat: strPtr("31.5"), Lon: strPtr("102.3")},
		PenetrationPoint:    models.CoordinatePoint{Lat: strPtr("31.51"), Lon: strPtr("102.31")},
		FirstTakePoint:      models.CoordinatePoint{Lat: strPtr("31.52"), Lon: strPtr("102.32")},
		LastTakePoint:       models.CoordinatePoint{Lat: strPtr("31.53"), Lon: strPtr("102.33")},
		BottomHoleLocation:  models.CoordinatePoint{Lat: strPtr("31.54"), Lon: strPtr("102.34")},
	}
}

func testPage(number int) raster.Page {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return raster.Page{Number: number, Image: img, PNG: buf.Bytes()}
}

func TestConsolidate(t *testing.T) {
	blocks := []detect.Block{
		{Text: "Elev: 1234"},
		{Text: "   "},
		{Text: "SHL LAT N 31.5, LONG W 102.3"},
		{Text: ""},
		{Text: "BHL LAT N 31.54"},
	}

	got := Consolidate(blocks)
	want := "Elev: 1234\nSHL LAT N 31.5, LONG W 102.3\nBHL LAT N 31.54"
	if got != want {
		t.Errorf("Consolidate = %q, want %q", got, want)
	}
}

func TestConsolidateEmpty(t *testing.T) {
	if got := Consolidate(nil); got != "" {
		t.Errorf("Consolidate(nil) = %q, want empty", got)
	}
	if got := Consolidate([]detect.Block{{Text: "  "}}); got != "" {
		t.Errorf("Consolidate(blank) = %q, want empty", got)
	}
}

func TestProcessPageClustered(t *testing.T) {
	backend := &stubBackend{
		regions: map[int][]detect.Region{
			1: {
				{Box: image.Rect(10, 10, 50, 30), Category: detect.CategoryText},
				{Box: image.Rect(40, 12, 80, 32), Category: detect.CategoryText},
			},
		},
		blocks: map[int][]detect.Block{
			1: {{Box: image.Rect(10, 10, 80, 32), Text: "Elev: 1234"}},
		},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}

	p := New(nil, backend, extractor, ClusteredConfig())
	result := p.ProcessPage(context.Background(), "plat", testPage(1), nil)

	if result.Failed {
		t.Fatalf("unexpected failure: %s", result.Reason)
	}
	if result.Record.Elevation != "1234" {
		t.Errorf("elevation = %q, want %q", result.Record.Elevation, "1234")
	}

	crops := backend.gotCrops[1]
	if len(crops) != 1 {
		t.Fatalf("expected 1 crop from the merged cluster, got %d", len(crops))
	}
	want := image.Rect(10, 10, 80, 32)
	if crops[0] != want {
		t.Errorf("crop = %v, want %v", crops[0], want)
	}
}

func TestProcessPageTooFewRegionsToCluster(t *testing.T) {
	backend := &stubBackend{
		regions: map[int][]detect.Region{
			1: {{Box: image.Rect(10, 10, 50, 30), Category: detect.CategoryText}},
		},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}

	p := New(nil, backend, extractor, ClusteredConfig())
	result := p.ProcessPage(context.Background(), "plat", testPage(1), nil)

	// One region cannot form a cluster, so the page reads as empty and the
	// extractor converts that to the failure sentinel.
	if !result.Failed {
		t.Fatal("expected failure on unclusterable page")
	}
	if len(extractor.gotText) != 1 || extractor.gotText[0] != "" {
		t.Errorf("expected extractor to receive empty text, got %q", extractor.gotText)
	}
}

func TestProcessPageDirectRead(t *testing.T) {
	backend := &stubBackend{
		blocks: map[int][]detect.Block{
			1: {
				{Text: "Elev: 1234"},
				{Text: "SHL LAT N 31.5, LONG W 102.3"},
			},
		},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}

	p := New(nil, backend, extractor, Config{ClusterEnabled: false})
	result := p.ProcessPage(context.Background(), "plat", testPage(1), nil)

	if result.Failed {
		t.Fatalf("unexpected failure: %s", result.Reason)
	}
	if backend.gotCrops[1] != nil {
		t.Errorf("direct read must pass nil crops, got %v", backend.gotCrops[1])
	}
	if extractor.gotText[0] != "Elev: 1234\nSHL LAT N 31.5, LONG W 102.3" {
		t.Errorf("unexpected consolidated text: %q", extractor.gotText[0])
	}
}

func TestProcessPageDetectionFailure(t *testing.T) {
	backend := &stubBackend{detErr: fmt.Errorf("detector crashed")}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}

	p := New(nil, backend, extractor, ClusteredConfig())
	result := p.ProcessPage(context.Background(), "plat", testPage(1), nil)

	if !result.Failed {
		t.Fatal("expected page failure on detector error")
	}
}

func TestProcessPageRecognitionFailure(t *testing.T) {
	backend := &stubBackend{readErr: fmt.Errorf("engine crashed")}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}

	p := New(nil, backend, extractor, Config{ClusterEnabled: false})
	result := p.ProcessPage(context.Background(), "plat", testPage(1), nil)

	if !result.Failed {
		t.Fatal("expected page failure on recognition error")
	}
	if len(extractor.gotText) != 0 {
		t.Error("extractor must not run after recognition failure")
	}
}

// fakePdftoppm renders the requested number of pages as small PNGs where a
// real pdftoppm run would.
type fakePdftoppm struct {
	pages int
}

func (f *fakePdftoppm) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	prefix := args[len(args)-1]
	for i := 1; i <= f.pages; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 100, 100))
		img.Set(i, i, color.Black)
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, nil, err
		}
		path := fmt.Sprintf("%s-%d.png", prefix, i)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plat.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func documentPipeline(t *testing.T, pages int, backend *stubBackend, extractor *stubExtractor) *Pipeline {
	t.Helper()
	rasterizer := raster.NewRasterizer(raster.Config{}, &fakePdftoppm{pages: pages})
	return New(rasterizer, backend, extractor, Config{ClusterEnabled: false})
}

func TestProcessDocumentSinglePage(t *testing.T) {
	backend := &stubBackend{
		blocks: map[int][]detect.Block{1: {{Text: "Elev: 1234"}}},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}
	p := documentPipeline(t, 1, backend, extractor)

	result, err := p.ProcessDocument(context.Background(), writeTestPDF(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if !result.SinglePage() {
		t.Fatal("one-page document must yield the bare record")
	}
	if result.Record.Record.Elevation != "1234" {
		t.Errorf("elevation = %q, want %q", result.Record.Record.Elevation, "1234")
	}
}

func TestProcessDocumentMultiPage(t *testing.T) {
	backend := &stubBackend{
		blocks: map[int][]detect.Block{
			1: {{Text: "Elev: 1234"}},
			2: {{Text: "Elev: 1234"}},
		},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}
	p := documentPipeline(t, 2, backend, extractor)

	result, err := p.ProcessDocument(context.Background(), writeTestPDF(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.SinglePage() {
		t.Fatal("two-page document must yield the page sequence")
	}
	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 page results, got %d", len(result.Pages))
	}
	for i, page := range result.Pages {
		if page.Page != i+1 {
			t.Errorf("page %d numbered %d", i, page.Page)
		}
	}
}

func TestProcessDocumentPageFailureDoesNotSinkSiblings(t *testing.T) {
	backend := &stubBackend{
		blocks: map[int][]detect.Block{
			1: {}, // empty page, extraction fails
			2: {{Text: "Elev: 1234"}},
		},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}
	p := documentPipeline(t, 2, backend, extractor)

	result, err := p.ProcessDocument(context.Background(), writeTestPDF(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 page results, got %d", len(result.Pages))
	}
	if !result.Pages[0].Failed {
		t.Error("empty page should carry the failure sentinel")
	}
	if result.Pages[1].Failed {
		t.Errorf("healthy page failed: %s", result.Pages[1].Reason)
	}
}

func TestEndToEndSinglePagePlat(t *testing.T) {
	text := strings.Join([]string{
		"Elev: 1234",
		"SHL LAT N 31.5, LONG W 102.3",
		"PP LAT N 31.51, LONG W 102.31",
		"FTP LAT N 31.52, LONG W 102.32",
		"LTP LAT N 31.53, LONG W 102.33",
		"BHL LAT N 31.54, LONG W 102.34",
	}, "\n")

	backend := &stubBackend{
		blocks: map[int][]detect.Block{
			1: {
				{Text: "Elev: 1234"},
				{Text: "SHL LAT N 31.5, LONG W 102.3"},
				{Text: "PP LAT N 31.51, LONG W 102.31"},
				{Text: "FTP LAT N 31.52, LONG W 102.32"},
				{Text: "LTP LAT N 31.53, LONG W 102.33"},
				{Text: "BHL LAT N 31.54, LONG W 102.34"},
			},
		},
	}
	extractor := &stubExtractor{result: extract.Success(testRecord("1234"))}
	p := documentPipeline(t, 1, backend, extractor)

	result, err := p.ProcessDocument(context.Background(), writeTestPDF(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if extractor.gotText[0] != text {
		t.Errorf("consolidated text = %q, want %q", extractor.gotText[0], text)
	}

	record := result.Record.Record
	if record.Elevation != "1234" {
		t.Errorf("elevation = %q, want %q", record.Elevation, "1234")
	}
	if *record.SurfaceHoleLocation.Lat != "31.5" || *record.SurfaceHoleLocation.Lon != "102.3" {
		t.Errorf("surface hole = %v/%v, want 31.5/102.3",
			*record.SurfaceHoleLocation.Lat, *record.SurfaceHoleLocation.Lon)
	}
	for name, point := range map[string]models.CoordinatePoint{
		"penetration_point":    record.PenetrationPoint,
		"first_take_point":     record.FirstTakePoint,
		"last_take_point":      record.LastTakePoint,
		"bottom_hole_location": record.BottomHoleLocation,
	} {
		if point.Lat == nil || point.Lon == nil {
			t.Errorf("%s not populated", name)
		}
	}
}
