package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"platmaster/internal/config"
	"platmaster/internal/detect"
	"platmaster/internal/extract"
	"platmaster/internal/logger"
	"platmaster/internal/pipeline"
	"platmaster/internal/raster"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "platmaster",
	Short: "PlatMaster - extract structured data from well location plats",
	Long: `PlatMaster converts scanned oil and gas well-location plat PDFs into
structured geospatial records: the ground elevation and the five named
coordinate points of a Texas horizontal well (surface hole, penetration
point, first and last take points, bottom hole).

Each page is rasterized, run through OCR, and handed to a
schema-constrained language model extraction step.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("PlatMaster CLI executed")

		fmt.Println("PlatMaster - well location plat extraction")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// buildPipeline assembles the processing chain from configuration: the
// pdftoppm rasterizer, the configured OCR backend, and the completion-based
// extractor.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, detect.Backend, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OCR backend: %w", err)
	}

	extractor, err := extract.NewExtractor(ctx)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	rasterizer := raster.NewRasterizer(raster.Config{
		Pdftoppm: cfg.Pdftoppm,
		DPI:      cfg.RasterDPI,
	}, nil)

	p := pipeline.New(rasterizer, backend, extractor, pipelineConfig(cfg))
	return p, backend, nil
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.Config{ClusterEnabled: cfg.ClusterEnabled}
	pc.ClusterParams.Radius = cfg.ClusterRadius
	pc.ClusterParams.MinSize = cfg.ClusterMinSize
	return pc
}

func newBackend(ctx context.Context, cfg *config.Config) (detect.Backend, error) {
	switch cfg.OCRBackend {
	case "vision":
		return detect.NewVisionBackend(ctx)
	default:
		return detect.NewTesseractBackend(detect.TesseractConfig{Language: cfg.TesseractLang})
	}
}
