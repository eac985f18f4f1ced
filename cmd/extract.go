package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"platmaster/internal/annotate"
	"platmaster/internal/config"
	"platmaster/internal/logger"
	"platmaster/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file]",
	Short: "Extract plat data from a single PDF",
	Long: `Process one well-location plat PDF and print the extracted record
as JSON.

A single-page document prints the bare record; a multi-page document
prints a numbered page sequence.

Required environment variables:
  OPENAI_API_KEY - API key for the completion endpoint

Optional:
  AZURE_OPENAI_ENDPOINT - route completions through an Azure deployment
  OCR_BACKEND           - "tesseract" (default) or "vision"`,
	Example: `  # Extract a plat to stdout
  platmaster extract plat.pdf

  # Save the record next to the debug artifacts
  platmaster extract plat.pdf -o result.json --debug`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("debug", false, "Write per-page debug artifacts to the output directory")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract-cmd")

	outputPath, _ := cmd.Flags().GetString("output")
	debug, _ := cmd.Flags().GetBool("debug")
	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := os.Stat(pdfPath); err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Cannot access PDF file")
		return fmt.Errorf("cannot access PDF file: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, backend, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	var sink *annotate.Sink
	if debug || cfg.DebugArtifacts {
		sink, err = annotate.NewSink(cfg.OutputDir, pipeline.DocumentBase(pdfPath))
		if err != nil {
			return err
		}
	}

	log.Info().
		Str("file", pdfPath).
		Bool("debug", debug).
		Msg("Starting plat extraction")

	result, err := p.ProcessDocument(ctx, pdfPath, sink)
	if err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Extraction failed")
		return fmt.Errorf("extraction failed: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	log.Info().Str("output", outputPath).Msg("Result written")
	fmt.Printf("Result written to %s\n", outputPath)
	return nil
}
