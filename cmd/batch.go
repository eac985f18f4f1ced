package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"platmaster/internal/annotate"
	"platmaster/internal/config"
	"platmaster/internal/logger"
	"platmaster/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder]",
	Short: "Extract plat data from every PDF in a folder",
	Long: `Process all PDF files in a folder independently and write one JSON
result per document into the output directory, keyed by file base name.

A failure on one file is reported and does not stop the remaining files.

Optional environment variables:
  BATCH_WORKERS - number of parallel workers (default: 4)
  OUTPUT_DIR    - result directory (default: output)`,
	Example: `  # Process every plat in ./plats
  platmaster batch plats/

  # Process with debug artifacts
  platmaster batch plats/ --debug`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Bool("debug", false, "Write per-page debug artifacts alongside results")
}

// batchJob is one file handed to a worker.
type batchJob struct {
	Index    int
	FilePath string
}

// batchResult is the per-file outcome shown in the summary.
type batchResult struct {
	Filename string
	Err      error
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch-cmd")

	debug, _ := cmd.Flags().GetBool("debug")
	folder := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pdfFiles, err := findPDFFiles(folder)
	if err != nil {
		return fmt.Errorf("failed to find PDF files: %w", err)
	}
	if len(pdfFiles) == 0 {
		fmt.Println("No PDF files found in folder.")
		return nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, backend, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	numWorkers := getNumWorkers()
	fmt.Printf("Processing %d PDFs with %d parallel workers...\n\n", len(pdfFiles), numWorkers)

	results := processBatch(ctx, p, cfg, pdfFiles, numWorkers, debug, log)

	successCount := 0
	for _, r := range results {
		if r.Err == nil {
			successCount++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Processed: %d  Succeeded: %d  Failed: %d\n",
		len(results), successCount, len(results)-successCount)
	fmt.Println(strings.Repeat("=", 50))

	log.Info().
		Int("total", len(results)).
		Int("succeeded", successCount).
		Msg("Batch processing finished")
	return nil
}

// processBatch runs the pipeline over the files with a worker pool. Results
// land at their input index so the summary keeps directory order.
func processBatch(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, pdfFiles []string, numWorkers int, debug bool, log zerolog.Logger) []batchResult {
	jobs := make(chan batchJob, len(pdfFiles))
	results := make([]batchResult, len(pdfFiles))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.FilePath).
					Msg("Worker processing PDF")

				err := processBatchFile(ctx, p, cfg, job.FilePath, debug)
				results[job.Index] = batchResult{
					Filename: filepath.Base(job.FilePath),
					Err:      err,
				}

				mu.Lock()
				processedCount++
				status := "ok"
				if err != nil {
					status = fmt.Sprintf("FAILED (%v)", err)
				}
				fmt.Printf("[%d/%d] %s - %s\n", processedCount, len(pdfFiles), filepath.Base(job.FilePath), status)
				mu.Unlock()
			}
		}(w)
	}

	for i, pdfFile := range pdfFiles {
		jobs <- batchJob{Index: i, FilePath: pdfFile}
	}
	close(jobs)
	wg.Wait()

	return results
}

// processBatchFile runs one document end to end and writes <base>.json into
// the output directory.
func processBatchFile(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, pdfPath string, debug bool) error {
	base := pipeline.DocumentBase(pdfPath)

	var sink *annotate.Sink
	if debug || cfg.DebugArtifacts {
		var err error
		sink, err = annotate.NewSink(cfg.OutputDir, base)
		if err != nil {
			return err
		}
	}

	result, err := p.ProcessDocument(ctx, pdfPath, sink)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	return os.WriteFile(filepath.Join(cfg.OutputDir, base+".json"), data, 0o644)
}

// findPDFFiles lists the PDF files directly inside the folder, sorted by
// name.
func findPDFFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			files = append(files, filepath.Join(folder, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// getNumWorkers returns the worker count from the environment or default.
func getNumWorkers() int {
	if workersStr := os.Getenv("BATCH_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil && workers > 0 {
			return workers
		}
	}
	return 4
}
