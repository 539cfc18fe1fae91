package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"smartfind/internal/adapter/fs"
	"smartfind/internal/bridge"
	"smartfind/internal/domain"
	"smartfind/internal/usecase"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Train the search index on a directory",
	Long: `Read every matching file under the directory and rebuild the keyword and
semantic indices of the data directory from them. The previous index stays
in place until the new one is complete.

Examples:
  smartfind index .                  # Index current directory
  smartfind index ~/Documents -d /tmp/sf`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add or update one file in a trained index",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(addCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	coordinator, err := registry.Index(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	walker := fs.NewWalker(cfg.Reader.Includes, cfg.Reader.Excludes)
	indexUC := usecase.NewIndexUseCase(walker, reader, logger)

	fmt.Printf("Scanning %s...\n", path)
	readBar := newProgress("Reading")
	docs, result, err := indexUC.Collect(path, readBar.update)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	readBar.finish()

	embedBar := newProgress("Embedding")
	coordinator.SetProgress(func(stage string, done, total int) {
		if stage == usecase.StageSemantic {
			embedBar.update(done, total)
		}
	})
	report, err := coordinator.Train(cmd.Context(), docs)
	embedBar.finish()
	result.Report = report
	if err != nil && report.Status != domain.TrainFailed {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing %s:\n", report.Status)
	fmt.Printf("  Files indexed:  %d\n", result.FilesRead)
	fmt.Printf("  Files skipped:  %d\n", result.FilesSkipped)
	fmt.Printf("  Duration:       %s\n", formatDuration(report.Duration))
	if report.LexicalErr != nil {
		fmt.Printf("  Keyword index:  unavailable (%v)\n", report.LexicalErr)
	}
	if report.SemanticErr != nil {
		fmt.Printf("  Semantic index: unavailable (%v)\n", report.SemanticErr)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored in: %s\n", GetDataDir())
	return err
}

func runAdd(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := addFile(cmd.Context(), path); err != nil {
		return err
	}
	fmt.Printf("Indexed %s\n", path)
	return nil
}

// addFile reads path and sends it through add_to_index. A partial update
// is reported but not treated as a failure.
func addFile(ctx context.Context, path string) error {
	content, err := service.ReadFile(ctx, bridge.ReadFileRequest{Path: path})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	_, err = service.AddToIndex(ctx, bridge.AddToIndexRequest{
		DataDir: GetDataDir(),
		Path:    path,
		Content: content.Content,
	})
	var partial *domain.PartialIndexError
	if errors.As(err, &partial) {
		logger.Warn("file indexed partially", "path", path, "failed_backend", partial.Backend, "error", partial.Err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", path, err)
	}
	return nil
}

// progress lazily creates a progress bar once the total is known.
type progress struct {
	mu      sync.Mutex
	label   string
	bar     *progressbar.ProgressBar
	started time.Time
}

func newProgress(label string) *progress {
	return &progress{label: label}
}

func (p *progress) update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total <= 0 {
		return
	}
	if p.bar == nil {
		p.started = time.Now()
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]"+p.label+"[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	p.bar.Set(done)

	if done > 0 && done < total {
		elapsed := time.Since(p.started)
		rate := float64(done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			p.bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", p.label, formatDuration(eta)))
		}
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
