package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"smartfind/internal/adapter/fs"
	"smartfind/internal/domain"
	"smartfind/internal/usecase"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep a trained index up to date as files change",
	Long: `Watch a directory and add every created or modified file that the
include and exclude patterns select to the index. The index must have been
trained first. Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	cfg := GetConfig()
	coordinator, err := registry.Index(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	if status := coordinator.Status(); status.State != domain.StateReady {
		return fmt.Errorf("index is %s: run 'smartfind index' first: %w", status.State, domain.ErrIndexNotReady)
	}

	walker := fs.NewWalker(cfg.Reader.Includes, cfg.Reader.Excludes)
	watcher, err := fs.NewWatcher(root, walker, fs.DefaultDebounce, logger)
	if err != nil {
		return err
	}
	indexUC := usecase.NewIndexUseCase(walker, reader, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", root)
	return watcher.Watch(ctx, func(path string) {
		err := indexUC.AddFile(ctx, coordinator, path)
		var partial *domain.PartialIndexError
		switch {
		case err == nil:
			fmt.Printf("indexed %s\n", path)
		case errors.As(err, &partial):
			fmt.Printf("indexed %s (%s index not updated)\n", path, partial.Backend)
		default:
			logger.Warn("failed to index file", "path", path, "error", err)
		}
	})
}
