package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"smartfind/internal/logging"
	"smartfind/internal/port"
)

// IndexUseCase turns a directory of files into a training corpus.
type IndexUseCase struct {
	walker port.FileWalker
	reader port.FileReader
	logger *slog.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(walker port.FileWalker, reader port.FileReader, logger *slog.Logger) *IndexUseCase {
	return &IndexUseCase{
		walker: walker,
		reader: reader,
		logger: logging.OrDefault(logger),
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	FilesRead    int
	FilesSkipped int
	Errors       []string
	Report       TrainReport
}

// Collect reads every matching file under root. Unreadable and empty files
// are skipped and reported.
func (u *IndexUseCase) Collect(root string, progress func(done, total int)) (map[string]string, *IndexResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &IndexResult{}
	docs := make(map[string]string, len(files))
	for i, file := range files {
		content, err := u.reader.ReadFile(file.Path)
		switch {
		case err != nil:
			result.FilesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", file.Path, err))
		case content == "":
			result.FilesSkipped++
			u.logger.Debug("skipping empty file", "path", file.Path)
		default:
			docs[file.Path] = content
			result.FilesRead++
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}
	return docs, result, nil
}

// Index collects root and bulk trains the coordinator on it.
func (u *IndexUseCase) Index(ctx context.Context, coordinator *IndexCoordinator, root string, progress func(done, total int)) (*IndexResult, error) {
	docs, result, err := u.Collect(root, progress)
	if err != nil {
		return nil, err
	}

	report, err := coordinator.Train(ctx, docs)
	result.Report = report
	if err != nil {
		return result, err
	}
	return result, nil
}

// AddFile reads one file and adds it to the coordinator.
func (u *IndexUseCase) AddFile(ctx context.Context, coordinator *IndexCoordinator, path string) error {
	content, err := u.reader.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return coordinator.Add(ctx, path, content)
}
