package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"smartfind/config"
	"smartfind/internal/adapter/analyzer"
	"smartfind/internal/adapter/cache"
	"smartfind/internal/adapter/retriever"
	"smartfind/internal/adapter/store"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
	"smartfind/internal/port"
)

// Training stages reported to a ProgressFunc.
const (
	StageLexical  = "lexical"
	StageSemantic = "semantic"
)

// addLockTimeout bounds how long Add waits for another process to release
// the data directory.
const addLockTimeout = 5 * time.Second

// ProgressFunc receives training progress.
type ProgressFunc func(stage string, done, total int)

// TrainReport describes the outcome of a bulk training run.
type TrainReport struct {
	Status      domain.TrainStatus
	Documents   int
	LexicalErr  error
	SemanticErr error
	Duration    time.Duration
}

// IndexCoordinator owns the lexical and semantic indices of one data
// directory and drives their lifecycle.
type IndexCoordinator struct {
	mu sync.RWMutex

	cfg     *config.Config
	dataDir string
	logger  *slog.Logger

	state       domain.IndexState
	lastTrained time.Time
	lastErr     error

	lexical     *retriever.LexicalIndex
	semantic    *retriever.SemanticIndex
	lexicalErr  error // non-nil when the lexical backend cannot serve
	semanticErr error // non-nil when the semantic backend cannot serve

	cache    *cache.QueryCache
	keyword  port.Retriever
	vector   port.Retriever
	hybrid   port.Retriever
	lock     *flock.Flock
	progress ProgressFunc
}

// NewIndexCoordinator opens the indices persisted under dataDir. Missing
// files leave the coordinator untrained. A nil embedder disables the
// semantic backend.
func NewIndexCoordinator(cfg *config.Config, dataDir string, embedder port.Embedder, logger *slog.Logger) (*IndexCoordinator, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("%w: data directory is required", domain.ErrInvalidRequest)
	}
	if err := config.EnsureModelsDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w: %v", domain.ErrIO, err)
	}

	tokenizer := NewTokenizer(cfg)
	c := &IndexCoordinator{
		cfg:     cfg,
		dataDir: dataDir,
		logger:  logging.OrDefault(logger).With("data_dir", dataDir),
		state:   domain.StateUntrained,
		lexical: retriever.NewLexicalIndex(
			store.NewLexicalStore(config.LexicalDBPath(dataDir)),
			tokenizer,
			cfg.Index.K1,
			cfg.Index.B,
			store.ComputeConfigHash(cfg),
		),
		semantic: retriever.NewSemanticIndex(
			store.NewVectorStore(config.VectorDBPath(dataDir)),
			embedder,
			cfg.Retrieve.MinSimilarity,
		),
		cache: cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL),
		lock:  flock.New(config.LockPath(dataDir)),
	}

	c.load()
	return c, nil
}

// NewTokenizer builds the analyzer described by the index configuration.
func NewTokenizer(cfg *config.Config) *analyzer.Tokenizer {
	return analyzer.NewTokenizer(analyzer.Options{
		Stemming:    cfg.Index.Stemming,
		Stopwords:   cfg.Index.Stopwords,
		MinTokenLen: cfg.Index.MinTokenLen,
	})
}

// load restores both backends from disk.
func (c *IndexCoordinator) load() {
	res, err := c.lexical.Load()
	switch {
	case err != nil:
		c.lexicalErr = err
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("lexical index unusable, retrain required", "error", err)
		}
	case res.NeedsRebuild:
		c.lexicalErr = fmt.Errorf("%w: %s", domain.ErrIndexNotReady, res.Reason)
		c.logger.Warn("lexical index must be rebuilt", "reason", res.Reason)
	default:
		c.lastTrained = c.lexical.Stats().LastTrainedAt
	}

	if err := c.semantic.Load(); err != nil {
		c.semanticErr = err
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("semantic index unavailable", "error", err)
		}
	}

	switch {
	case c.lexicalErr == nil || c.semanticErr == nil:
		c.state = domain.StateReady
	case !errors.Is(c.lexicalErr, domain.ErrNotFound):
		c.lastErr = c.lexicalErr
	}
	c.rebuildRetrievers()

	c.logger.Debug("index opened",
		"state", c.state,
		"documents", c.lexical.DocCount(),
		"vectors", c.semantic.Count(),
	)
}

// SetProgress installs a callback for training progress.
func (c *IndexCoordinator) SetProgress(fn ProgressFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = fn
}

// Train rebuilds both backends from docs. Each backend is built off-lock and
// committed on its own: one failure yields a partial index, two leave the
// previous index (if any) current. Cancellation of ctx is ignored.
func (c *IndexCoordinator) Train(ctx context.Context, docs map[string]string) (TrainReport, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	c.mu.Lock()
	if c.state == domain.StateTraining {
		c.mu.Unlock()
		return TrainReport{}, domain.ErrTrainingInProgress
	}
	locked, err := c.lock.TryLock()
	if err != nil {
		c.mu.Unlock()
		return TrainReport{}, fmt.Errorf("failed to lock %s: %w: %v", c.lock.Path(), domain.ErrIO, err)
	}
	if !locked {
		c.mu.Unlock()
		return TrainReport{}, fmt.Errorf("%w: %s is locked by another process", domain.ErrTrainingInProgress, c.dataDir)
	}
	defer c.lock.Unlock()

	previous := c.state
	c.state = domain.StateTraining
	progress := c.progress
	c.mu.Unlock()

	c.logger.Info("training started", "documents", len(docs))

	now := time.Now().UTC()
	total := len(docs)
	vectors, semanticErr := c.semantic.Build(ctx, docs, now, func(done int) {
		if progress != nil {
			progress(StageSemantic, done, total)
		}
	})
	mem := c.lexical.Build(docs, now)
	if progress != nil {
		progress(StageLexical, total, total)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lexicalErr := c.lexical.Commit(mem)
	if semanticErr == nil {
		semanticErr = c.semantic.Commit(vectors)
	}

	report := TrainReport{
		Documents:   total,
		LexicalErr:  lexicalErr,
		SemanticErr: semanticErr,
		Duration:    time.Since(start),
	}

	switch {
	case lexicalErr == nil && semanticErr == nil:
		report.Status = domain.TrainTrained
		c.lexicalErr, c.semanticErr = nil, nil
	case lexicalErr != nil && semanticErr != nil:
		report.Status = domain.TrainFailed
		err := errors.Join(
			fmt.Errorf("lexical: %w", lexicalErr),
			fmt.Errorf("semantic: %w", semanticErr),
		)
		c.lastErr = err
		if previous == domain.StateReady {
			c.state = domain.StateReady
		} else {
			c.state = domain.StateFailed
		}
		c.logger.Error("training failed", "error", err, "state", c.state)
		return report, fmt.Errorf("training failed: %w", err)
	case semanticErr != nil:
		report.Status = domain.TrainPartial
		c.lexicalErr, c.semanticErr = nil, semanticErr
		if err := c.semantic.Discard(); err != nil {
			c.logger.Warn("failed to discard stale vectors", "error", err)
		}
	default:
		report.Status = domain.TrainPartial
		c.lexicalErr, c.semanticErr = lexicalErr, nil
		if err := c.lexical.Discard(); err != nil {
			c.logger.Warn("failed to discard stale lexical index", "error", err)
		}
	}

	c.state = domain.StateReady
	c.lastTrained = now
	c.lastErr = nil
	c.cache.Invalidate()
	c.rebuildRetrievers()

	c.logger.Info("training finished",
		"status", report.Status,
		"documents", total,
		"duration", report.Duration,
	)
	if report.Status == domain.TrainPartial {
		c.logger.Warn("index is partial", "lexical_error", lexicalErr, "semantic_error", semanticErr)
	}
	return report, nil
}

// Add indexes or re-indexes one document in both backends. When exactly
// one backend fails the other keeps its update and a
// *domain.PartialIndexError names the failed one.
func (c *IndexCoordinator) Add(ctx context.Context, path, content string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: path is required", domain.ErrInvalidRequest)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return err
	}

	unlock, err := acquireLock(c.lock, addLockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	lexicalErr := c.lexicalErr
	if lexicalErr == nil {
		lexicalErr = c.lexical.Add(path, content)
	}
	semanticErr := c.semanticErr
	if semanticErr == nil {
		semanticErr = c.semantic.Add(ctx, path, content)
	}

	if lexicalErr == nil || semanticErr == nil {
		c.cache.Invalidate()
	}

	switch {
	case lexicalErr != nil && semanticErr != nil:
		return fmt.Errorf("failed to index %s: %w", path, errors.Join(lexicalErr, semanticErr))
	case lexicalErr != nil:
		c.logger.Warn("document indexed partially", "path", path, "backend", domain.BackendLexical, "error", lexicalErr)
		return &domain.PartialIndexError{Backend: domain.BackendLexical, Err: lexicalErr}
	case semanticErr != nil:
		c.logger.Warn("document indexed partially", "path", path, "backend", domain.BackendSemantic, "error", semanticErr)
		return &domain.PartialIndexError{Backend: domain.BackendSemantic, Err: semanticErr}
	}

	c.logger.Debug("document indexed", "path", path)
	return nil
}

// SearchKeyword returns the paths of the best lexical matches.
func (c *IndexCoordinator) SearchKeyword(ctx context.Context, query string) ([]string, error) {
	hits, err := c.Search(ctx, ModeKeyword, query, c.cfg.Retrieve.TopK)
	if err != nil {
		return nil, err
	}
	return docIDs(hits), nil
}

// SearchSemantic returns the paths of the best semantic matches.
func (c *IndexCoordinator) SearchSemantic(ctx context.Context, query string) ([]string, error) {
	hits, err := c.Search(ctx, ModeSemantic, query, c.cfg.Retrieve.TopK)
	if err != nil {
		return nil, err
	}
	return docIDs(hits), nil
}

// SearchHybrid returns the paths of the best matches of both backends
// fused by reciprocal rank.
func (c *IndexCoordinator) SearchHybrid(ctx context.Context, query string) ([]string, error) {
	hits, err := c.Search(ctx, ModeHybrid, query, c.cfg.Retrieve.TopK)
	if err != nil {
		return nil, err
	}
	return docIDs(hits), nil
}

// Status reports the lifecycle state of the index.
func (c *IndexCoordinator) Status() domain.IndexStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := domain.IndexStatus{
		State:         c.state,
		DocumentCount: c.lexical.DocCount(),
		LastTrainedAt: c.lastTrained,
	}
	if c.lexicalErr != nil {
		status.DocumentCount = c.semantic.Count()
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

// Backends reports the error keeping each backend from serving, nil when
// it is available.
func (c *IndexCoordinator) Backends() (lexical, semantic error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lexicalErr, c.semanticErr
}

// DataDir returns the directory the coordinator manages.
func (c *IndexCoordinator) DataDir() string {
	return c.dataDir
}

// Close releases the index files.
func (c *IndexCoordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.lexical.Close(), c.semantic.Close())
}

func (c *IndexCoordinator) readyLocked() error {
	if c.state != domain.StateReady {
		return fmt.Errorf("%w: index is %s", domain.ErrIndexNotReady, c.state)
	}
	return nil
}

// rebuildRetrievers wires the cached query paths for the backends that can
// serve.
func (c *IndexCoordinator) rebuildRetrievers() {
	c.keyword = cache.NewCachedRetriever(c.lexical, domain.SourceLexical, c.cache)

	var semantic port.Retriever
	if c.semanticErr == nil {
		c.vector = cache.NewCachedRetriever(c.semantic, domain.SourceSemantic, c.cache)
		semantic = c.vector
	} else {
		c.vector = nil
	}

	c.hybrid = cache.NewCachedRetriever(
		retriever.NewHybridRetriever(c.keyword, semantic, c.cfg.Retrieve.RRFK, c.cfg.Retrieve.LexicalWeight),
		domain.SourceHybrid,
		c.cache,
	)
}

// acquireLock waits up to timeout for the cross-process lock.
func acquireLock(l *flock.Flock, timeout time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("failed to lock %s: %w: %v", l.Path(), domain.ErrIO, err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("%w: lock %s is held by another process", domain.ErrTrainingInProgress, l.Path())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func docIDs(hits []domain.SearchHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	return ids
}
