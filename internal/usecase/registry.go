package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"smartfind/config"
	"smartfind/internal/adapter/embedding"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
	"smartfind/internal/port"
)

// EmbedderFactory creates the embedder used for one data directory.
type EmbedderFactory func(dataDir string) (port.Embedder, error)

// Registry hands out one IndexCoordinator and one Recommender per data
// directory. Directories never share state.
type Registry struct {
	mu           sync.Mutex
	cfg          *config.Config
	logger       *slog.Logger
	newEmbedder  EmbedderFactory
	coordinators map[string]*IndexCoordinator
	recommenders map[string]*Recommender
}

// NewRegistry creates a registry using the embedder selected by cfg.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	r := &Registry{
		cfg:          cfg,
		logger:       logging.OrDefault(logger),
		coordinators: make(map[string]*IndexCoordinator),
		recommenders: make(map[string]*Recommender),
	}
	r.newEmbedder = func(dataDir string) (port.Embedder, error) {
		return embedding.New(cfg.Embedding, dataDir, NewTokenizer(cfg))
	}
	return r
}

// SetEmbedderFactory replaces how embedders are created. It only affects
// directories opened afterwards.
func (r *Registry) SetEmbedderFactory(f EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newEmbedder = f
}

// Index returns the coordinator of dataDir, opening it on first use. An
// embedder that fails to load leaves the semantic backend unavailable.
func (r *Registry) Index(dataDir string) (*IndexCoordinator, error) {
	key, err := dirKey(dataDir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.coordinators[key]; ok {
		return c, nil
	}

	embedder, err := r.newEmbedder(key)
	if err != nil {
		r.logger.Warn("embedding model unavailable, semantic search disabled", "data_dir", key, "error", err)
		embedder = nil
	}

	c, err := NewIndexCoordinator(r.cfg, key, embedder, r.logger)
	if err != nil {
		return nil, err
	}
	r.coordinators[key] = c
	return c, nil
}

// Recommender returns the recommender of dataDir, opening it on first use.
func (r *Registry) Recommender(dataDir string) (*Recommender, error) {
	key, err := dirKey(dataDir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.recommenders[key]; ok {
		return rec, nil
	}
	rec, err := NewRecommender(key, r.cfg.Recommend.TopN, r.logger)
	if err != nil {
		return nil, err
	}
	r.recommenders[key] = rec
	return rec, nil
}

// Close closes every open coordinator.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, c := range r.coordinators {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(r.coordinators, key)
	}
	for key := range r.recommenders {
		delete(r.recommenders, key)
	}
	return errors.Join(errs...)
}

func dirKey(dataDir string) (string, error) {
	if strings.TrimSpace(dataDir) == "" {
		return "", fmt.Errorf("%w: data directory is required", domain.ErrInvalidRequest)
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return abs, nil
}
