package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartfind/internal/adapter/store"
	"smartfind/internal/domain"
	"smartfind/internal/port"
)

// embedBatch bounds how many texts are sent to the embedder at once.
const embedBatch = 32

// SemanticIndex is the vector backend: one embedding per document, searched
// with a flat cosine scan.
type SemanticIndex struct {
	store         *store.VectorStore
	embedder      port.Embedder
	minSimilarity float64
}

func NewSemanticIndex(st *store.VectorStore, embedder port.Embedder, minSimilarity float64) *SemanticIndex {
	return &SemanticIndex{
		store:         st,
		embedder:      embedder,
		minSimilarity: minSimilarity,
	}
}

// Load restores persisted vectors. Vectors produced by a different model
// or dimension cannot be queried with the current embedder.
func (s *SemanticIndex) Load() error {
	if s.embedder == nil {
		return fmt.Errorf("semantic index: %w", domain.ErrModelUnavailable)
	}
	snap, err := s.store.Load()
	if err != nil {
		return err
	}
	if snap.Dimension != s.embedder.Dimension() {
		return fmt.Errorf("%w: stored vectors have %d dimensions, embedder %s produces %d",
			domain.ErrDimensionMismatch, snap.Dimension, s.embedder.ModelName(), s.embedder.Dimension())
	}
	return nil
}

// Build embeds every document and returns the new vector set without
// touching the current one. progress, when set, is called after each batch
// with the number of documents embedded so far.
func (s *SemanticIndex) Build(ctx context.Context, docs map[string]string, now time.Time, progress func(done int)) (*domain.VectorSnapshot, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("semantic index: %w", domain.ErrModelUnavailable)
	}

	ids := sortedKeys(docs)
	snap := &domain.VectorSnapshot{
		Dimension: s.embedder.Dimension(),
		Model:     s.embedder.ModelName(),
		Vectors:   make(map[string][]float32, len(ids)),
		TrainedAt: now,
	}

	for start := 0; start < len(ids); start += embedBatch {
		end := start + embedBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		texts := make([]string, len(batch))
		for i, id := range batch {
			texts[i] = docs[id]
		}

		vectors, err := s.embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		for i, id := range batch {
			snap.Vectors[id] = vectors[i]
		}
		if progress != nil {
			progress(end)
		}
	}
	return snap, nil
}

// Commit persists a built vector set and makes it current.
func (s *SemanticIndex) Commit(snap *domain.VectorSnapshot) error {
	if err := s.store.Replace(snap); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}
	return nil
}

// BulkTrain replaces all vectors with embeddings of docs.
func (s *SemanticIndex) BulkTrain(ctx context.Context, docs map[string]string) error {
	snap, err := s.Build(ctx, docs, time.Now().UTC(), nil)
	if err != nil {
		return err
	}
	return s.Commit(snap)
}

// Add embeds one document and inserts or replaces its vector.
func (s *SemanticIndex) Add(ctx context.Context, docID, text string) error {
	if s.embedder == nil {
		return fmt.Errorf("semantic index: %w", domain.ErrModelUnavailable)
	}
	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return err
	}
	return s.store.Upsert(docID, vectors[0])
}

// Search embeds the query and ranks all vectors by cosine similarity.
func (s *SemanticIndex) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("semantic search: %w", domain.ErrModelUnavailable)
	}
	if k <= 0 || s.store.Count() == 0 {
		return nil, nil
	}

	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if isZero(vectors[0]) {
		return nil, nil
	}

	hits, err := s.store.Search(vectors[0], k, s.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return hits, nil
}

func (s *SemanticIndex) Count() int {
	return s.store.Count()
}

// Discard drops all vectors from memory and disk.
func (s *SemanticIndex) Discard() error {
	return s.store.Remove()
}

func (s *SemanticIndex) Close() error {
	return s.store.Close()
}

func (s *SemanticIndex) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) {
			return nil, fmt.Errorf("failed to embed: %w", err)
		}
		return nil, fmt.Errorf("failed to embed: %w: %v", domain.ErrModelUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", domain.ErrModelUnavailable, len(vectors), len(texts))
	}
	dim := s.embedder.Dimension()
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedder returned %d values, expected %d", domain.ErrDimensionMismatch, len(v), dim)
		}
	}
	return vectors, nil
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
