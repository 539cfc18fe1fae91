package retriever

import (
	"context"

	"smartfind/internal/domain"
	"smartfind/internal/port"
)

// HybridRetriever combines keyword search with vector similarity search.
type HybridRetriever struct {
	lexical       port.Retriever
	semantic      port.Retriever // nil when the semantic backend is unavailable
	rrfK          int            // RRF constant (typically 60)
	lexicalWeight float64        // Weight for keyword results (0-1)
}

// NewHybridRetriever creates a new hybrid retriever.
func NewHybridRetriever(lexical, semantic port.Retriever, rrfK int, lexicalWeight float64) *HybridRetriever {
	if rrfK <= 0 {
		rrfK = 60
	}
	if lexicalWeight < 0 || lexicalWeight > 1 {
		lexicalWeight = 0.5
	}

	return &HybridRetriever{
		lexical:       lexical,
		semantic:      semantic,
		rrfK:          rrfK,
		lexicalWeight: lexicalWeight,
	}
}

// Search performs hybrid search. Without a semantic backend, or when it
// fails, the keyword results are returned alone.
func (r *HybridRetriever) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if r.semantic == nil {
		return r.lexical.Search(ctx, query, k)
	}

	// Get expanded candidate pool from both retrievers
	candidateK := k * 3
	if candidateK < 20 {
		candidateK = 20
	}

	lexicalResults, err := r.lexical.Search(ctx, query, candidateK)
	if err != nil {
		return nil, err
	}

	semanticResults, err := r.semantic.Search(ctx, query, candidateK)
	if err != nil {
		return truncate(lexicalResults, k), nil
	}

	return truncate(r.rrfFuse(lexicalResults, semanticResults), k), nil
}

// rrfFuse combines results using Reciprocal Rank Fusion.
// RRF score = Σ w/(k + rank) for each result list where the document appears.
func (r *HybridRetriever) rrfFuse(lexicalResults, semanticResults []domain.SearchHit) []domain.SearchHit {
	rrfScores := make(map[string]float64)

	for rank, result := range lexicalResults {
		rrfScores[result.DocID] += r.lexicalWeight / float64(r.rrfK+rank+1)
	}

	semanticWeight := 1.0 - r.lexicalWeight
	for rank, result := range semanticResults {
		rrfScores[result.DocID] += semanticWeight / float64(r.rrfK+rank+1)
	}

	fused := make([]domain.SearchHit, 0, len(rrfScores))
	for id, score := range rrfScores {
		fused = append(fused, domain.SearchHit{DocID: id, Score: score, Source: domain.SourceHybrid})
	}
	sortHits(fused)
	return fused
}

func truncate(hits []domain.SearchHit, k int) []domain.SearchHit {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}
