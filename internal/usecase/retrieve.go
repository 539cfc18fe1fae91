package usecase

import (
	"context"
	"fmt"
	"strings"

	"smartfind/internal/domain"
)

// SearchMode selects the backend a query is routed to.
type SearchMode string

const (
	ModeKeyword  SearchMode = "keyword"
	ModeSemantic SearchMode = "semantic"
	ModeHybrid   SearchMode = "hybrid"
)

// ParseSearchMode validates a mode name.
func ParseSearchMode(s string) (SearchMode, error) {
	switch mode := SearchMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeKeyword, ModeSemantic, ModeHybrid:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unknown search mode %q (use keyword, semantic or hybrid)", domain.ErrInvalidRequest, s)
	}
}

// Search routes query to the backend of mode and returns at most topK
// scored hits. A semantic query with the semantic backend unavailable
// fails with domain.ErrModelUnavailable; a hybrid query falls back to
// keyword results.
func (c *IndexCoordinator) Search(ctx context.Context, mode SearchMode, query string, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = c.cfg.Retrieve.TopK
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.readyLocked(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeKeyword:
		if c.lexicalErr != nil {
			return nil, fmt.Errorf("keyword search: %w: %w", domain.ErrIndexNotReady, c.lexicalErr)
		}
		return c.keyword.Search(ctx, query, topK)
	case ModeSemantic:
		if c.semanticErr != nil {
			return nil, semanticUnavailable(c.semanticErr)
		}
		return c.vector.Search(ctx, query, topK)
	case ModeHybrid:
		if c.lexicalErr != nil {
			if c.semanticErr != nil {
				return nil, semanticUnavailable(c.semanticErr)
			}
			return c.vector.Search(ctx, query, topK)
		}
		return c.hybrid.Search(ctx, query, topK)
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidRequest, mode)
	}
}

// SearchResult is a simplified result for CLI output.
type SearchResult struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// ToResults converts hits for display.
func ToResults(hits []domain.SearchHit) []SearchResult {
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{Path: h.DocID, Score: h.Score, Source: string(h.Source)}
	}
	return results
}

func semanticUnavailable(cause error) error {
	return fmt.Errorf("semantic search: %w: %w", domain.ErrModelUnavailable, cause)
}
