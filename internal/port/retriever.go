package port

import (
	"context"

	"smartfind/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Search returns at most k hits for the query, best first.
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}
