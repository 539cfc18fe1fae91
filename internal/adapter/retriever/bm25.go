package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"smartfind/internal/adapter/analyzer"
	"smartfind/internal/adapter/memstore"
	"smartfind/internal/adapter/store"
	"smartfind/internal/domain"
)

// LexicalIndex is the keyword backend: a BM25-scored inverted index held
// in memory and persisted through a store.LexicalStore. It has no locking
// of its own; the coordinator serializes writers against readers.
type LexicalIndex struct {
	store      *store.LexicalStore
	tokenizer  *analyzer.Tokenizer
	k1         float64
	b          float64
	configHash string
	mem        *memstore.MemoryStore
}

func NewLexicalIndex(st *store.LexicalStore, tokenizer *analyzer.Tokenizer, k1, b float64, configHash string) *LexicalIndex {
	return &LexicalIndex{
		store:      st,
		tokenizer:  tokenizer,
		k1:         k1,
		b:          b,
		configHash: configHash,
		mem:        memstore.NewMemoryStore(),
	}
}

// Load restores the persisted index. A file written with different
// tokenizer or scoring settings is reported through the migration result
// and left unloaded.
func (l *LexicalIndex) Load() (store.MigrationResult, error) {
	snap, err := l.store.Load()
	if err != nil {
		return store.MigrationResult{}, err
	}
	if res := store.CheckMigration(snap.ConfigHash, l.configHash); res.NeedsRebuild {
		return res, nil
	}
	l.mem = memstore.FromSnapshot(snap)
	return store.MigrationResult{}, nil
}

// Build tokenizes docs into a fresh in-memory index without touching the
// current one.
func (l *LexicalIndex) Build(docs map[string]string, now time.Time) *memstore.MemoryStore {
	mem := memstore.NewMemoryStore()
	for _, id := range sortedKeys(docs) {
		mem.PutDoc(id, l.docTerms(docs[id], now))
	}
	mem.SetTrainedAt(now)
	return mem
}

// Commit persists a built index and makes it current.
func (l *LexicalIndex) Commit(mem *memstore.MemoryStore) error {
	if err := l.store.Replace(mem.Snapshot(l.configHash)); err != nil {
		return fmt.Errorf("failed to save lexical index: %w", err)
	}
	l.mem = mem
	return nil
}

// BulkTrain rebuilds the index from scratch.
func (l *LexicalIndex) BulkTrain(docs map[string]string) error {
	return l.Commit(l.Build(docs, time.Now().UTC()))
}

// Add indexes one document, replacing any previous version of it.
func (l *LexicalIndex) Add(docID, text string) error {
	doc := l.docTerms(text, time.Now().UTC())
	stats := l.mem.StatsAfterPut(docID, doc)
	if err := l.store.PutDoc(docID, doc, stats); err != nil {
		return err
	}
	l.mem.PutDoc(docID, doc)
	return nil
}

// Search scores documents with BM25 over the distinct query terms. Ties
// are broken by ascending document id.
func (l *LexicalIndex) Search(_ context.Context, query string, k int) ([]domain.SearchHit, error) {
	queryTokens := l.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 || k <= 0 {
		return nil, nil
	}

	stats := l.mem.GetStats()
	if stats.TotalDocs == 0 {
		return nil, nil
	}

	N := float64(stats.TotalDocs)
	avgDl := stats.AvgDocLen()
	docScores := make(map[string]float64)
	seen := make(map[string]struct{}, len(queryTokens))

	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postings := l.mem.GetPostings(term)
		if len(postings) == 0 {
			continue
		}

		n := float64(len(postings))
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			doc, ok := l.mem.GetDoc(posting.DocID)
			if !ok {
				continue
			}
			docScores[posting.DocID] += BM25TermScore(idf, float64(posting.TF), float64(doc.Length), avgDl, l.k1, l.b)
		}
	}

	results := make([]domain.SearchHit, 0, len(docScores))
	for id, score := range docScores {
		results = append(results, domain.SearchHit{DocID: id, Score: score, Source: domain.SourceLexical})
	}
	sortHits(results)

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (l *LexicalIndex) DocCount() int {
	return l.mem.DocCount()
}

func (l *LexicalIndex) Stats() domain.Stats {
	return l.mem.GetStats()
}

// Discard drops the index from memory and disk.
func (l *LexicalIndex) Discard() error {
	l.mem = memstore.NewMemoryStore()
	return l.store.Remove()
}

func (l *LexicalIndex) Close() error {
	return l.store.Close()
}

func (l *LexicalIndex) docTerms(text string, now time.Time) domain.DocTerms {
	tf, length := l.tokenizer.TermFrequencies(text)
	return domain.DocTerms{Terms: tf, Length: length, IndexedAt: now}
}

// BM25TermScore is the contribution of one term to a document score.
func BM25TermScore(idf, tf, dl, avgDl, k1, b float64) float64 {
	if avgDl == 0 {
		avgDl = 1
	}
	return idf * (tf * (k1 + 1)) / (tf + k1*(1-b+b*dl/avgDl))
}

// sortHits orders by score descending, then document id ascending.
func sortHits(hits []domain.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
}

func sortedKeys(docs map[string]string) []string {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
