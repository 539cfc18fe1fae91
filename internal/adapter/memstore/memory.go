package memstore

import (
	"sync"
	"time"

	"smartfind/internal/domain"
)

// MemoryStore is the in-memory inverted index searched by the lexical
// backend. Postings lists stay sorted by document id.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]domain.DocTerms
	postings map[string][]domain.Posting
	stats    domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]domain.DocTerms),
		postings: make(map[string][]domain.Posting),
	}
}

// FromSnapshot builds a store holding a copy of snap.
func FromSnapshot(snap *domain.LexicalSnapshot) *MemoryStore {
	s := NewMemoryStore()
	for id, d := range snap.Docs {
		s.docs[id] = copyDocTerms(d)
	}
	for term, postings := range snap.Postings {
		s.postings[term] = append([]domain.Posting(nil), postings...)
	}
	s.stats = snap.Stats
	return s
}

func (s *MemoryStore) GetDoc(id string) (domain.DocTerms, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *MemoryStore) GetPostings(term string) []domain.Posting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postings[term]
}

func (s *MemoryStore) GetStats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *MemoryStore) DocCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// StatsAfterPut returns the corpus stats PutDoc would produce, without
// changing the store.
func (s *MemoryStore) StatsAfterPut(docID string, doc domain.DocTerms) domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsAfterPutLocked(docID, doc)
}

// PutDoc inserts or replaces a document. Postings of a previous version
// are removed first, so putting the same document twice is a no-op.
func (s *MemoryStore) PutDoc(docID string, doc domain.DocTerms) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = s.statsAfterPutLocked(docID, doc)

	if prev, ok := s.docs[docID]; ok {
		for term := range prev.Terms {
			s.removePostingLocked(term, docID)
		}
	}
	for term, tf := range doc.Terms {
		s.postings[term] = domain.UpsertPosting(s.postings[term], domain.Posting{DocID: docID, TF: tf})
	}
	s.docs[docID] = copyDocTerms(doc)
}

// SetTrainedAt records when the index was last bulk trained.
func (s *MemoryStore) SetTrainedAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.LastTrainedAt = t
}

// Snapshot returns a deep copy suitable for persisting.
func (s *MemoryStore) Snapshot(configHash string) *domain.LexicalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.LexicalSnapshot{
		Docs:       make(map[string]domain.DocTerms, len(s.docs)),
		Postings:   make(map[string][]domain.Posting, len(s.postings)),
		Stats:      s.stats,
		ConfigHash: configHash,
	}
	for id, d := range s.docs {
		snap.Docs[id] = copyDocTerms(d)
	}
	for term, postings := range s.postings {
		snap.Postings[term] = append([]domain.Posting(nil), postings...)
	}
	return snap
}

func (s *MemoryStore) statsAfterPutLocked(docID string, doc domain.DocTerms) domain.Stats {
	stats := s.stats
	if prev, ok := s.docs[docID]; ok {
		stats.TotalTokens -= prev.Length
	} else {
		stats.TotalDocs++
	}
	stats.TotalTokens += doc.Length
	return stats
}

func (s *MemoryStore) removePostingLocked(term, docID string) {
	postings := domain.RemovePosting(s.postings[term], docID)
	if len(postings) == 0 {
		delete(s.postings, term)
		return
	}
	s.postings[term] = postings
}

func copyDocTerms(d domain.DocTerms) domain.DocTerms {
	terms := make(map[string]int, len(d.Terms))
	for t, n := range d.Terms {
		terms[t] = n
	}
	d.Terms = terms
	return d
}
