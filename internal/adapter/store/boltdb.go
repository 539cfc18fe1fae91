package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.etcd.io/bbolt"
	"smartfind/internal/domain"
)

var (
	bucketDocs  = []byte("docs")
	bucketTerms = []byte("terms")
	bucketStats = []byte("stats")
	keyStats    = []byte("corpus_stats")
)

// LexicalStore persists the inverted index of one data directory in a
// bbolt file. Whole-index writes go through Replace; single documents are
// applied in place with PutDoc.
type LexicalStore struct {
	mu   sync.Mutex
	path string
	db   *bbolt.DB
}

func NewLexicalStore(path string) *LexicalStore {
	return &LexicalStore{path: path}
}

func (s *LexicalStore) Path() string {
	return s.path
}

// Load reads the complete index. It returns domain.ErrNotFound when the
// file does not exist and domain.ErrCorruptState when it cannot be decoded.
func (s *LexicalStore) Load() (*domain.LexicalSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	removeStaleTemps(s.path)

	db, schema, err := openExisting(s.path, KindLexical)
	if err != nil {
		return nil, err
	}

	snap := &domain.LexicalSnapshot{
		Docs:       make(map[string]domain.DocTerms),
		Postings:   make(map[string][]domain.Posting),
		ConfigHash: schema.ConfigHash,
	}
	err = db.View(func(tx *bbolt.Tx) error {
		docs, terms, stats := tx.Bucket(bucketDocs), tx.Bucket(bucketTerms), tx.Bucket(bucketStats)
		if docs == nil || terms == nil || stats == nil {
			return corrupt(s.path, "missing buckets", fmt.Errorf("docs/terms/stats"))
		}

		if err := docs.ForEach(func(k, v []byte) error {
			var d domain.DocTerms
			if err := json.Unmarshal(v, &d); err != nil {
				return corrupt(s.path, "doc "+string(k), err)
			}
			snap.Docs[string(k)] = d
			return nil
		}); err != nil {
			return err
		}

		if err := terms.ForEach(func(k, v []byte) error {
			var postings []domain.Posting
			if err := json.Unmarshal(v, &postings); err != nil {
				return corrupt(s.path, "postings "+string(k), err)
			}
			if !domain.ValidPostings(postings) {
				return corrupt(s.path, "postings "+string(k), fmt.Errorf("not sorted by document"))
			}
			for _, p := range postings {
				if _, ok := snap.Docs[p.DocID]; !ok {
					return corrupt(s.path, "postings "+string(k), fmt.Errorf("unknown document %q", p.DocID))
				}
			}
			snap.Postings[string(k)] = postings
			return nil
		}); err != nil {
			return err
		}

		if data := stats.Get(keyStats); data != nil {
			if err := json.Unmarshal(data, &snap.Stats); err != nil {
				return corrupt(s.path, "stats", err)
			}
		}
		if snap.Stats.TotalDocs != len(snap.Docs) {
			return corrupt(s.path, "stats", fmt.Errorf("document count %d, found %d", snap.Stats.TotalDocs, len(snap.Docs)))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return snap, nil
}

// Replace atomically swaps the persisted index for snap.
func (s *LexicalStore) Replace(snap *domain.LexicalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	schema := SchemaInfo{Version: CurrentSchemaVersion, Kind: KindLexical, ConfigHash: snap.ConfigHash}
	return replaceFile(s.path, schema, func(tx *bbolt.Tx) error {
		docs, terms, stats, err := createLexicalBuckets(tx)
		if err != nil {
			return err
		}
		for id, d := range snap.Docs {
			data, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := docs.Put([]byte(id), data); err != nil {
				return err
			}
		}
		for term, postings := range snap.Postings {
			if len(postings) == 0 {
				continue
			}
			data, err := json.Marshal(postings)
			if err != nil {
				return err
			}
			if err := terms.Put([]byte(term), data); err != nil {
				return err
			}
		}
		data, err := json.Marshal(snap.Stats)
		if err != nil {
			return err
		}
		return stats.Put(keyStats, data)
	})
}

// PutDoc applies one document in place: its previous postings are removed,
// the new ones merged and the corpus stats replaced, all in one transaction.
func (s *LexicalStore) PutDoc(docID string, doc domain.DocTerms, stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		docsB, termsB, statsB := tx.Bucket(bucketDocs), tx.Bucket(bucketTerms), tx.Bucket(bucketStats)
		if docsB == nil || termsB == nil || statsB == nil {
			return corrupt(s.path, "missing buckets", fmt.Errorf("docs/terms/stats"))
		}

		affected := make(map[string]struct{}, len(doc.Terms))
		for term := range doc.Terms {
			affected[term] = struct{}{}
		}
		if old := docsB.Get([]byte(docID)); old != nil {
			var prev domain.DocTerms
			if err := json.Unmarshal(old, &prev); err != nil {
				return corrupt(s.path, "doc "+docID, err)
			}
			for term := range prev.Terms {
				affected[term] = struct{}{}
			}
		}

		for term := range affected {
			var postings []domain.Posting
			if data := termsB.Get([]byte(term)); data != nil {
				if err := json.Unmarshal(data, &postings); err != nil {
					return corrupt(s.path, "postings "+term, err)
				}
			}
			postings = domain.RemovePosting(postings, docID)
			if tf, ok := doc.Terms[term]; ok {
				postings = domain.UpsertPosting(postings, domain.Posting{DocID: docID, TF: tf})
			}
			if len(postings) == 0 {
				if err := termsB.Delete([]byte(term)); err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(postings)
			if err != nil {
				return err
			}
			if err := termsB.Put([]byte(term), data); err != nil {
				return err
			}
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := docsB.Put([]byte(docID), data); err != nil {
			return err
		}
		statsData, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return statsB.Put(keyStats, statsData)
	})
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", docID, wrapIO(err))
	}
	return nil
}

// Close releases the file handle.
func (s *LexicalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// Remove deletes the persisted index.
func (s *LexicalStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.path, wrapIO(err))
	}
	return nil
}

func (s *LexicalStore) ensureOpenLocked() error {
	if s.db != nil {
		return nil
	}
	db, _, err := openExisting(s.path, KindLexical)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *LexicalStore) closeLocked() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func createLexicalBuckets(tx *bbolt.Tx) (docs, terms, stats *bbolt.Bucket, err error) {
	if docs, err = tx.CreateBucketIfNotExists(bucketDocs); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create bucket %s: %w", bucketDocs, err)
	}
	if terms, err = tx.CreateBucketIfNotExists(bucketTerms); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create bucket %s: %w", bucketTerms, err)
	}
	if stats, err = tx.CreateBucketIfNotExists(bucketStats); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create bucket %s: %w", bucketStats, err)
	}
	return docs, terms, stats, nil
}
