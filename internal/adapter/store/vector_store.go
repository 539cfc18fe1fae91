package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"smartfind/internal/domain"
)

var (
	bucketVectors    = []byte("vectors")
	bucketVectorInfo = []byte("vector_info")
	keyVectorInfo    = []byte("info")
)

type vectorInfo struct {
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	TrainedAt time.Time `json:"trained_at"`
}

// VectorStore keeps document vectors in a bbolt file and mirrors them in
// memory for brute-force cosine search.
type VectorStore struct {
	mu      sync.RWMutex
	path    string
	db      *bbolt.DB
	info    vectorInfo
	vectors map[string][]float32
}

func NewVectorStore(path string) *VectorStore {
	return &VectorStore{path: path, vectors: make(map[string][]float32)}
}

// Load reads every vector into memory and returns a copy of the snapshot.
func (s *VectorStore) Load() (*domain.VectorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	removeStaleTemps(s.path)

	db, _, err := openExisting(s.path, KindVectors)
	if err != nil {
		return nil, err
	}

	var info vectorInfo
	vectors := make(map[string][]float32)
	err = db.View(func(tx *bbolt.Tx) error {
		ib, vb := tx.Bucket(bucketVectorInfo), tx.Bucket(bucketVectors)
		if ib == nil || vb == nil {
			return corrupt(s.path, "missing buckets", fmt.Errorf("vector_info/vectors"))
		}
		data := ib.Get(keyVectorInfo)
		if data == nil {
			return corrupt(s.path, "vector info", fmt.Errorf("missing"))
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return corrupt(s.path, "vector info", err)
		}
		if info.Dimension <= 0 {
			return corrupt(s.path, "vector info", fmt.Errorf("dimension %d", info.Dimension))
		}
		return vb.ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return corrupt(s.path, "vector "+string(k), err)
			}
			if len(vec) != info.Dimension {
				return corrupt(s.path, "vector "+string(k), fmt.Errorf("dimension %d, expected %d", len(vec), info.Dimension))
			}
			vectors[string(k)] = vec
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	s.info = info
	s.vectors = vectors
	return s.snapshotLocked(), nil
}

// Replace atomically swaps the persisted vectors for snap and refreshes the
// in-memory copy.
func (s *VectorStore) Replace(snap *domain.VectorSnapshot) error {
	if snap.Dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrDimensionMismatch, snap.Dimension)
	}
	for id, vec := range snap.Vectors {
		if len(vec) != snap.Dimension {
			return fmt.Errorf("%w: %s has %d values, expected %d", domain.ErrDimensionMismatch, id, len(vec), snap.Dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	info := vectorInfo{Dimension: snap.Dimension, Model: snap.Model, TrainedAt: snap.TrainedAt}
	schema := SchemaInfo{Version: CurrentSchemaVersion, Kind: KindVectors}
	err := replaceFile(s.path, schema, func(tx *bbolt.Tx) error {
		ib, err := tx.CreateBucketIfNotExists(bucketVectorInfo)
		if err != nil {
			return err
		}
		vb, err := tx.CreateBucketIfNotExists(bucketVectors)
		if err != nil {
			return err
		}
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := ib.Put(keyVectorInfo, data); err != nil {
			return err
		}
		for _, e := range snap.Entries() {
			if err := vb.Put([]byte(e.DocID), encodeVector(e.Vector)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.info = info
	s.vectors = make(map[string][]float32, len(snap.Vectors))
	for id, vec := range snap.Vectors {
		s.vectors[id] = append([]float32(nil), vec...)
	}
	return nil
}

// Upsert stores or replaces the vector of one document.
func (s *VectorStore) Upsert(docID string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	if len(vec) != s.info.Dimension {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.info.Dimension, len(vec))
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return corrupt(s.path, "missing buckets", fmt.Errorf("vectors"))
		}
		return b.Put([]byte(docID), encodeVector(vec))
	})
	if err != nil {
		return fmt.Errorf("failed to store vector %s: %w", docID, wrapIO(err))
	}
	s.vectors[docID] = append([]float32(nil), vec...)
	return nil
}

// Search returns the k vectors most similar to query. A positive
// minSimilarity drops weaker hits; equal scores are ordered by document id.
func (s *VectorStore) Search(query []float32, k int, minSimilarity float64) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != s.info.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, expected %d", domain.ErrDimensionMismatch, len(query), s.info.Dimension)
	}

	hits := make([]domain.SearchHit, 0, len(s.vectors))
	for id, vec := range s.vectors {
		sim := CosineSimilarity(query, vec)
		if minSimilarity > 0 && sim < minSimilarity {
			continue
		}
		hits = append(hits, domain.SearchHit{DocID: id, Score: sim, Source: domain.SourceSemantic})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *VectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Dimension
}

func (s *VectorStore) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Model
}

func (s *VectorStore) Has(docID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vectors[docID]
	return ok
}

// Close releases the file handle. The in-memory vectors stay searchable.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// Remove deletes the persisted vectors and clears the in-memory copy.
func (s *VectorStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	s.info = vectorInfo{}
	s.vectors = make(map[string][]float32)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.path, wrapIO(err))
	}
	return nil
}

func (s *VectorStore) snapshotLocked() *domain.VectorSnapshot {
	snap := &domain.VectorSnapshot{
		Dimension: s.info.Dimension,
		Model:     s.info.Model,
		TrainedAt: s.info.TrainedAt,
		Vectors:   make(map[string][]float32, len(s.vectors)),
	}
	for id, vec := range s.vectors {
		snap.Vectors[id] = append([]float32(nil), vec...)
	}
	return snap
}

func (s *VectorStore) ensureOpenLocked() error {
	if s.db != nil {
		return nil
	}
	db, _, err := openExisting(s.path, KindVectors)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *VectorStore) closeLocked() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		f := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("non-finite value at %d", i)
		}
		vec[i] = f
	}
	return vec, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
