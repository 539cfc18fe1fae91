package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"smartfind/internal/domain"
)

var (
	bucketBuckets   = []byte("buckets")
	bucketModelInfo = []byte("model_info")
	keyModelInfo    = []byte("info")
)

type modelInfo struct {
	TrainedAt time.Time `json:"trained_at"`
	Records   int       `json:"records"`
}

// ModelStore persists the recommender model. Each context bucket is one
// key holding its ranked items.
type ModelStore struct {
	mu   sync.Mutex
	path string
}

func NewModelStore(path string) *ModelStore {
	return &ModelStore{path: path}
}

// Load reads the whole model. The file is closed again afterwards: the
// recommender serves from memory.
func (s *ModelStore) Load() (*domain.RecommenderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removeStaleTemps(s.path)

	db, _, err := openExisting(s.path, KindRecommender)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	model := &domain.RecommenderModel{Buckets: make(map[domain.BucketKey][]domain.Recommendation)}
	err = db.View(func(tx *bbolt.Tx) error {
		ib, bb := tx.Bucket(bucketModelInfo), tx.Bucket(bucketBuckets)
		if ib == nil || bb == nil {
			return corrupt(s.path, "missing buckets", fmt.Errorf("model_info/buckets"))
		}
		var info modelInfo
		if data := ib.Get(keyModelInfo); data != nil {
			if err := json.Unmarshal(data, &info); err != nil {
				return corrupt(s.path, "model info", err)
			}
		}
		model.TrainedAt = info.TrainedAt
		model.Records = info.Records

		return bb.ForEach(func(k, v []byte) error {
			key, err := domain.ParseBucketKey(string(k))
			if err != nil {
				return corrupt(s.path, "bucket key", err)
			}
			var recs []domain.Recommendation
			if err := json.Unmarshal(v, &recs); err != nil {
				return corrupt(s.path, "bucket "+string(k), err)
			}
			model.Buckets[key] = recs
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Replace atomically writes model over the previous one.
func (s *ModelStore) Replace(model *domain.RecommenderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema := SchemaInfo{Version: CurrentSchemaVersion, Kind: KindRecommender}
	return replaceFile(s.path, schema, func(tx *bbolt.Tx) error {
		ib, err := tx.CreateBucketIfNotExists(bucketModelInfo)
		if err != nil {
			return err
		}
		bb, err := tx.CreateBucketIfNotExists(bucketBuckets)
		if err != nil {
			return err
		}
		data, err := json.Marshal(modelInfo{TrainedAt: model.TrainedAt, Records: model.Records})
		if err != nil {
			return err
		}
		if err := ib.Put(keyModelInfo, data); err != nil {
			return err
		}
		for key, recs := range model.Buckets {
			data, err := json.Marshal(recs)
			if err != nil {
				return err
			}
			if err := bb.Put([]byte(key.String()), data); err != nil {
				return err
			}
		}
		return nil
	})
}
