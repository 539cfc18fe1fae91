package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
	"smartfind/config"
	"smartfind/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// File kinds recorded in the meta bucket so a file cannot be loaded as the
// wrong structure.
const (
	KindLexical     = "lexical"
	KindVectors     = "vectors"
	KindRecommender = "recommender"
)

var (
	bucketMeta       = []byte("meta")
	keySchemaVersion = []byte("schema_version")
	keyKind          = []byte("kind")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version, file kind and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	Kind       string `json:"kind"`
	ConfigHash string `json:"config_hash"`
}

func readSchema(tx *bbolt.Tx) (SchemaInfo, error) {
	var info SchemaInfo
	b := tx.Bucket(bucketMeta)
	if b == nil {
		return info, fmt.Errorf("%w: missing meta bucket", domain.ErrCorruptState)
	}

	versionData := b.Get(keySchemaVersion)
	if versionData == nil {
		return info, fmt.Errorf("%w: missing schema version", domain.ErrCorruptState)
	}
	v, err := strconv.Atoi(string(versionData))
	if err != nil {
		return info, fmt.Errorf("%w: invalid schema version %q", domain.ErrCorruptState, versionData)
	}
	info.Version = v
	info.Kind = string(b.Get(keyKind))
	info.ConfigHash = string(b.Get(keyConfigHash))
	return info, nil
}

func writeSchema(tx *bbolt.Tx, info SchemaInfo) error {
	b, err := tx.CreateBucketIfNotExists(bucketMeta)
	if err != nil {
		return fmt.Errorf("failed to create meta bucket: %w", err)
	}
	if err := b.Put(keySchemaVersion, []byte(strconv.Itoa(info.Version))); err != nil {
		return err
	}
	if err := b.Put(keyKind, []byte(info.Kind)); err != nil {
		return err
	}
	return b.Put(keyConfigHash, []byte(info.ConfigHash))
}

// checkSchema validates a loaded schema against the expected kind.
func checkSchema(info SchemaInfo, kind string) error {
	if info.Kind != kind {
		return fmt.Errorf("%w: file holds %q, expected %q", domain.ErrCorruptState, info.Kind, kind)
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: created by newer version (v%d > v%d)", domain.ErrCorruptState, info.Version, CurrentSchemaVersion)
	}
	return nil
}

// ComputeConfigHash computes a hash of index-relevant configuration.
// Changes to this hash indicate the lexical index should be rebuilt.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Stemming    bool    `json:"stemming"`
		Stopwords   bool    `json:"stopwords"`
		MinTokenLen int     `json:"min_token_len"`
		K1          float64 `json:"k1"`
		B           float64 `json:"b"`
	}{
		Stemming:    cfg.Index.Stemming,
		Stopwords:   cfg.Index.Stopwords,
		MinTokenLen: cfg.Index.MinTokenLen,
		K1:          cfg.Index.K1,
		B:           cfg.Index.B,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes whether a persisted index can be reused.
type MigrationResult struct {
	NeedsRebuild bool
	Reason       string
}

// CheckMigration compares the persisted config hash with the current one.
// Files written before hashes were recorded are reused.
func CheckMigration(persistedHash, currentHash string) MigrationResult {
	if persistedHash != "" && persistedHash != currentHash {
		return MigrationResult{NeedsRebuild: true, Reason: "index configuration changed"}
	}
	return MigrationResult{}
}
