package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smartfind/config"
	"smartfind/internal/domain"
)

func sampleSnapshot() *domain.LexicalSnapshot {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.LexicalSnapshot{
		Docs: map[string]domain.DocTerms{
			"a.txt": {Terms: map[string]int{"apple": 1, "banana": 1}, Length: 2, IndexedAt: now},
			"b.txt": {Terms: map[string]int{"banana": 3}, Length: 3, IndexedAt: now},
		},
		Postings: map[string][]domain.Posting{
			"apple":  {{DocID: "a.txt", TF: 1}},
			"banana": {{DocID: "a.txt", TF: 1}, {DocID: "b.txt", TF: 3}},
		},
		Stats:      domain.Stats{TotalDocs: 2, TotalTokens: 5, LastTrainedAt: now},
		ConfigHash: "abc123",
	}
}

func TestLexicalStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "lexical.db")
	s := NewLexicalStore(path)
	defer s.Close()

	want := sampleSnapshot()
	require.NoError(t, s.Replace(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Postings, got.Postings)
	assert.Equal(t, want.Stats.TotalDocs, got.Stats.TotalDocs)
	assert.Equal(t, want.Stats.TotalTokens, got.Stats.TotalTokens)
	assert.True(t, want.Stats.LastTrainedAt.Equal(got.Stats.LastTrainedAt))
	assert.Equal(t, "abc123", got.ConfigHash)
	require.Len(t, got.Docs, 2)
	assert.Equal(t, 3, got.Docs["b.txt"].Length)
}

func TestLexicalStore_MissingFile(t *testing.T) {
	s := NewLexicalStore(filepath.Join(t.TempDir(), "lexical.db"))
	_, err := s.Load()
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLexicalStore_CorruptFiles(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lexical.db")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := NewLexicalStore(path).Load()
		assert.ErrorIs(t, err, domain.ErrCorruptState)
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lexical.db")
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 32*1024), 0644))

		_, err := NewLexicalStore(path).Load()
		assert.ErrorIs(t, err, domain.ErrCorruptState)
		assert.False(t, domain.Retryable(err))
	})

	t.Run("wrong kind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.db")
		vs := NewVectorStore(path)
		require.NoError(t, vs.Replace(&domain.VectorSnapshot{Dimension: 2, Vectors: map[string][]float32{}}))
		require.NoError(t, vs.Close())

		_, err := NewLexicalStore(path).Load()
		assert.ErrorIs(t, err, domain.ErrCorruptState)
	})
}

func TestLexicalStore_ReplaceLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewLexicalStore(filepath.Join(dir, "lexical.db"))
	defer s.Close()

	require.NoError(t, s.Replace(sampleSnapshot()))
	require.NoError(t, s.Replace(sampleSnapshot()))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLexicalStore_LoadRemovesStaleTemps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexical.db")
	s := NewLexicalStore(path)
	defer s.Close()
	require.NoError(t, s.Replace(sampleSnapshot()))

	stale := path + ".tmp-123"
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))

	_, err := s.Load()
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestLexicalStore_PutDocReplacesPostings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexical.db")
	s := NewLexicalStore(path)
	defer s.Close()
	require.NoError(t, s.Replace(sampleSnapshot()))

	// a.txt no longer mentions apple
	doc := domain.DocTerms{Terms: map[string]int{"cherry": 2}, Length: 2}
	require.NoError(t, s.PutDoc("a.txt", doc, domain.Stats{TotalDocs: 2, TotalTokens: 5}))

	// c.txt sorts after b.txt
	doc = domain.DocTerms{Terms: map[string]int{"banana": 1}, Length: 1}
	require.NoError(t, s.PutDoc("c.txt", doc, domain.Stats{TotalDocs: 3, TotalTokens: 6}))

	got, err := s.Load()
	require.NoError(t, err)

	_, hasApple := got.Postings["apple"]
	assert.False(t, hasApple)
	assert.Equal(t, []domain.Posting{{DocID: "a.txt", TF: 2}}, got.Postings["cherry"])
	assert.Equal(t, []domain.Posting{{DocID: "b.txt", TF: 3}, {DocID: "c.txt", TF: 1}}, got.Postings["banana"])
	assert.Equal(t, 3, got.Stats.TotalDocs)
}

func TestLexicalStore_PutDocWithoutFile(t *testing.T) {
	s := NewLexicalStore(filepath.Join(t.TempDir(), "lexical.db"))
	err := s.PutDoc("a.txt", domain.DocTerms{}, domain.Stats{TotalDocs: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorStore_RoundTripAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s := NewVectorStore(path)

	snap := &domain.VectorSnapshot{
		Dimension: 3,
		Model:     "hashing-3",
		Vectors: map[string][]float32{
			"b.txt": {1, 0, 0},
			"a.txt": {1, 0, 0},
			"c.txt": {0, 1, 0},
		},
	}
	require.NoError(t, s.Replace(snap))
	require.NoError(t, s.Close())

	reloaded := NewVectorStore(path)
	defer reloaded.Close()
	got, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.Vectors, got.Vectors)
	assert.Equal(t, "hashing-3", got.Model)

	hits, err := reloaded.Search([]float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// equal scores fall back to document id order
	assert.Equal(t, "a.txt", hits[0].DocID)
	assert.Equal(t, "b.txt", hits[1].DocID)
	assert.Equal(t, "c.txt", hits[2].DocID)

	hits, err = reloaded.Search([]float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestVectorStore_Upsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s := NewVectorStore(path)
	defer s.Close()
	require.NoError(t, s.Replace(&domain.VectorSnapshot{Dimension: 2, Vectors: map[string][]float32{"a.txt": {1, 0}}}))

	require.NoError(t, s.Upsert("b.txt", []float32{0, 1}))
	require.NoError(t, s.Upsert("b.txt", []float32{0, 1}))
	assert.Equal(t, 2, s.Count())

	err := s.Upsert("c.txt", []float32{1, 2, 3})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.Search([]float32{1}, 5, 0)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got.Vectors, 2)
}

func TestVectorStore_ReplaceRejectsMixedDimensions(t *testing.T) {
	s := NewVectorStore(filepath.Join(t.TempDir(), "vectors.db"))
	err := s.Replace(&domain.VectorSnapshot{
		Dimension: 2,
		Vectors:   map[string][]float32{"a": {1, 0}, "b": {1}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestModelStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "recommender.db")
	s := NewModelStore(path)

	exact := domain.KeyFor(domain.LevelExact, 1, 1, 9)
	hour := domain.KeyFor(domain.LevelHour, 1, 1, 9)
	model := &domain.RecommenderModel{
		Buckets: map[domain.BucketKey][]domain.Recommendation{
			exact: {{ItemID: "fileA", Count: 2, LastSeq: 3}, {ItemID: "fileB", Count: 1, LastSeq: 2}},
			hour:  {{ItemID: "fileA", Count: 2, LastSeq: 3}},
		},
		Records: 3,
	}
	require.NoError(t, s.Replace(model))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, model.Buckets, got.Buckets)
	assert.Equal(t, 3, got.Records)
}

func TestModelStore_MissingFile(t *testing.T) {
	_, err := NewModelStore(filepath.Join(t.TempDir(), "recommender.db")).Load()
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckMigration(t *testing.T) {
	cfg := config.DefaultConfig()
	hash := ComputeConfigHash(cfg)

	assert.False(t, CheckMigration(hash, hash).NeedsRebuild)
	assert.False(t, CheckMigration("", hash).NeedsRebuild)

	cfg.Index.Stemming = !cfg.Index.Stemming
	res := CheckMigration(hash, ComputeConfigHash(cfg))
	assert.True(t, res.NeedsRebuild)
	assert.NotEmpty(t, res.Reason)
}

func TestLoadKeepsTempFilesOfReplacementsInProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexical.db")
	st := NewLexicalStore(path)
	require.NoError(t, st.Replace(sampleSnapshot()))
	require.NoError(t, st.Close())

	fresh := path + ".tmp-fresh"
	old := path + ".tmp-old"
	require.NoError(t, os.WriteFile(fresh, nil, 0600))
	require.NoError(t, os.WriteFile(old, nil, 0600))
	past := time.Now().Add(-2 * staleTempAge)
	require.NoError(t, os.Chtimes(old, past, past))

	reopened := NewLexicalStore(path)
	defer reopened.Close()
	_, err := reopened.Load()
	require.NoError(t, err)

	assert.FileExists(t, fresh)
	assert.NoFileExists(t, old)
}
