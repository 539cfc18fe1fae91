package domain

import (
	"fmt"
	"sort"
	"time"
)

// Posting records how often a term occurs in one document.
type Posting struct {
	DocID string `json:"d"`
	TF    int    `json:"tf"`
}

// LexicalEntry is the postings list of a single term, sorted by DocID.
type LexicalEntry struct {
	Term     string
	Postings []Posting
}

// DocTerms is the lexical record of one document.
type DocTerms struct {
	Terms     map[string]int `json:"terms"`
	Length    int            `json:"len"`
	IndexedAt time.Time      `json:"indexed_at"`
}

// LexicalSnapshot is the complete persisted form of a lexical index.
type LexicalSnapshot struct {
	Docs       map[string]DocTerms
	Postings   map[string][]Posting
	Stats      Stats
	ConfigHash string
}

// VectorSnapshot is the complete persisted form of a semantic index.
type VectorSnapshot struct {
	Dimension int
	Model     string
	Vectors   map[string][]float32
	TrainedAt time.Time
}

// VectorEntry is one document vector of the semantic index.
type VectorEntry struct {
	DocID  string
	Vector []float32
}

// Entries returns the vectors of the snapshot ordered by document id.
func (s *VectorSnapshot) Entries() []VectorEntry {
	entries := make([]VectorEntry, 0, len(s.Vectors))
	for id, vec := range s.Vectors {
		entries = append(entries, VectorEntry{DocID: id, Vector: vec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DocID < entries[j].DocID })
	return entries
}

// Source identifies the backend that produced a hit.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
	SourceHybrid   Source = "hybrid"
)

type SearchHit struct {
	DocID  string  `json:"doc_id"`
	Score  float64 `json:"score"`
	Source Source  `json:"source"`
}

// Stats holds corpus statistics of the lexical index.
type Stats struct {
	TotalDocs     int       `json:"total_docs"`
	TotalTokens   int       `json:"total_tokens"`
	LastTrainedAt time.Time `json:"last_trained_at"`
}

// AvgDocLen returns the mean document length in tokens.
func (s Stats) AvgDocLen() float64 {
	if s.TotalDocs == 0 {
		return 0
	}
	return float64(s.TotalTokens) / float64(s.TotalDocs)
}

// AccessRecord is one line of the access log. Seq is the line order,
// higher values are more recent.
type AccessRecord struct {
	ItemID  string
	Month   int
	Weekday int
	Hour    int
	Seq     int
}

// Validate checks the context fields are in range.
func (r AccessRecord) Validate() error {
	return ValidateContext(r.Month, r.Weekday, r.Hour)
}

// ValidateContext checks month 1-12, weekday 1-7 and hour 0-23.
func ValidateContext(month, weekday, hour int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidRequest, month)
	}
	if weekday < 1 || weekday > 7 {
		return fmt.Errorf("%w: weekday %d out of range 1-7", ErrInvalidRequest, weekday)
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidRequest, hour)
	}
	return nil
}

// BucketLevel is a granularity of the recommender context.
type BucketLevel int

const (
	LevelExact BucketLevel = iota
	LevelWeekdayHour
	LevelHour
	LevelWeekday
)

// FallbackOrder is the fixed lookup order used by the recommender.
var FallbackOrder = []BucketLevel{LevelExact, LevelWeekdayHour, LevelHour, LevelWeekday}

func (l BucketLevel) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelWeekdayHour:
		return "weekday_hour"
	case LevelHour:
		return "hour"
	case LevelWeekday:
		return "weekday"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// BucketKey identifies a (possibly coarsened) context bucket. Fields that
// the level ignores are zero.
type BucketKey struct {
	Level   BucketLevel
	Month   int
	Weekday int
	Hour    int
}

// KeyFor coarsens a context to the given level.
func KeyFor(level BucketLevel, month, weekday, hour int) BucketKey {
	switch level {
	case LevelExact:
		return BucketKey{Level: level, Month: month, Weekday: weekday, Hour: hour}
	case LevelWeekdayHour:
		return BucketKey{Level: level, Weekday: weekday, Hour: hour}
	case LevelHour:
		return BucketKey{Level: level, Hour: hour}
	default:
		return BucketKey{Level: level, Weekday: weekday}
	}
}

// String renders the key as used in the persisted model.
func (k BucketKey) String() string {
	return fmt.Sprintf("%d/%02d/%d/%02d", int(k.Level), k.Month, k.Weekday, k.Hour)
}

// ParseBucketKey is the inverse of BucketKey.String.
func ParseBucketKey(s string) (BucketKey, error) {
	var k BucketKey
	var level int
	if _, err := fmt.Sscanf(s, "%d/%d/%d/%d", &level, &k.Month, &k.Weekday, &k.Hour); err != nil {
		return BucketKey{}, fmt.Errorf("invalid bucket key %q: %w", s, err)
	}
	k.Level = BucketLevel(level)
	return k, nil
}

// Recommendation is a ranked item of a bucket.
type Recommendation struct {
	ItemID  string `json:"item_id"`
	Count   int    `json:"count"`
	LastSeq int    `json:"last_seq"`
}

// RecommenderModel maps context buckets to ranked items.
type RecommenderModel struct {
	Buckets   map[BucketKey][]Recommendation
	TrainedAt time.Time
	Records   int
}

// IndexState is the lifecycle state of the index of one data directory.
type IndexState string

const (
	StateUntrained IndexState = "untrained"
	StateTraining  IndexState = "training"
	StateReady     IndexState = "ready"
	StateFailed    IndexState = "failed"
)

type IndexStatus struct {
	State         IndexState `json:"state"`
	DocumentCount int        `json:"document_count"`
	LastTrainedAt time.Time  `json:"last_trained_at"`
	LastError     string     `json:"last_error,omitempty"`
}

// TrainStatus is the outcome reported by a bulk training run.
type TrainStatus string

const (
	TrainTrained TrainStatus = "trained"
	TrainPartial TrainStatus = "partial"
	TrainFailed  TrainStatus = "failed"
)
