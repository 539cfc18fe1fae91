package usecase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"smartfind/config"
	"smartfind/internal/adapter/store"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
)

// trainLockTimeout bounds how long recommender training waits for the
// data directory lock.
const trainLockTimeout = 10 * time.Second

// RecommenderTrainResult summarizes one recommender training run.
type RecommenderTrainResult struct {
	Records int
	Skipped int
	Buckets int
}

// Recommender serves time-contextual file recommendations learned from an
// access log.
type Recommender struct {
	mu      sync.RWMutex
	store   *store.ModelStore
	lock    *flock.Flock
	model   *domain.RecommenderModel
	loadErr error
	topN    int
	logger  *slog.Logger
}

// NewRecommender opens the model persisted under dataDir. A missing model
// is not an error: recommendations are empty until Train runs.
func NewRecommender(dataDir string, topN int, logger *slog.Logger) (*Recommender, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("%w: data directory is required", domain.ErrInvalidRequest)
	}
	if err := config.EnsureModelsDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w: %v", domain.ErrIO, err)
	}
	if topN <= 0 {
		topN = 10
	}

	r := &Recommender{
		store:  store.NewModelStore(config.RecommenderDBPath(dataDir)),
		lock:   flock.New(config.RecommenderLockPath(dataDir)),
		topN:   topN,
		logger: logging.OrDefault(logger).With("data_dir", dataDir),
	}

	model, err := r.store.Load()
	switch {
	case err == nil:
		r.model = model
	case errors.Is(err, domain.ErrNotFound):
	default:
		r.loadErr = err
		r.logger.Warn("recommender model unusable, retrain required", "error", err)
	}
	return r, nil
}

// Train rebuilds the model from the access log at logPath and replaces the
// persisted one.
func (r *Recommender) Train(logPath string) (RecommenderTrainResult, error) {
	records, skipped, err := r.readLog(logPath)
	if err != nil {
		return RecommenderTrainResult{}, err
	}

	model := BuildModel(records)
	model.TrainedAt = time.Now().UTC()

	unlock, err := acquireLock(r.lock, trainLockTimeout)
	if err != nil {
		return RecommenderTrainResult{}, err
	}
	defer unlock()

	if err := r.store.Replace(model); err != nil {
		return RecommenderTrainResult{}, fmt.Errorf("failed to save recommender model: %w", err)
	}

	r.mu.Lock()
	r.model = model
	r.loadErr = nil
	r.mu.Unlock()

	result := RecommenderTrainResult{Records: len(records), Skipped: skipped, Buckets: len(model.Buckets)}
	r.logger.Info("recommender trained", "records", result.Records, "skipped", result.Skipped, "buckets", result.Buckets)
	return result, nil
}

// Recommend returns the item ids of the first context level, in
// domain.FallbackOrder, that has any history. The list is empty when
// nothing matches or the model was never trained.
func (r *Recommender) Recommend(month, weekday, hour int) ([]string, error) {
	items, _, err := r.Lookup(month, weekday, hour)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ItemID
	}
	return ids, nil
}

// Lookup is Recommend with counts and the level that matched.
func (r *Recommender) Lookup(month, weekday, hour int) ([]domain.Recommendation, domain.BucketLevel, error) {
	if err := domain.ValidateContext(month, weekday, hour); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.loadErr != nil {
		return nil, 0, fmt.Errorf("recommender model: %w", r.loadErr)
	}
	if r.model == nil {
		return []domain.Recommendation{}, 0, nil
	}

	for _, level := range domain.FallbackOrder {
		items := r.model.Buckets[domain.KeyFor(level, month, weekday, hour)]
		if len(items) == 0 {
			continue
		}
		if len(items) > r.topN {
			items = items[:r.topN]
		}
		return append([]domain.Recommendation(nil), items...), level, nil
	}
	return []domain.Recommendation{}, 0, nil
}

// Trained reports whether a model is loaded.
func (r *Recommender) Trained() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model != nil
}

// BuildModel counts records into every fallback level and ranks each
// bucket by count, then most recent access, then item id.
func BuildModel(records []domain.AccessRecord) *domain.RecommenderModel {
	counts := make(map[domain.BucketKey]map[string]*domain.Recommendation)
	for _, rec := range records {
		for _, level := range domain.FallbackOrder {
			key := domain.KeyFor(level, rec.Month, rec.Weekday, rec.Hour)
			items := counts[key]
			if items == nil {
				items = make(map[string]*domain.Recommendation)
				counts[key] = items
			}
			item := items[rec.ItemID]
			if item == nil {
				item = &domain.Recommendation{ItemID: rec.ItemID}
				items[rec.ItemID] = item
			}
			item.Count++
			if rec.Seq > item.LastSeq {
				item.LastSeq = rec.Seq
			}
		}
	}

	model := &domain.RecommenderModel{
		Buckets: make(map[domain.BucketKey][]domain.Recommendation, len(counts)),
		Records: len(records),
	}
	for key, items := range counts {
		ranked := make([]domain.Recommendation, 0, len(items))
		for _, item := range items {
			ranked = append(ranked, *item)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Count != ranked[j].Count {
				return ranked[i].Count > ranked[j].Count
			}
			if ranked[i].LastSeq != ranked[j].LastSeq {
				return ranked[i].LastSeq > ranked[j].LastSeq
			}
			return ranked[i].ItemID < ranked[j].ItemID
		})
		model.Buckets[key] = ranked
	}
	return model
}

// readLog parses month,weekday,hour,item_id lines. A header line and
// comment lines starting with # are allowed; malformed or out of range
// lines are skipped.
func (r *Recommender) readLog(logPath string) ([]domain.AccessRecord, int, error) {
	if strings.TrimSpace(logPath) == "" {
		return nil, 0, fmt.Errorf("%w: log path is required", domain.ErrInvalidRequest)
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []domain.AccessRecord
	skipped := 0
	headerAllowed := true
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.logger.Warn("skipping malformed access log line", "line", parseErr.Line, "error", parseErr.Err)
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: failed to read %s: %v", domain.ErrLogUnavailable, logPath, err)
		}

		if headerAllowed {
			headerAllowed = false
			if isHeader(fields) {
				continue
			}
		}

		rec, err := parseAccessRecord(fields)
		if err != nil {
			line, _ := reader.FieldPos(0)
			r.logger.Warn("skipping access log line", "line", line, "error", err)
			skipped++
			continue
		}
		rec.Seq = len(records) + 1
		records = append(records, rec)
	}
	return records, skipped, nil
}

// isHeader reports whether the first record of a log is a column header
// rather than data: its first field is not a number.
func isHeader(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	return err != nil
}

func parseAccessRecord(fields []string) (domain.AccessRecord, error) {
	if len(fields) != 4 {
		return domain.AccessRecord{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return domain.AccessRecord{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		nums[i] = n
	}
	rec := domain.AccessRecord{
		Month:   nums[0],
		Weekday: nums[1],
		Hour:    nums[2],
		ItemID:  strings.TrimSpace(fields[3]),
	}
	if rec.ItemID == "" {
		return domain.AccessRecord{}, fmt.Errorf("empty item id")
	}
	if err := rec.Validate(); err != nil {
		return domain.AccessRecord{}, err
	}
	return rec, nil
}

// ContextOf returns the month, ISO weekday (Monday = 1 ... Sunday = 7) and
// hour of t.
func ContextOf(t time.Time) (month, weekday, hour int) {
	weekday = int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return int(t.Month()), weekday, t.Hour()
}

// RecordAccess appends one access of itemID at t to the log at logPath,
// creating the file when needed.
func RecordAccess(logPath, itemID string, t time.Time) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", domain.ErrInvalidRequest)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w: %v", domain.ErrIO, err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open access log: %w: %v", domain.ErrIO, err)
	}
	defer f.Close()

	month, weekday, hour := ContextOf(t)
	w := csv.NewWriter(f)
	if err := w.Write([]string{strconv.Itoa(month), strconv.Itoa(weekday), strconv.Itoa(hour), itemID}); err != nil {
		return fmt.Errorf("failed to write access log: %w: %v", domain.ErrIO, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write access log: %w: %v", domain.ErrIO, err)
	}
	return nil
}
