// Package bridge is the call surface offered to the application shell: the
// nine boundary calls as typed Go methods, plus Call for shells that speak
// method names and JSON arguments.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"smartfind/config"
	"smartfind/internal/adapter/classifier"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
	"smartfind/internal/port"
	"smartfind/internal/usecase"
)

// Service implements the boundary calls on top of a usecase.Registry.
type Service struct {
	cfg        *config.Config
	registry   *usecase.Registry
	reader     port.FileReader
	summarizer port.Summarizer
	logger     *slog.Logger

	mu          sync.Mutex
	classifiers map[string]port.Classifier
}

// NewService creates the boundary service. The registry, reader and
// summarizer are owned by the caller.
func NewService(cfg *config.Config, registry *usecase.Registry, reader port.FileReader, summarizer port.Summarizer, logger *slog.Logger) *Service {
	return &Service{
		cfg:         cfg,
		registry:    registry,
		reader:      reader,
		summarizer:  summarizer,
		logger:      logging.OrDefault(logger),
		classifiers: make(map[string]port.Classifier),
	}
}

// TrainLocalIndex bulk trains the index of a data directory. A run where
// both backends fail is reported through the status, not an error.
func (s *Service) TrainLocalIndex(ctx context.Context, req TrainLocalIndexRequest) (TrainLocalIndexResponse, error) {
	if err := req.Validate(); err != nil {
		return TrainLocalIndexResponse{}, err
	}
	docs, err := req.DecodeDocuments()
	if err != nil {
		return TrainLocalIndexResponse{}, err
	}

	c, err := s.registry.Index(req.DataDir)
	if err != nil {
		return TrainLocalIndexResponse{}, err
	}
	report, err := c.Train(ctx, docs)
	if err != nil && report.Status != domain.TrainFailed {
		return TrainLocalIndexResponse{}, err
	}
	return TrainLocalIndexResponse{Status: report.Status}, nil
}

// TrainResult carries the outcome of TrainLocalIndexAsync.
type TrainResult struct {
	Response TrainLocalIndexResponse
	Err      error
}

// TrainLocalIndexAsync runs TrainLocalIndex on its own goroutine. The
// channel receives exactly one result.
func (s *Service) TrainLocalIndexAsync(ctx context.Context, req TrainLocalIndexRequest) <-chan TrainResult {
	out := make(chan TrainResult, 1)
	go func() {
		defer close(out)
		resp, err := s.TrainLocalIndex(ctx, req)
		out <- TrainResult{Response: resp, Err: err}
	}()
	return out
}

func (s *Service) SearchSemantic(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return SearchResponse{}, err
	}
	c, err := s.registry.Index(req.DataDir)
	if err != nil {
		return SearchResponse{}, err
	}
	results, err := c.SearchSemantic(ctx, req.Query)
	if err != nil {
		return SearchResponse{}, err
	}
	return SearchResponse{Results: results}, nil
}

func (s *Service) SearchKeyword(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return SearchResponse{}, err
	}
	c, err := s.registry.Index(req.DataDir)
	if err != nil {
		return SearchResponse{}, err
	}
	results, err := c.SearchKeyword(ctx, req.Query)
	if err != nil {
		return SearchResponse{}, err
	}
	return SearchResponse{Results: results}, nil
}

// AddToIndex indexes one document. A *domain.PartialIndexError is returned
// as is so the shell can tell which backend missed the update.
func (s *Service) AddToIndex(ctx context.Context, req AddToIndexRequest) (AddToIndexResponse, error) {
	if err := req.Validate(); err != nil {
		return AddToIndexResponse{}, err
	}
	c, err := s.registry.Index(req.DataDir)
	if err != nil {
		return AddToIndexResponse{}, err
	}
	if err := c.Add(ctx, req.Path, req.Content); err != nil {
		return AddToIndexResponse{}, err
	}
	return AddToIndexResponse{Status: StatusIndexed}, nil
}

func (s *Service) GetRecommendations(_ context.Context, req GetRecommendationsRequest) (GetRecommendationsResponse, error) {
	if err := req.Validate(); err != nil {
		return GetRecommendationsResponse{}, err
	}
	r, err := s.registry.Recommender(req.DataDir)
	if err != nil {
		return GetRecommendationsResponse{}, err
	}
	items, err := r.Recommend(req.Month, req.Weekday, req.Hour)
	if err != nil {
		return GetRecommendationsResponse{}, err
	}
	return GetRecommendationsResponse{Recommendations: items}, nil
}

func (s *Service) TrainRecommender(_ context.Context, req TrainRecommenderRequest) (TrainRecommenderResponse, error) {
	if err := req.Validate(); err != nil {
		return TrainRecommenderResponse{}, err
	}
	r, err := s.registry.Recommender(req.DataDir)
	if err != nil {
		return TrainRecommenderResponse{}, err
	}
	if _, err := r.Train(req.LogPath); err != nil {
		return TrainRecommenderResponse{}, err
	}
	return TrainRecommenderResponse{Status: StatusTrained}, nil
}

// ClassifyFile assigns a topic to text with the classifier staged in the
// model directory. Classifiers are loaded once per directory.
func (s *Service) ClassifyFile(_ context.Context, req ClassifyFileRequest) (ClassifyFileResponse, error) {
	if err := req.Validate(); err != nil {
		return ClassifyFileResponse{}, err
	}
	c, err := s.classifier(req.ModelDir)
	if err != nil {
		return ClassifyFileResponse{}, err
	}
	topic, confidence := c.Classify(req.Text)
	return ClassifyFileResponse{TopicNumber: topic, Confidence: confidence}, nil
}

func (s *Service) SummarizeFile(_ context.Context, req SummarizeFileRequest) (SummarizeFileResponse, error) {
	return SummarizeFileResponse{Summary: s.summarizer.Summarize(req.Text)}, nil
}

func (s *Service) ReadFile(_ context.Context, req ReadFileRequest) (ReadFileResponse, error) {
	if err := req.Validate(); err != nil {
		return ReadFileResponse{}, err
	}
	content, err := s.reader.ReadFile(req.Path)
	if err != nil {
		return ReadFileResponse{}, err
	}
	return ReadFileResponse{Content: content}, nil
}

func (s *Service) classifier(modelDir string) (port.Classifier, error) {
	key, err := filepath.Abs(modelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.classifiers[key]; ok {
		return c, nil
	}
	c, err := classifier.Load(key, s.cfg.Classifier.ModelFile)
	if err != nil {
		return nil, err
	}
	s.classifiers[key] = c
	s.logger.Debug("classifier loaded", "model_dir", key)
	return c, nil
}

// Close releases every index opened through the service.
func (s *Service) Close() error {
	return s.registry.Close()
}
