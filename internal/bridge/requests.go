package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"smartfind/internal/domain"
)

// Status values of the boundary responses.
const (
	StatusIndexed = "indexed"
	StatusTrained = "trained"
)

type TrainLocalIndexRequest struct {
	DataDir string `json:"data_dir"`
	// Documents is a JSON object mapping path to text. A JSON string
	// holding such an object is accepted too.
	Documents json.RawMessage `json:"documents_json"`
}

func (r TrainLocalIndexRequest) Validate() error {
	return requireField("data_dir", r.DataDir)
}

// DecodeDocuments parses Documents into a path to text map.
func (r TrainLocalIndexRequest) DecodeDocuments() (map[string]string, error) {
	raw := bytes.TrimSpace(r.Documents)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: documents_json is required", domain.ErrInvalidRequest)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: documents_json: %v", domain.ErrInvalidRequest, err)
		}
		raw = []byte(s)
	}

	var docs map[string]string
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("%w: documents_json must map paths to text: %v", domain.ErrInvalidRequest, err)
	}
	if docs == nil {
		return nil, fmt.Errorf("%w: documents_json must be an object", domain.ErrInvalidRequest)
	}
	for path := range docs {
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: documents_json contains an empty path", domain.ErrInvalidRequest)
		}
	}
	return docs, nil
}

type TrainLocalIndexResponse struct {
	Status domain.TrainStatus `json:"status"`
}

type SearchRequest struct {
	DataDir string `json:"data_dir"`
	Query   string `json:"query"`
}

func (r SearchRequest) Validate() error {
	return requireField("data_dir", r.DataDir)
}

type SearchResponse struct {
	Results []string `json:"results"`
}

type AddToIndexRequest struct {
	DataDir string `json:"data_dir"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (r AddToIndexRequest) Validate() error {
	if err := requireField("data_dir", r.DataDir); err != nil {
		return err
	}
	return requireField("path", r.Path)
}

type AddToIndexResponse struct {
	Status string `json:"status"`
}

type GetRecommendationsRequest struct {
	DataDir string `json:"data_dir"`
	Month   int    `json:"month"`
	Weekday int    `json:"weekday"`
	Hour    int    `json:"hour"`
}

func (r GetRecommendationsRequest) Validate() error {
	if err := requireField("data_dir", r.DataDir); err != nil {
		return err
	}
	return domain.ValidateContext(r.Month, r.Weekday, r.Hour)
}

type GetRecommendationsResponse struct {
	Recommendations []string `json:"recommendations"`
}

type TrainRecommenderRequest struct {
	DataDir string `json:"data_dir"`
	LogPath string `json:"log_path"`
}

func (r TrainRecommenderRequest) Validate() error {
	if err := requireField("data_dir", r.DataDir); err != nil {
		return err
	}
	return requireField("log_path", r.LogPath)
}

type TrainRecommenderResponse struct {
	Status string `json:"status"`
}

type ClassifyFileRequest struct {
	ModelDir string `json:"model_dir"`
	Text     string `json:"text"`
}

func (r ClassifyFileRequest) Validate() error {
	return requireField("model_dir", r.ModelDir)
}

type ClassifyFileResponse struct {
	TopicNumber int     `json:"topic_number"`
	Confidence  float64 `json:"confidence"`
}

type SummarizeFileRequest struct {
	Text string `json:"text"`
}

type SummarizeFileResponse struct {
	Summary string `json:"summary"`
}

type ReadFileRequest struct {
	Path string `json:"path"`
}

func (r ReadFileRequest) Validate() error {
	return requireField("path", r.Path)
}

type ReadFileResponse struct {
	Content string `json:"content"`
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidRequest, name)
	}
	return nil
}
