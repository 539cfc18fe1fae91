package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"smartfind/internal/domain"
)

// Boundary method names.
const (
	MethodTrainLocalIndex    = "train_local_index"
	MethodSearchSemantic     = "search_semantic"
	MethodSearchKeyword      = "search_keyword"
	MethodAddToIndex         = "add_to_index"
	MethodGetRecommendations = "get_recommendations"
	MethodTrainRecommender   = "train_recommender"
	MethodClassifyFile       = "classify_file"
	MethodSummarizeFile      = "summarize_file"
	MethodReadFile           = "read_file"
)

type handler struct {
	required []string
	call     func(ctx context.Context, s *Service, args json.RawMessage) (any, error)
}

// bind adapts a typed service method to a JSON handler.
func bind[Req, Resp any](fn func(*Service, context.Context, Req) (Resp, error), required ...string) handler {
	return handler{
		required: required,
		call: func(ctx context.Context, s *Service, args json.RawMessage) (any, error) {
			var req Req
			dec := json.NewDecoder(bytes.NewReader(args))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
			}
			return fn(s, ctx, req)
		},
	}
}

var handlers = map[string]handler{
	MethodTrainLocalIndex:    bind((*Service).TrainLocalIndex, "data_dir", "documents_json"),
	MethodSearchSemantic:     bind((*Service).SearchSemantic, "data_dir", "query"),
	MethodSearchKeyword:      bind((*Service).SearchKeyword, "data_dir", "query"),
	MethodAddToIndex:         bind((*Service).AddToIndex, "data_dir", "path", "content"),
	MethodGetRecommendations: bind((*Service).GetRecommendations, "data_dir", "month", "weekday", "hour"),
	MethodTrainRecommender:   bind((*Service).TrainRecommender, "data_dir", "log_path"),
	MethodClassifyFile:       bind((*Service).ClassifyFile, "model_dir", "text"),
	MethodSummarizeFile:      bind((*Service).SummarizeFile, "text"),
	MethodReadFile:           bind((*Service).ReadFile, "path"),
}

// Methods lists the method names accepted by Call.
func Methods() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches a method name with a JSON object of arguments to the
// typed method. Missing, unknown or wrongly typed arguments are reported
// as domain.ErrInvalidRequest.
func (s *Service) Call(ctx context.Context, method string, args json.RawMessage) (any, error) {
	h, ok := handlers[method]
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidRequest, method)
	}

	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s arguments must be a JSON object: %v", domain.ErrInvalidRequest, method, err)
	}
	for _, name := range h.required {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, fmt.Errorf("%w: %s: missing argument %q", domain.ErrInvalidRequest, method, name)
		}
	}

	return h.call(ctx, s, args)
}
