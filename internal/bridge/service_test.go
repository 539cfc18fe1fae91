package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfind/config"
	"smartfind/internal/adapter/fs"
	"smartfind/internal/adapter/summarizer"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
	"smartfind/internal/port"
	"smartfind/internal/usecase"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Retrieve.MinSimilarity = 0
	reg := usecase.NewRegistry(cfg, logging.Discard())
	svc := NewService(cfg, reg,
		fs.NewReader(cfg.Reader.MaxChars, logging.Discard()),
		summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences, cfg.Summarizer.MinLength, cfg.Summarizer.FallbackChars),
		logging.Discard(),
	)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func call(t *testing.T, svc *Service, method string, args any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return svc.Call(context.Background(), method, raw)
}

func TestServiceIndexFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	resp, err := svc.TrainLocalIndex(ctx, TrainLocalIndexRequest{
		DataDir:   dir,
		Documents: json.RawMessage(`{"a.txt": "apple banana", "b.txt": "banana cherry"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TrainTrained, resp.Status)

	kw, err := svc.SearchKeyword(ctx, SearchRequest{DataDir: dir, Query: "banana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, kw.Results)

	kw, err = svc.SearchKeyword(ctx, SearchRequest{DataDir: dir, Query: "apple"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, kw.Results)

	sem, err := svc.SearchSemantic(ctx, SearchRequest{DataDir: dir, Query: "cherry"})
	require.NoError(t, err)
	require.NotEmpty(t, sem.Results)
	assert.Equal(t, "b.txt", sem.Results[0])

	added, err := svc.AddToIndex(ctx, AddToIndexRequest{DataDir: dir, Path: "c.txt", Content: "cherry pie"})
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, added.Status)

	kw, err = svc.SearchKeyword(ctx, SearchRequest{DataDir: dir, Query: "pie"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, kw.Results)

	empty, err := svc.SearchKeyword(ctx, SearchRequest{DataDir: dir, Query: ""})
	require.NoError(t, err)
	assert.NotNil(t, empty.Results)
	assert.Empty(t, empty.Results)
}

func TestServiceDocumentsAsString(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	docs, err := json.Marshal(`{"a.txt": "apple banana"}`)
	require.NoError(t, err)
	resp, err := svc.TrainLocalIndex(context.Background(), TrainLocalIndexRequest{DataDir: dir, Documents: docs})
	require.NoError(t, err)
	assert.Equal(t, domain.TrainTrained, resp.Status)
}

func TestServicePartialTraining(t *testing.T) {
	svc := newTestService(t)
	svc.registry.SetEmbedderFactory(func(string) (port.Embedder, error) {
		return nil, errors.New("no model staged")
	})
	ctx := context.Background()
	dir := t.TempDir()

	resp, err := svc.TrainLocalIndex(ctx, TrainLocalIndexRequest{
		DataDir:   dir,
		Documents: json.RawMessage(`{"a.txt": "apple banana", "b.txt": "banana cherry"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TrainPartial, resp.Status)

	kw, err := svc.SearchKeyword(ctx, SearchRequest{DataDir: dir, Query: "banana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, kw.Results)

	_, err = svc.SearchSemantic(ctx, SearchRequest{DataDir: dir, Query: "banana"})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)

	_, err = svc.AddToIndex(ctx, AddToIndexRequest{DataDir: dir, Path: "c.txt", Content: "cherry"})
	var partial *domain.PartialIndexError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, domain.BackendSemantic, partial.Backend)
}

func TestServiceTrainAsync(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	result := <-svc.TrainLocalIndexAsync(context.Background(), TrainLocalIndexRequest{
		DataDir:   dir,
		Documents: json.RawMessage(`{"a.txt": "apple"}`),
	})
	require.NoError(t, result.Err)
	assert.Equal(t, domain.TrainTrained, result.Response.Status)
}

func TestServiceRecommendations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	none, err := svc.GetRecommendations(ctx, GetRecommendationsRequest{DataDir: dir, Month: 1, Weekday: 2, Hour: 9})
	require.NoError(t, err)
	assert.Empty(t, none.Recommendations)

	logPath := filepath.Join(t.TempDir(), "access.log")
	require.NoError(t, os.WriteFile(logPath, []byte("1,2,9,fileA\n1,2,9,fileA\n1,2,9,fileB\n"), 0644))

	trained, err := svc.TrainRecommender(ctx, TrainRecommenderRequest{DataDir: dir, LogPath: logPath})
	require.NoError(t, err)
	assert.Equal(t, StatusTrained, trained.Status)

	recs, err := svc.GetRecommendations(ctx, GetRecommendationsRequest{DataDir: dir, Month: 1, Weekday: 2, Hour: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"fileA", "fileB"}, recs.Recommendations)

	_, err = svc.TrainRecommender(ctx, TrainRecommenderRequest{DataDir: dir, LogPath: filepath.Join(dir, "nope.log")})
	assert.ErrorIs(t, err, domain.ErrLogUnavailable)

	_, err = svc.GetRecommendations(ctx, GetRecommendationsRequest{DataDir: dir, Month: 0, Weekday: 2, Hour: 9})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestServiceCollaborators(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cls, err := svc.ClassifyFile(ctx, ClassifyFileRequest{ModelDir: t.TempDir(), Text: "quarterly budget and tax invoice"})
	require.NoError(t, err)
	assert.Equal(t, 0, cls.TopicNumber)
	assert.Positive(t, cls.Confidence)

	cls, err = svc.ClassifyFile(ctx, ClassifyFileRequest{ModelDir: t.TempDir(), Text: "short"})
	require.NoError(t, err)
	assert.Equal(t, -1, cls.TopicNumber)
	assert.Zero(t, cls.Confidence)

	sum, err := svc.SummarizeFile(ctx, SummarizeFileRequest{Text: "Too short to summarize."})
	require.NoError(t, err)
	assert.Equal(t, "Too short to summarize.", sum.Summary)

	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello from disk"), 0644))
	read, err := svc.ReadFile(ctx, ReadFileRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "hello from disk", read.Content)

	_, err = svc.ReadFile(ctx, ReadFileRequest{Path: filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCall(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	out, err := call(t, svc, MethodTrainLocalIndex, map[string]any{
		"data_dir":       dir,
		"documents_json": map[string]string{"a.txt": "apple banana", "b.txt": "banana cherry"},
	})
	require.NoError(t, err)
	assert.Equal(t, TrainLocalIndexResponse{Status: domain.TrainTrained}, out)

	out, err = call(t, svc, MethodSearchKeyword, map[string]any{"data_dir": dir, "query": "apple"})
	require.NoError(t, err)
	assert.Equal(t, SearchResponse{Results: []string{"a.txt"}}, out)

	encoded, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results": ["a.txt"]}`, string(encoded))

	out, err = call(t, svc, MethodSummarizeFile, map[string]any{"text": "tiny"})
	require.NoError(t, err)
	assert.Equal(t, SummarizeFileResponse{Summary: "tiny"}, out)
}

func TestCallRejectsInvalidArguments(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	tests := []struct {
		name   string
		method string
		args   string
	}{
		{"unknown method", "delete_everything", `{}`},
		{"not an object", MethodSearchKeyword, `["a"]`},
		{"missing field", MethodSearchKeyword, `{"data_dir": "` + dir + `"}`},
		{"null field", MethodSearchKeyword, `{"data_dir": "` + dir + `", "query": null}`},
		{"unknown field", MethodReadFile, `{"path": "x", "mode": "r"}`},
		{"wrong type", MethodGetRecommendations, `{"data_dir": "` + dir + `", "month": "1", "weekday": 2, "hour": 9}`},
		{"out of range", MethodGetRecommendations, `{"data_dir": "` + dir + `", "month": 1, "weekday": 9, "hour": 9}`},
		{"empty data dir", MethodSearchKeyword, `{"data_dir": " ", "query": "x"}`},
		{"documents not a map", MethodTrainLocalIndex, `{"data_dir": "` + dir + `", "documents_json": [1, 2]}`},
		{"no arguments", MethodReadFile, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Call(context.Background(), tt.method, json.RawMessage(tt.args))
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestMethods(t *testing.T) {
	assert.Len(t, Methods(), 9)
	assert.Contains(t, Methods(), MethodTrainLocalIndex)
}
