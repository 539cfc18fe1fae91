package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.K1 != 1.2 {
		t.Errorf("expected K1=1.2, got %f", cfg.Index.K1)
	}
	if cfg.Index.B != 0.75 {
		t.Errorf("expected B=0.75, got %f", cfg.Index.B)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.Provider != "hashing" {
		t.Errorf("expected hashing provider, got %s", cfg.Embedding.Provider)
	}
	if cfg.Reader.MaxChars != 5000 {
		t.Errorf("expected MaxChars=5000, got %d", cfg.Reader.MaxChars)
	}
	if cfg.Retrieve.CacheTTL != 5*time.Minute {
		t.Errorf("expected CacheTTL=5m, got %s", cfg.Retrieve.CacheTTL)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "smartfind.yaml")

	content := `
index:
  stemming: true
retrieve:
  top_k: 5
  cache_ttl: 30s
embedding:
  dimension: 64
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Index.Stemming {
		t.Errorf("expected Stemming=true, got %v", cfg.Index.Stemming)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.CacheTTL != 30*time.Second {
		t.Errorf("expected CacheTTL=30s, got %s", cfg.Retrieve.CacheTTL)
	}
	if cfg.Embedding.Dimension != 64 {
		t.Errorf("expected Dimension=64, got %d", cfg.Embedding.Dimension)
	}
	// untouched sections keep their defaults
	if cfg.Index.K1 != 1.2 {
		t.Errorf("expected default K1, got %f", cfg.Index.K1)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "smartfind.yaml")
	if err := os.WriteFile(configPath, []byte("index: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "smartfind.yaml")

	content := `
recommend:
  top_n: 3
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Recommend.TopN != 3 {
		t.Errorf("expected TopN=3, got %d", cfg.Recommend.TopN)
	}
}

func TestLoadFromDir_DotEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(EnvLogLevel+"=debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level from .env, got %s", cfg.Logging.Level)
	}
}

func TestPaths(t *testing.T) {
	dir := "/data/app"
	if got, want := LexicalDBPath(dir), filepath.Join(dir, "models", "lexical.db"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got, want := VectorDBPath(dir), filepath.Join(dir, "models", "vectors.db"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got, want := RecommenderDBPath(dir), filepath.Join(dir, "models", "recommender.db"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if LockPath(dir) == RecommenderLockPath(dir) {
		t.Errorf("index and recommender share lock file %s", LockPath(dir))
	}
}
