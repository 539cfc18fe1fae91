package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration.
const (
	EnvDataDir  = "SMARTFIND_DATA_DIR"
	EnvLogLevel = "SMARTFIND_LOG_LEVEL"
)

// Config holds all configuration for the on-device engine.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Reader     ReaderConfig     `yaml:"reader"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// IndexConfig holds tokenizer and BM25 configuration.
type IndexConfig struct {
	Stemming    bool    `yaml:"stemming"`
	Stopwords   bool    `yaml:"stopwords"`
	MinTokenLen int     `yaml:"min_token_len"`
	K1          float64 `yaml:"k1"`
	B           float64 `yaml:"b"`
}

// RetrieveConfig holds query-time configuration.
type RetrieveConfig struct {
	TopK          int           `yaml:"top_k"`
	MinSimilarity float64       `yaml:"min_similarity"` // semantic hits below this are dropped (0 = disabled)
	RRFK          int           `yaml:"rrf_k"`
	LexicalWeight float64       `yaml:"lexical_weight"`
	CacheSize     int           `yaml:"cache_size"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// EmbeddingConfig selects the local embedding model.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "hashing", "wordvec"
	Dimension int    `yaml:"dimension"`
	ModelPath string `yaml:"model_path"` // word vector file for "wordvec"
}

// ClassifierConfig holds the keyword classifier configuration.
type ClassifierConfig struct {
	ModelFile string `yaml:"model_file"` // categories file inside the model dir
}

// SummarizerConfig holds the extractive summarizer configuration.
type SummarizerConfig struct {
	MaxSentences  int `yaml:"max_sentences"`
	MinLength     int `yaml:"min_length"`
	FallbackChars int `yaml:"fallback_chars"`
}

// ReaderConfig holds file reading and walking configuration.
type ReaderConfig struct {
	MaxChars int      `yaml:"max_chars"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// RecommendConfig holds recommender configuration.
type RecommendConfig struct {
	TopN int `yaml:"top_n"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Stemming:    false,
			Stopwords:   true,
			MinTokenLen: 2,
			K1:          1.2,
			B:           0.75,
		},
		Retrieve: RetrieveConfig{
			TopK:          10,
			MinSimilarity: 0.1,
			RRFK:          60,
			LexicalWeight: 0.5,
			CacheSize:     100,
			CacheTTL:      5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hashing",
			Dimension: 256,
		},
		Classifier: ClassifierConfig{
			ModelFile: "topics.yaml",
		},
		Summarizer: SummarizerConfig{
			MaxSentences:  3,
			MinLength:     50,
			FallbackChars: 200,
		},
		Reader: ReaderConfig{
			MaxChars: 5000,
			Includes: []string{"**/*.txt", "**/*.md", "**/*.html", "**/*.htm", "**/*.docx", "**/*.pdf"},
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/.smartfind/**", "**/models/**"},
		},
		Recommend: RecommendConfig{
			TopN: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for smartfind.yaml).
// A .env file in the directory is loaded first so it can supply overrides.
func LoadFromDir(dir string) (*Config, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	path := filepath.Join(dir, "smartfind.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".smartfind", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ModelsDir returns the directory holding persisted indices and models.
func ModelsDir(dataDir string) string {
	return filepath.Join(dataDir, "models")
}

// LexicalDBPath returns the path of the lexical index file.
func LexicalDBPath(dataDir string) string {
	return filepath.Join(ModelsDir(dataDir), "lexical.db")
}

// VectorDBPath returns the path of the semantic vector store.
func VectorDBPath(dataDir string) string {
	return filepath.Join(ModelsDir(dataDir), "vectors.db")
}

// RecommenderDBPath returns the path of the recommender model.
func RecommenderDBPath(dataDir string) string {
	return filepath.Join(ModelsDir(dataDir), "recommender.db")
}

// AccessLogPath returns the default recommender access log of a data
// directory.
func AccessLogPath(dataDir string) string {
	return filepath.Join(dataDir, "access.log")
}

// LockPath returns the cross-process lock file of a data directory.
func LockPath(dataDir string) string {
	return filepath.Join(ModelsDir(dataDir), "smartfind.lock")
}

// RecommenderLockPath returns the lock file guarding the recommender model.
func RecommenderLockPath(dataDir string) string {
	return filepath.Join(ModelsDir(dataDir), "recommender.lock")
}

// EnsureModelsDir ensures the models directory exists.
func EnsureModelsDir(dataDir string) error {
	return os.MkdirAll(ModelsDir(dataDir), 0755)
}
