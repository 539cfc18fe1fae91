package embedding

import (
	"fmt"
	"path/filepath"

	"smartfind/config"
	"smartfind/internal/domain"
	"smartfind/internal/port"
)

// DefaultDimension is the vector size of the hashing embedder.
const DefaultDimension = 256

// Embedding providers.
const (
	ProviderHashing = "hashing"
	ProviderWordVec = "wordvec"
)

// New creates the embedder selected by cfg. A relative model path is
// resolved against the models directory of dataDir.
func New(cfg config.EmbeddingConfig, dataDir string, tokenizer port.Tokenizer) (port.Embedder, error) {
	switch cfg.Provider {
	case "", ProviderHashing:
		return NewHashingEmbedder(tokenizer, cfg.Dimension), nil
	case ProviderWordVec:
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("%w: embedding.model_path is not set", domain.ErrModelUnavailable)
		}
		path := cfg.ModelPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(config.ModelsDir(dataDir), path)
		}
		e, err := LoadWordVectors(path, tokenizer)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrModelUnavailable, cfg.Provider)
	}
}
