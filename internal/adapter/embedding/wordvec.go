package embedding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"smartfind/internal/domain"
	"smartfind/internal/port"
)

// WordVectorEmbedder averages pre-trained word vectors staged as a text
// file with one "word v1 v2 ... vn" entry per line. An optional word2vec
// style "count dim" header line is skipped.
type WordVectorEmbedder struct {
	tokenizer port.Tokenizer
	vectors   map[string][]float32
	dimension int
	name      string
}

// LoadWordVectors reads a word vector file. A missing, empty or
// inconsistent file is reported as domain.ErrModelUnavailable.
func LoadWordVectors(path string, tokenizer port.Tokenizer) (*WordVectorEmbedder, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: word vectors %s not found", domain.ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("%w: open word vectors: %v", domain.ErrModelUnavailable, err)
	}
	defer f.Close()

	e := &WordVectorEmbedder{
		tokenizer: tokenizer,
		vectors:   make(map[string][]float32),
		name:      "wordvec-" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 && isInt(fields[0]) && isInt(fields[1]) {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: %s:%d: no vector values", domain.ErrModelUnavailable, path, line)
		}

		vec := make([]float32, len(fields)-1)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: %s:%d: %v", domain.ErrModelUnavailable, path, line, err)
			}
			vec[i] = float32(v)
		}
		if e.dimension == 0 {
			e.dimension = len(vec)
		} else if len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: %s:%d: %d values, expected %d", domain.ErrModelUnavailable, path, line, len(vec), e.dimension)
		}
		e.vectors[strings.ToLower(fields[0])] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read word vectors: %v", domain.ErrModelUnavailable, err)
	}
	if len(e.vectors) == 0 {
		return nil, fmt.Errorf("%w: %s holds no word vectors", domain.ErrModelUnavailable, path)
	}
	return e, nil
}

// Embed averages the vectors of known tokens. Text without known tokens
// maps to the zero vector.
func (e *WordVectorEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec := make([]float32, e.dimension)
		n := 0
		for _, tok := range e.tokenizer.Tokenize(text) {
			wv, ok := e.vectors[tok]
			if !ok {
				continue
			}
			for j, f := range wv {
				vec[j] += f
			}
			n++
		}
		if n > 0 {
			for j := range vec {
				vec[j] /= float32(n)
			}
			NormalizeL2(vec)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *WordVectorEmbedder) Dimension() int {
	return e.dimension
}

func (e *WordVectorEmbedder) ModelName() string {
	return e.name
}

func (e *WordVectorEmbedder) Vocabulary() int {
	return len(e.vectors)
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
