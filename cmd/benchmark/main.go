package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartfind/config"
	"smartfind/internal/domain"
	"smartfind/internal/logging"
	"smartfind/internal/usecase"
)

func main() {
	dataDir := flag.String("data-dir", ".smartfind", "Data directory of a trained index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 20, "Repetitions per mode for latency")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -data-dir ./.smartfind -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Index infrastructure (backends, document count)")
		fmt.Println("  2. Latency per search mode (keyword, semantic, hybrid)")
		fmt.Println("  3. Result overlap between keyword and semantic search")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(filepath.Dir(*dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Logging.Level = "warn"

	registry := usecase.NewRegistry(cfg, logging.New(cfg.Logging))
	defer registry.Close()

	coordinator, err := registry.Index(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}

	status := coordinator.Status()
	if status.State != domain.StateReady {
		fmt.Fprintf(os.Stderr, "Index is %s - run 'smartfind index' first\n", status.State)
		os.Exit(1)
	}
	lexicalErr, semanticErr := coordinator.Backends()

	fmt.Println("SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents indexed: %d\n", status.DocumentCount)
	fmt.Printf("Embedding:         %s (dimension %d)\n", cfg.Embedding.Provider, cfg.Embedding.Dimension)
	fmt.Printf("Keyword index:     %s\n", backendState(lexicalErr))
	fmt.Printf("Semantic index:    %s\n", backendState(semanticErr))
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	results := make(map[usecase.SearchMode][]domain.SearchHit)
	for _, mode := range []usecase.SearchMode{usecase.ModeKeyword, usecase.ModeSemantic, usecase.ModeHybrid} {
		hits, avg, err := measure(ctx, coordinator, mode, *query, *topK, *runs)
		if err != nil {
			if errors.Is(err, domain.ErrModelUnavailable) || errors.Is(err, domain.ErrIndexNotReady) {
				fmt.Printf("%-9s unavailable: %v\n\n", mode, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		results[mode] = hits

		fmt.Printf("%-9s %d results, avg %s over %d runs\n", mode, len(hits), avg, *runs)
		for i, h := range hits {
			fmt.Printf("  %d. [%s %.3f] %s\n", i+1, rating(mode, h.Score), h.Score, shortPath(h.DocID))
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	kw, sem := results[usecase.ModeKeyword], results[usecase.ModeSemantic]
	if len(kw) == 0 || len(sem) == 0 {
		fmt.Println("  Overlap: n/a (a backend returned nothing)")
		return
	}
	overlap := overlapRatio(kw, sem)
	fmt.Printf("  Keyword/semantic overlap: %.0f%%\n", overlap*100)
	fmt.Printf("  Top-1 semantic similarity: %.3f\n", sem[0].Score)

	if overlap > 0.5 {
		fmt.Println("  Status: GOOD - both backends agree on the top results")
	} else if overlap > 0.2 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - semantic results diverge, check the embedding model")
	}
}

func measure(ctx context.Context, c *usecase.IndexCoordinator, mode usecase.SearchMode, query string, topK, runs int) ([]domain.SearchHit, time.Duration, error) {
	if runs < 1 {
		runs = 1
	}
	var hits []domain.SearchHit
	start := time.Now()
	for i := 0; i < runs; i++ {
		var err error
		hits, err = c.Search(ctx, mode, query, topK)
		if err != nil {
			return nil, 0, err
		}
	}
	return hits, time.Since(start) / time.Duration(runs), nil
}

func overlapRatio(a, b []domain.SearchHit) float64 {
	seen := make(map[string]struct{}, len(a))
	for _, h := range a {
		seen[h.DocID] = struct{}{}
	}
	shared := 0
	for _, h := range b {
		if _, ok := seen[h.DocID]; ok {
			shared++
		}
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return float64(shared) / float64(n)
}

func rating(mode usecase.SearchMode, score float64) string {
	if mode != usecase.ModeSemantic {
		return "-"
	}
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func backendState(err error) string {
	if err == nil {
		return "available"
	}
	return "unavailable (" + err.Error() + ")"
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return parts[len(parts)-1]
	}
	return path
}
