package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartfind/internal/usecase"
)

var (
	searchText string
	searchMode string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:     "search",
	Aliases: []string{"query"},
	Short:   "Search indexed files",
	Long: `Search the index of the data directory. Keyword mode ranks files with
BM25, semantic mode by embedding similarity and hybrid mode fuses both.

Examples:
  smartfind search -q "tax invoice"
  smartfind search -q "holiday plans" -m semantic --top-k 5 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(usecase.ModeKeyword), "search mode: keyword, semantic, hybrid")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	mode, err := usecase.ParseSearchMode(searchMode)
	if err != nil {
		return err
	}

	coordinator, err := registry.Index(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	hits, err := coordinator.Search(cmd.Context(), mode, searchText, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToResults(hits)

	if searchJSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Printf("[%d] %s (score: %.3f, %s)\n", i+1, r.Path, r.Score, r.Source)
	}
	return nil
}
