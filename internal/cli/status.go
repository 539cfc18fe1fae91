package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the index and recommender",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	coordinator, err := registry.Index(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	recommender, err := registry.Recommender(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open recommender: %w", err)
	}

	status := coordinator.Status()
	lexicalErr, semanticErr := coordinator.Backends()

	if statusJSON {
		return printJSON(map[string]any{
			"data_dir":            GetDataDir(),
			"index":               status,
			"keyword_available":   lexicalErr == nil,
			"semantic_available":  semanticErr == nil,
			"recommender_trained": recommender.Trained(),
		})
	}

	fmt.Printf("Data directory: %s\n", GetDataDir())
	fmt.Printf("Index state:    %s\n", status.State)
	fmt.Printf("Documents:      %d\n", status.DocumentCount)
	if !status.LastTrainedAt.IsZero() {
		fmt.Printf("Last trained:   %s\n", status.LastTrainedAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("Keyword index:  %s\n", availability(lexicalErr))
	fmt.Printf("Semantic index: %s\n", availability(semanticErr))
	fmt.Printf("Recommender:    %s\n", map[bool]string{true: "trained", false: "untrained"}[recommender.Trained()])
	if status.LastError != "" {
		fmt.Printf("Last error:     %s\n", status.LastError)
	}
	return nil
}

func availability(err error) string {
	if err == nil {
		return "available"
	}
	return "unavailable (" + err.Error() + ")"
}
