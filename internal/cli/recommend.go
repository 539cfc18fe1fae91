package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smartfind/config"
	"smartfind/internal/usecase"
)

var (
	accessLog     string
	recMonth      int
	recWeekday    int
	recHour       int
	recommendJSON bool
)

var trainRecommenderCmd = &cobra.Command{
	Use:   "train-recommender [log]",
	Short: "Train the recommender from an access log",
	Long: `Build the recommender model from an access log. Each line of the log is
"month,weekday,hour,item_id" with weekday 1 (Monday) to 7 (Sunday).
Malformed lines are skipped.

Examples:
  smartfind train-recommender                 # Use <data-dir>/access.log
  smartfind train-recommender ~/opened.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrainRecommender,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend files for a time context",
	Long: `List the files most often opened in a time context. The context defaults
to the current local time; any of --month, --weekday and --hour overrides it.`,
	RunE: runRecommend,
}

var recordAccessCmd = &cobra.Command{
	Use:   "record-access <item>",
	Short: "Append an access of an item at the current time to the access log",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordAccess,
}

func init() {
	rootCmd.AddCommand(trainRecommenderCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(recordAccessCmd)

	recommendCmd.Flags().IntVar(&recMonth, "month", 0, "month 1-12 (default current)")
	recommendCmd.Flags().IntVar(&recWeekday, "weekday", 0, "weekday 1-7, Monday is 1 (default current)")
	recommendCmd.Flags().IntVar(&recHour, "hour", -1, "hour 0-23 (default current)")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "output as JSON")

	recordAccessCmd.Flags().StringVar(&accessLog, "log", "", "access log path (default <data-dir>/access.log)")
}

func logPathOrDefault(path string) string {
	if path != "" {
		return path
	}
	return config.AccessLogPath(GetDataDir())
}

func runTrainRecommender(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	path = logPathOrDefault(path)

	recommender, err := registry.Recommender(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open recommender: %w", err)
	}
	result, err := recommender.Train(path)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Printf("Recommender trained from %s:\n", path)
	fmt.Printf("  Records:  %d\n", result.Records)
	fmt.Printf("  Skipped:  %d\n", result.Skipped)
	fmt.Printf("  Contexts: %d\n", result.Buckets)
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	month, weekday, hour := usecase.ContextOf(time.Now())
	if cmd.Flags().Changed("month") {
		month = recMonth
	}
	if cmd.Flags().Changed("weekday") {
		weekday = recWeekday
	}
	if cmd.Flags().Changed("hour") {
		hour = recHour
	}

	recommender, err := registry.Recommender(GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open recommender: %w", err)
	}
	items, level, err := recommender.Lookup(month, weekday, hour)
	if err != nil {
		return err
	}

	if recommendJSON {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("No recommendations.")
		return nil
	}
	fmt.Printf("Recommendations for month %d, weekday %d, hour %d (matched %s):\n\n", month, weekday, hour, level)
	for i, item := range items {
		fmt.Printf("[%d] %s (%d opens)\n", i+1, item.ItemID, item.Count)
	}
	return nil
}

func runRecordAccess(cmd *cobra.Command, args []string) error {
	path := logPathOrDefault(accessLog)
	if err := usecase.RecordAccess(path, args[0], time.Now()); err != nil {
		return err
	}
	logger.Debug("access recorded", "item", args[0], "log", path)
	return nil
}
