package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smartfind/config"
	"smartfind/internal/adapter/classifier"
	"smartfind/internal/bridge"
)

var (
	modelText string
	modelDir  string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Assign a topic to a file or text",
	Long: `Classify a file, or the text given with --text, against the topics of the
model directory. Topics are read from the classifier file of the model
directory when present, otherwise the built-in topics are used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a file or text",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSummarize,
}

var readCmd = &cobra.Command{
	Use:   "read <file>",
	Short: "Print the text extracted from a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(readCmd)

	classifyCmd.Flags().StringVar(&modelText, "text", "", "text to classify instead of a file")
	classifyCmd.Flags().StringVar(&modelDir, "model-dir", "", "model directory (default <data-dir>/models)")
	summarizeCmd.Flags().StringVar(&modelText, "text", "", "text to summarize instead of a file")
}

// inputText returns the --text value or the content of the file argument.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 {
		if modelText == "" {
			return "", errors.New("a file or --text is required")
		}
		return modelText, nil
	}
	resp, err := service.ReadFile(cmd.Context(), bridge.ReadFileRequest{Path: args[0]})
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return resp.Content, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	dir := modelDir
	if dir == "" {
		dir = config.ModelsDir(GetDataDir())
	}

	resp, err := service.ClassifyFile(cmd.Context(), bridge.ClassifyFileRequest{ModelDir: dir, Text: text})
	if err != nil {
		return err
	}
	if resp.TopicNumber == classifier.NoTopic {
		fmt.Println("No topic matched.")
		return nil
	}

	name := ""
	if c, err := classifier.Load(dir, GetConfig().Classifier.ModelFile); err == nil {
		name = c.TopicName(resp.TopicNumber)
	}
	fmt.Printf("Topic %d %s (confidence %.2f)\n", resp.TopicNumber, name, resp.Confidence)
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	resp, err := service.SummarizeFile(cmd.Context(), bridge.SummarizeFileRequest{Text: text})
	if err != nil {
		return err
	}
	fmt.Println(resp.Summary)
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	resp, err := service.ReadFile(cmd.Context(), bridge.ReadFileRequest{Path: args[0]})
	if err != nil {
		return err
	}
	fmt.Println(resp.Content)
	return nil
}
