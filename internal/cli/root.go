package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"smartfind/config"
	"smartfind/internal/adapter/fs"
	"smartfind/internal/adapter/summarizer"
	"smartfind/internal/bridge"
	"smartfind/internal/logging"
	"smartfind/internal/usecase"
)

var (
	cfgFile  string
	dataDir  string
	logLevel string

	cfg      *config.Config
	logger   *slog.Logger
	reader   *fs.Reader
	registry *usecase.Registry
	service  *bridge.Service
)

var rootCmd = &cobra.Command{
	Use:   "smartfind",
	Short: "SmartFind - on-device file search, classification and recommendations",
	Long: `SmartFind indexes local files for keyword (BM25) and semantic search,
classifies and summarizes documents, and recommends files from past access
patterns. Everything runs locally; indices live in the data directory.

Example usage:
  smartfind index ~/Documents              # Train the index on a directory
  smartfind search -q "tax invoice"        # Keyword search
  smartfind search -q "budget" -m hybrid   # Keyword and semantic, fused
  smartfind recommend                      # Files usually opened at this time`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			var wd string
			if wd, err = os.Getwd(); err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger = logging.New(cfg.Logging)

		if dataDir == "" {
			dataDir = cfg.DataDir
		}
		if dataDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			dataDir = filepath.Join(wd, ".smartfind")
		}
		if dataDir, err = filepath.Abs(dataDir); err != nil {
			return fmt.Errorf("invalid data directory: %w", err)
		}

		reader = fs.NewReader(cfg.Reader.MaxChars, logger)
		registry = usecase.NewRegistry(cfg, logger)
		service = bridge.NewService(cfg, registry,
			reader,
			summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences, cfg.Summarizer.MinLength, cfg.Summarizer.FallbackChars),
			logger,
		)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if service != nil {
			return service.Close()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./smartfind.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "data directory holding indices and models (default is ./.smartfind or $"+config.EnvDataDir+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetDataDir() string {
	return dataDir
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
