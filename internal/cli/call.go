package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"smartfind/internal/bridge"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [json-args]",
	Short: "Invoke a boundary method with JSON arguments",
	Long: `Invoke one of the boundary methods the application shell uses and print
the JSON result. Methods: ` + strings.Join(bridge.Methods(), ", ") + `

Example:
  smartfind call search_keyword '{"data_dir": "/tmp/sf", "query": "invoice"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	var raw json.RawMessage
	if len(args) > 1 {
		raw = json.RawMessage(args[1])
	}
	out, err := service.Call(cmd.Context(), args[0], raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return printJSON(out)
}
