package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"sidrip/internal/verify"
)

// SidripConfig represents configuration for the sidrip tool
type SidripConfig struct {
	Debug    bool   `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	Renderer string `json:"renderer" jsonschema:"title=Renderer,description=Register-logging replayer executable"`
	Driver   string `json:"driver" jsonschema:"title=Driver,description=Default target driver template ID"`
	Jobs     int    `json:"jobs" jsonschema:"title=Jobs,description=Parallel conversions"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schemas for configuration and reports",
	Long:   "Generate JSON schemas for the sidrip configuration and the verify report",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		for _, v := range []any{&SidripConfig{}, &verify.Report{}} {
			bts, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Println(string(bts))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
