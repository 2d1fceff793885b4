package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the class-level schema graph as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		inspector, err := buildInspector(cmd.Context(), cfg, zap.NewNop())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(inspector.Schema())
	},
}
