package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List all eligible model names",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		inspector, err := buildInspector(cmd.Context(), cfg, zap.NewNop())
		if err != nil {
			return err
		}

		names := inspector.Models()
		if len(names) == 0 {
			color.Yellow("no eligible models found")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}
