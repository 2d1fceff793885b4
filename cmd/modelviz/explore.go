package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelviz/modelviz/internal/config"
	"github.com/modelviz/modelviz/internal/graph"
	"github.com/modelviz/modelviz/internal/observability"
)

var (
	exploreDepth    int
	exploreSnapshot string
)

func init() {
	exploreCmd.Flags().IntVar(&exploreDepth, "depth", 1, "How many relation levels to expand from the root")
	exploreCmd.Flags().StringVar(&exploreSnapshot, "snapshot", "", "Write the resulting graph snapshot to this file")
}

var exploreCmd = &cobra.Command{
	Use:   "explore <model> <id>",
	Short: "Expand a record's relation graph in the terminal",
	Long: `Load a record as the graph root, expand the first page of every relation
out to the requested depth, and print the accumulated nodes and edges.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := observability.NewLogger(cfg.LogLevel, true)
		if err != nil {
			return err
		}
		defer logger.Sync()

		inspector, err := buildInspector(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		state := graph.NewState(inspector)
		root, err := state.LoadRoot(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if root == nil {
			// Superseded by a concurrent reload; cannot happen with this
			// single state, but the contract allows a nil result
			return fmt.Errorf("root load was superseded")
		}

		// Breadth-first: expand the first page of every relation on every
		// node at the current depth before moving outward
		frontier := []string{root.Instance.Key}
		for depth := 0; depth < exploreDepth; depth++ {
			var next []string
			for _, key := range frontier {
				for _, node := range state.Nodes() {
					if node.Instance.Key != key {
						continue
					}
					for _, stub := range node.Instance.Relations {
						if stub.Count == 0 || state.Expanded(key, stub.Name) {
							continue
						}
						result, err := state.Expand(cmd.Context(), key, stub.Name, 1)
						if err != nil {
							return err
						}
						if result == nil {
							continue
						}
						for _, child := range result.Nodes {
							next = append(next, child.Key)
						}
					}
				}
			}
			frontier = next
		}

		for _, node := range state.Nodes() {
			marker := " "
			if node.Instance.Key == state.RootKey() {
				marker = "*"
			}
			color.New(color.FgCyan).Printf("%s %s", marker, node.Instance.Key)
			fmt.Printf("  (depth %d, color %s)\n", node.Depth, graph.ModelColor(node.Instance.Model))
		}
		for _, edge := range state.Edges() {
			fmt.Printf("    %s --%s--> %s\n", edge.Source, edge.Relation, edge.Target)
		}
		for _, pending := range state.Pending() {
			color.Yellow("    %s.%s: %d more (page %d)",
				pending.SourceKey, pending.Relation, pending.Remaining, pending.NextPage)
		}

		if exploreSnapshot != "" {
			data, err := json.MarshalIndent(state.Export(), "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(exploreSnapshot, data, 0644); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			color.Green("snapshot written to %s", exploreSnapshot)
		}

		return nil
	},
}
