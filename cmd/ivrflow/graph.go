package main

import (
	"fmt"

	"github.com/aretw0/ivrflow/internal/cli"
	"github.com/aretw0/ivrflow/internal/presentation/graph"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <definition>",
	Short: "Export a flow definition as a Mermaid diagram",
	Long:  `Renders the flow as a Mermaid flowchart. With --overlay, nodes flagged by validation are highlighted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := cli.LoadDefinition(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if withOverlay, _ := cmd.Flags().GetBool("overlay"); withOverlay {
			overlay = &graph.Overlay{Result: validator.Validate(def)}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("overlay", false, "Highlight nodes with validation errors and warnings")
}
