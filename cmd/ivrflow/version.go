package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/ivrflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ivrflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ivrflow version %s\n", strings.TrimSpace(ivrflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
