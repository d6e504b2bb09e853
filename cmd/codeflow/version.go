package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/codeflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of codeflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codeflow version %s\n", strings.TrimSpace(codeflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
