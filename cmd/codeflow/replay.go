package main

import (
	"github.com/aretw0/codeflow/internal/cli"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Step through the execution of a JavaScript file",
	Long: `Records the trace of FILE and opens an interactive stepper: next, back, into,
out, continue to the next breakpoint, and reset. The current line, variables,
call stack and tracked array are shown at every step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		array, _ := cmd.Flags().GetString("array")
		breakpoints, _ := cmd.Flags().GetIntSlice("breakpoint")
		headless, _ := cmd.Flags().GetBool("headless")
		plain, _ := cmd.Flags().GetBool("plain")

		return cli.RunReplay(cli.ReplayOptions{
			Options:     globalOptions(cmd),
			Path:        args[0],
			Array:       array,
			Breakpoints: breakpoints,
			Headless:    headless,
			Plain:       plain,
		}, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("array", "", "Name of the array to record (default: inferred)")
	replayCmd.Flags().IntSliceP("breakpoint", "b", nil, "Line numbers to stop at with continue")
	replayCmd.Flags().Bool("headless", false, "Print every step and exit")
	replayCmd.Flags().Bool("plain", false, "Use a line prompt instead of the full-screen stepper")
}
