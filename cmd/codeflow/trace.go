package main

import (
	"github.com/aretw0/codeflow/internal/cli"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace FILE",
	Short: "Trace a JavaScript file and print a report",
	Long: `Instruments FILE, runs it, and prints a summary of the trace: detected algorithm,
comparisons, swaps, calls and program output. With --json the full trace result,
including every event, is printed instead; with --graph a Mermaid call graph.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		array, _ := cmd.Flags().GetString("array")
		breakpoints, _ := cmd.Flags().GetIntSlice("breakpoint")
		jsonMode, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		graphMode, _ := cmd.Flags().GetBool("graph")

		return cli.RunTrace(cli.TraceOptions{
			Options:     globalOptions(cmd),
			Path:        args[0],
			Array:       array,
			Breakpoints: breakpoints,
			JSON:        jsonMode,
			Watch:       watch,
			Graph:       graphMode,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().String("array", "", "Name of the array to record (default: inferred)")
	traceCmd.Flags().IntSliceP("breakpoint", "b", nil, "Line numbers to flag as breakpoints")
	traceCmd.Flags().Bool("json", false, "Print the trace result as JSON")
	traceCmd.Flags().Bool("graph", false, "Print the call graph as a Mermaid flowchart")
	traceCmd.Flags().BoolP("watch", "w", false, "Trace again whenever FILE changes")
}
