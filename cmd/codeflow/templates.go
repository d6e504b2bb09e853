package main

import (
	"github.com/aretw0/codeflow/internal/cli"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [NAME]",
	Short: "List, render or trace the built-in sorting algorithms",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		run, _ := cmd.Flags().GetBool("run")
		jsonMode, _ := cmd.Flags().GetBool("json")

		opts := cli.TemplateOptions{
			Options: globalOptions(cmd),
			Input:   input,
			Run:     run,
			JSON:    jsonMode,
		}
		if len(args) > 0 {
			opts.Name = args[0]
		}
		return cli.RunTemplates(opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.Flags().StringP("input", "i", cli.DefaultTemplateInput, "Comma separated elements, e.g. 5,3,8,1")
	templatesCmd.Flags().Bool("run", false, "Trace the rendered program")
	templatesCmd.Flags().Bool("json", false, "Print the trace result as JSON (with --run)")
}
