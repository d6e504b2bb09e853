package main

import (
	"fmt"
	"os"

	"github.com/aretw0/codeflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codeflow",
	Short: "codeflow traces small algorithms step by step",
	Long: `codeflow instruments JavaScript snippets with observation hooks, runs them,
and records every line reached, variable snapshot, call, return and array state
so the execution can be replayed forward and backward.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a codeflow.yaml configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().String("executor", "", "Execution collaborator: goja or node (overrides config)")
}

// globalOptions reads the persistent flags.
func globalOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	logFile, _ := cmd.Flags().GetString("log-file")
	executor, _ := cmd.Flags().GetString("executor")
	return cli.Options{
		ConfigPath: configPath,
		Debug:      debug,
		LogFile:    logFile,
		Executor:   executor,
	}
}
