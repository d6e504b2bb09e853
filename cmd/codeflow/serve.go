package main

import (
	"github.com/aretw0/codeflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the codeflow HTTP API: POST /debug traces a program, /recordings stores
traces and steps through them, /templates renders the built-in algorithms, and
/metrics exposes Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return cli.RunServe(cli.ServeOptions{
			Options: globalOptions(cmd),
			Addr:    addr,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr, default :8080)")
}
