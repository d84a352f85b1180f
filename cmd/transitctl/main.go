// Command transitctl is an operator CLI over the same schedule store
// and pipeline stages the server runs on a schedule: one-shot ingest,
// synthesis, and query commands for debugging and cron use.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "transitctl",
	Short:        "Operator CLI for the transit routing service",
	SilenceUsage: true,
}

var dbPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (defaults to SQLITE_DATABASE or ./data/transit.db)")
	rootCmd.AddCommand(ingestNowCmd)
	rootCmd.AddCommand(synthesiseNowCmd)
	rootCmd.AddCommand(queryOnceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
