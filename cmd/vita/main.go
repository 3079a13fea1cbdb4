// Command vita runs Vita variable selection on tabular data.
//
//	vita simulate --out sim.csv
//	vita select --data sim.csv --target y --fdr-adjust --plot vim.png
package main

import (
	"os"

	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vita",
	Short: "random forest variable selection with the Vita method",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		return log.SetupLogger(level)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(selectCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
