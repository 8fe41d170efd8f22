package cmd

import "github.com/spf13/cobra"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect backup and restore runs",
}

func init() {
	rootCmd.AddCommand(runCmd)
}
