package cmd

import "github.com/spf13/cobra"

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Inspect configured service groups",
}

func init() {
	rootCmd.AddCommand(groupCmd)
}
