package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that the snapshot store is reachable and usable",
	Args:  cobra.NoArgs,
	Run:   runSnapshotVerify,
}

func runSnapshotVerify(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fatal(err)
	}
	defer e.Close()

	fmt.Println(progressStyle.Render("  --> checking snapshot store..."))
	if err := e.runner.Store.Verify(context.Background()); err != nil {
		fatal(fmt.Errorf("store verification failed: %w", err))
	}

	fmt.Println(successStyle.Render("  [done] snapshot store is healthy"))
}

func init() {
	snapshotCmd.AddCommand(snapshotVerifyCmd)
}
