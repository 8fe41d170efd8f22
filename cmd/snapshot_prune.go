package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackback/stackback/internal/retention"
)

var pruneDryRun bool

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune [group]",
	Short: "Remove snapshots per the retention policy",
	Long:  "Apply the retention policy to one group or to all groups and remove eligible snapshots",
	Args:  cobra.MaximumNArgs(1),
	Run:   runSnapshotPrune,
}

func runSnapshotPrune(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fatal(err)
	}
	defer e.Close()

	var groups []string
	if len(args) > 0 {
		if _, err := e.registry.Lookup(args[0]); err != nil {
			fatal(err)
		}
		groups = []string{args[0]}
	} else {
		for _, group := range e.registry.List() {
			groups = append(groups, group.Name)
		}
	}

	ctx := context.Background()
	policy := e.cfg.GetConfig().Retention
	now := time.Now()

	fmt.Println(titleStyle.Render("==> pruning snapshots"))
	fmt.Println()

	total := 0
	for _, groupName := range groups {
		snapshots, err := e.runner.Store.List(ctx, groupName)
		if err != nil {
			fatal(fmt.Errorf("failed to list snapshots for %s: %w", groupName, err))
		}

		remove := retention.Select(snapshots, policy, now)
		if len(remove) == 0 {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  %s: nothing to prune", groupName)))
			continue
		}

		for _, id := range remove {
			fmt.Printf("  %s %s %s\n", progressStyle.Render("-->"), groupName, dimStyle.Render(shortID(id)))
		}

		if !pruneDryRun {
			if err := e.runner.Store.Forget(ctx, remove); err != nil {
				fatal(fmt.Errorf("failed to prune %s: %w", groupName, err))
			}
			if err := e.index.Remove(remove); err != nil {
				fmt.Println(dimStyle.Render(fmt.Sprintf("  failed to update snapshot index: %v", err)))
			}
		}
		total += len(remove)
	}

	fmt.Println()
	if pruneDryRun {
		fmt.Println(successStyle.Render(fmt.Sprintf("  [done] %d snapshot(s) would be removed", total)))
	} else {
		fmt.Println(successStyle.Render(fmt.Sprintf("  [done] %d snapshot(s) removed", total)))
	}
	fmt.Println()
}

func init() {
	snapshotPruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be removed without removing it")
	snapshotCmd.AddCommand(snapshotPruneCmd)
}
