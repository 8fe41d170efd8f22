package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stackback/stackback/internal/run"
	"github.com/stackback/stackback/internal/store"
)

var (
	restoreSnapshot    string
	restoreInteractive bool
	restoreYes         bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [group]",
	Short: "Restore a service group from a snapshot",
	Long:  "Take a safety snapshot, stop the group, restore a snapshot into its data paths, and restart",
	Args:  cobra.ExactArgs(1),
	Run:   runRestore,
}

func runRestore(cmd *cobra.Command, args []string) {
	groupName := args[0]

	e, err := newEnv()
	if err != nil {
		fatal(err)
	}
	defer e.Close()

	group, err := e.registry.Lookup(groupName)
	if err != nil {
		fatal(err)
	}

	if !restoreYes {
		fmt.Println(warnStyle.Render(fmt.Sprintf("[warn]  this will overwrite the current data of '%s'", groupName)))
		fmt.Println(labelStyle.Render("   a safety snapshot is taken first, but the restore itself is irreversible"))
		fmt.Println()
		fmt.Print(labelStyle.Render("type the group name to confirm: "))

		var confirmation string
		fmt.Scanln(&confirmation)

		if strings.TrimSpace(confirmation) != groupName {
			fmt.Println(labelStyle.Render("\nrestore cancelled."))
			return
		}
		fmt.Println()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e.reconcile(ctx)

	opts := run.RestoreOptions{Ref: restoreSnapshot}
	if restoreInteractive {
		opts = run.RestoreOptions{Choose: chooseSnapshot}
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> restoring group: %s", groupName)))
	fmt.Println()

	rec, runErr := e.runner.Restore(ctx, group, opts)
	reportOutcome(rec, runErr)
	exitForError(runErr)
}

// chooseSnapshot prompts for a pick from the group's snapshots, newest
// first.
func chooseSnapshot(snapshots []store.Snapshot) (store.SnapshotID, error) {
	fmt.Println(labelStyle.Render("  available snapshots:"))
	for i, snap := range snapshots {
		fmt.Printf("    %s %s  %s  %s\n",
			dimStyle.Render(fmt.Sprintf("[%d]", i+1)),
			valueStyle.Render(shortID(snap.ID)),
			humanize.Time(snap.CreatedAt),
			dimStyle.Render(humanize.Bytes(uint64(snap.SizeBytes))),
		)
	}
	fmt.Println()
	fmt.Print(labelStyle.Render("  pick a snapshot: "))

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(snapshots) {
		return "", fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}
	return snapshots[choice-1].ID, nil
}

func shortID(id store.SnapshotID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

func init() {
	restoreCmd.Flags().StringVar(&restoreSnapshot, "snapshot", "latest", "snapshot id (or prefix) to restore, or 'latest'")
	restoreCmd.Flags().BoolVarP(&restoreInteractive, "interactive", "i", false, "pick the snapshot from a list")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip confirmation")
	rootCmd.AddCommand(restoreCmd)
}
