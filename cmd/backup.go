package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stackback/stackback/internal/run"
)

var backupCmd = &cobra.Command{
	Use:   "backup [group]",
	Short: "Back up a service group",
	Long:  "Stop a service group in order, snapshot its data paths, restart it, and prune old snapshots",
	Args:  cobra.ExactArgs(1),
	Run:   runBackup,
}

func runBackup(cmd *cobra.Command, args []string) {
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

	// ctrl-c cancels only until services start going down; after that
	// the run carries on to the guaranteed restart
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e.reconcile(ctx)

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> backing up group: %s", groupName)))
	fmt.Println()

	rec, runErr := e.runner.Backup(ctx, group)
	reportOutcome(rec, runErr)

	if runErr == nil {
		if snap := findSnapshot(e, rec); snap != nil {
			fmt.Println(labelStyle.Render("  snapshot:"))
			fmt.Printf("    %s %s\n", dimStyle.Render("id:"), valueStyle.Render(string(snap.ID)))
			fmt.Printf("    %s %s\n", dimStyle.Render("size:"), valueStyle.Render(humanize.Bytes(uint64(snap.SizeBytes))))
			fmt.Println()
			fmt.Println(dimStyle.Render(fmt.Sprintf("  restore with: stackback restore %s --snapshot %s", groupName, snap.ID)))
			fmt.Println()
		}
	}
	exitForError(runErr)
}

// reportOutcome prints the terminal state of a run in a uniform way for
// backup and restore.
func reportOutcome(rec run.Record, runErr error) {
	fmt.Println()
	if runErr == nil {
		fmt.Println(successStyle.Render(fmt.Sprintf("  [done] %s completed (run %s)", rec.Kind, rec.RunID)))
		fmt.Println()
		return
	}

	if run.IsUrgent(runErr) {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("  [error] %v", runErr)))
		fmt.Fprintln(os.Stderr, errorStyle.Render("  [error] the group may be DOWN - check service status now"))
		return
	}
	kind := string(rec.Kind)
	if kind == "" {
		kind = "run"
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("  [error] %s failed: %v", kind, runErr)))
}

// exitForError maps run errors to the documented exit codes.
func exitForError(runErr error) {
	if runErr == nil {
		return
	}
	var already *run.AlreadyRunningError
	if errors.As(runErr, &already) {
		os.Exit(exitAlreadyRunning)
	}
	if run.IsUrgent(runErr) {
		os.Exit(exitRestartFailed)
	}
	os.Exit(exitFailed)
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
