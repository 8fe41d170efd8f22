package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stackback/stackback/internal/store"
)

var snapshotListCached bool

var snapshotListCmd = &cobra.Command{
	Use:   "list [group]",
	Short: "List snapshots",
	Long:  "List snapshots for one group or for all groups",
	Args:  cobra.MaximumNArgs(1),
	Run:   runSnapshotList,
}

func runSnapshotList(cmd *cobra.Command, args []string) {
	var groupName string
	if len(args) > 0 {
		groupName = args[0]
	}

	e, err := newEnv()
	if err != nil {
		fatal(err)
	}
	defer e.Close()

	var snapshots []store.Snapshot
	if snapshotListCached {
		snapshots = e.index.List(groupName)
	} else {
		groups := []string{groupName}
		if groupName == "" {
			groups = groups[:0]
			for _, group := range e.registry.List() {
				groups = append(groups, group.Name)
			}
		}
		for _, name := range groups {
			listed, err := e.runner.Store.List(context.Background(), name)
			if err != nil {
				fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("[warn]  store unreachable, falling back to cached index: %v", err)))
				snapshots = e.index.List(groupName)
				break
			}
			snapshots = append(snapshots, listed...)
		}
		store.SortNewestFirst(snapshots)
	}

	if len(snapshots) == 0 {
		if groupName != "" {
			fmt.Println(dimStyle.Render(fmt.Sprintf("no snapshots found for group: %s", groupName)))
		} else {
			fmt.Println(dimStyle.Render("no snapshots found"))
		}
		fmt.Println()
		fmt.Println(dimStyle.Render("create one with: stackback backup <group>"))
		return
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> snapshots (%d)", len(snapshots))))
	fmt.Println()

	rows := [][]string{}
	var totalSize int64
	for _, snap := range snapshots {
		totalSize += snap.SizeBytes
		tags := strings.Join(snap.Tags, ",")
		if tags == "" {
			tags = "-"
		}
		rows = append(rows, []string{
			shortID(snap.ID),
			snap.GroupName,
			snap.CreatedAt.Format("2006-01-02 15:04"),
			humanize.Bytes(uint64(snap.SizeBytes)),
			tags,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return lipgloss.NewStyle().
					Foreground(lipgloss.Color("86")).
					Bold(true).
					Align(lipgloss.Center)
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		}).
		Headers("id", "group", "created", "size", "tags").
		Rows(rows...)

	fmt.Println(t)
	fmt.Println()
	fmt.Println(dimStyle.Render(fmt.Sprintf("  total size: %s", humanize.Bytes(uint64(totalSize)))))
	fmt.Println()
}

func init() {
	snapshotListCmd.Flags().BoolVar(&snapshotListCached, "cached", false, "list from the local index without contacting the store")
	snapshotCmd.AddCommand(snapshotListCmd)
}
