package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stackback/stackback/internal/config"
	"github.com/stackback/stackback/internal/run"
)

var runListCmd = &cobra.Command{
	Use:   "list [group]",
	Short: "List runs",
	Long:  "List backup and restore runs, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRunList,
}

func runRunList(cmd *cobra.Command, args []string) {
	var groupName string
	if len(args) > 0 {
		groupName = args[0]
	}

	cfg, err := config.NewConfigManager(configPath)
	if err != nil {
		fatal(err)
	}

	records := run.NewRecordStore(cfg.StateDir())
	if err := records.Load(); err != nil {
		fatal(err)
	}

	runs := records.List(groupName)
	if len(runs) == 0 {
		fmt.Println(dimStyle.Render("no runs recorded"))
		return
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> runs (%d)", len(runs))))
	fmt.Println()

	rows := [][]string{}
	for _, rec := range runs {
		stateColor := "14"
		switch rec.State {
		case run.StateCompleted:
			stateColor = "10"
		case run.StateFailed:
			stateColor = "9"
		}
		stateStyled := lipgloss.NewStyle().
			Foreground(lipgloss.Color(stateColor)).
			Render(string(rec.State))

		duration := "-"
		if rec.CompletedAt != nil {
			duration = rec.CompletedAt.Sub(rec.StartedAt).Round(10 * time.Millisecond).String()
		}

		errStr := rec.Error
		if errStr == "" {
			errStr = "-"
		}

		rows = append(rows, []string{
			rec.RunID,
			rec.GroupName,
			string(rec.Kind),
			stateStyled,
			humanize.Time(rec.StartedAt),
			duration,
			errStr,
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
		Headers("run", "group", "kind", "state", "started", "duration", "error").
		Rows(rows...)

	fmt.Println(t)
	fmt.Println()
}

func init() {
	runCmd.AddCommand(runListCmd)
}
