package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/stackback/stackback/internal/config"
	"github.com/stackback/stackback/internal/grouping"
)

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List service groups",
	Args:  cobra.NoArgs,
	Run:   runGroupList,
}

func runGroupList(cmd *cobra.Command, args []string) {
	cfg, err := config.NewConfigManager(configPath)
	if err != nil {
		fatal(err)
	}

	registry, err := grouping.NewRegistry(cfg.GetConfig().Groups)
	if err != nil {
		fatal(fmt.Errorf("invalid group configuration: %w", err))
	}

	groups := registry.List()
	if len(groups) == 0 {
		fmt.Println(dimStyle.Render("no service groups configured"))
		return
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> service groups (%d)", len(groups))))
	fmt.Println()

	rows := [][]string{}
	for _, group := range groups {
		rows = append(rows, []string{
			group.Name,
			string(group.Kind),
			strings.Join(group.Members, ", "),
			strings.Join(group.DataPaths, ", "),
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
		Headers("name", "kind", "members (stop order)", "data paths").
		Rows(rows...)

	fmt.Println(t)
	fmt.Println()
}

func init() {
	groupCmd.AddCommand(groupListCmd)
}
