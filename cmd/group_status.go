package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var groupStatusCmd = &cobra.Command{
	Use:   "status [group]",
	Short: "Show the runtime state of a group's members",
	Args:  cobra.ExactArgs(1),
	Run:   runGroupStatus,
}

func runGroupStatus(cmd *cobra.Command, args []string) {
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

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> group status: %s", groupName)))
	fmt.Println()

	ctx := context.Background()
	for _, member := range group.Members {
		status, err := e.services.Status(ctx, member)
		if err != nil {
			fmt.Printf("  %s %s\n", valueStyle.Render(member), errorStyle.Render(fmt.Sprintf("(%v)", err)))
			continue
		}

		stateStr := status.State
		if status.Running {
			stateStr = successStyle.Render(stateStr)
		} else {
			stateStr = errorStyle.Render(stateStr)
		}
		fmt.Printf("  %s %s\n", valueStyle.Render(member), stateStr)

		if len(status.Ports) > 0 {
			var published []string
			for port, bindings := range status.Ports {
				for _, binding := range bindings {
					published = append(published, fmt.Sprintf("%s:%s->%s", binding.HostIP, binding.HostPort, port))
				}
			}
			sort.Strings(published)
			fmt.Printf("    %s %s\n", dimStyle.Render("ports:"), dimStyle.Render(strings.Join(published, ", ")))
		}
	}
	fmt.Println()
}

func init() {
	groupCmd.AddCommand(groupStatusCmd)
}
