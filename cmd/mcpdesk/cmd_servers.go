// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage MCP tool servers",
	}
	cmd.AddCommand(newServersListCmd())
	return cmd
}

func newServersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured MCP servers",
		RunE:  runServersList,
	}
}

func runServersList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	printServers(a)
	return nil
}

func printServers(a *app) {
	summaries := a.servers.ListServers()
	if len(summaries) == 0 {
		fmt.Println("No MCP servers configured.")
		return
	}
	for _, s := range summaries {
		kind := "stdio"
		if s.IsHTTP {
			kind = "http"
		}
		fmt.Printf("  %-20s %-8s %-7s %s\n", s.Name, s.Status, kind, s.Command)
	}
}
