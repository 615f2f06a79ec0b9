// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage LLM providers",
	}
	cmd.AddCommand(
		newProvidersListCmd(),
		newProvidersUseCmd(),
	)
	return cmd
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered providers",
		RunE:  runProvidersList,
	}
}

func newProvidersUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set the default provider",
		Args:  cobra.ExactArgs(1),
		RunE:  runProvidersUse,
	}
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, p := range a.registry.All() {
		marker := " "
		if p.ID() == a.registry.CurrentID() {
			marker = "*"
		}
		state := "not authenticated"
		if p.IsAuthenticated() {
			state = "ready"
		}
		fmt.Printf("  %s %-16s %-24s %s\n", marker, p.ID(), p.DisplayName(), state)
	}
	return nil
}

func runProvidersUse(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	if err := a.registry.SetCurrent(id); err != nil {
		return err
	}

	a.cfg.DefaultProvider = id
	if err := config.SaveConfig(configPath(), a.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Default provider set to %s\n", id)
	return nil
}
