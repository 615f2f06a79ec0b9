// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage models for the active provider",
	}
	cmd.AddCommand(
		newModelsListCmd(),
		newModelsUseCmd(),
	)
	return cmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [provider]",
		Short: "List selectable models",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModelsList,
	}
}

func newModelsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <model-id>",
		Short: "Set the model for the active provider",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelsUse,
	}
}

func runModelsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var p providers.Provider
	if len(args) == 1 {
		var ok bool
		p, ok = a.registry.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown provider: %q", args[0])
		}
	} else {
		p, err = a.registry.Current()
		if err != nil {
			return err
		}
	}

	models, err := p.ListModels(context.Background())
	if err != nil {
		return fmt.Errorf("listing models for %s: %w", p.ID(), err)
	}

	for _, m := range models {
		marker := " "
		if m.ID == p.CurrentModel() {
			marker = "*"
		}
		fmt.Printf("  %s %-32s %s\n", marker, m.ID, m.DisplayName)
	}
	return nil
}

func runModelsUse(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.registry.Current()
	if err != nil {
		return err
	}

	model := args[0]
	p.SetModel(model)

	// Persist so the choice survives restarts. Untouched config entries keep
	// their existing key and endpoint.
	if a.cfg.Providers == nil {
		a.cfg.Providers = make(map[string]config.ProviderConfig)
	}
	pc, ok := a.cfg.Providers[p.ID()]
	if !ok {
		pc = config.ProviderConfig{Type: config.ProviderType(p.ID()), Enabled: true}
	}
	pc.Model = model
	a.cfg.Providers[p.ID()] = pc
	if err := config.SaveConfig(configPath(), a.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Model for %s set to %s\n", p.ID(), model)
	return nil
}
