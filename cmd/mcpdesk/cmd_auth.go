// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clatonhendricks/MCPDeskClient/pkg/auth"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider authentication",
	}
	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [provider]",
		Short: "Sign in to GitHub Copilot via the device flow",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAuthLogin,
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout [provider]",
		Short: "Remove stored credentials",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAuthLogout,
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication state for all providers",
		RunE:  runAuthStatus,
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := "github-copilot"
	if len(args) == 1 {
		id = args[0]
	}

	cp, err := copilotFromRegistry(a, id)
	if err != nil {
		return err
	}

	err = cp.Authenticate(context.Background(), func(p auth.DeviceFlowPrompt) {
		fmt.Printf("Open %s and enter code: %s\n", p.VerificationURI, p.UserCode)
		fmt.Println("Waiting for authorization...")
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println("Signed in to GitHub Copilot.")
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := "github-copilot"
	if len(args) == 1 {
		id = args[0]
	}

	cp, err := copilotFromRegistry(a, id)
	if err != nil {
		return err
	}
	if err := cp.Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	fmt.Println("Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, p := range a.registry.All() {
		state := "not authenticated"
		if p.IsAuthenticated() {
			state = "authenticated"
		}
		marker := " "
		if p.ID() == a.registry.CurrentID() {
			marker = "*"
		}
		fmt.Printf("  %s %-16s %s", marker, p.ID(), state)
		if m := p.CurrentModel(); m != "" && p.IsAuthenticated() {
			fmt.Printf(" (model: %s)", m)
		}
		if cp, ok := p.(*providers.CopilotProvider); ok && p.IsAuthenticated() {
			if d := cp.SessionExpiresIn(context.Background()); d > 0 {
				fmt.Printf(" session expires in %s", d.Round(time.Second))
			}
		}
		fmt.Println()
	}
	return nil
}

// copilotFromRegistry resolves an id to the Copilot adapter. The device
// flow is Copilot-only; key-based providers are configured via the config
// file instead.
func copilotFromRegistry(a *app, id string) (*providers.CopilotProvider, error) {
	p, ok := a.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %q", id)
	}
	cp, ok := p.(*providers.CopilotProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q uses API key configuration, not interactive login", id)
	}
	return cp, nil
}
