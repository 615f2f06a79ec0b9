// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

var (
	flagConfig string
	flagDebug  bool
)

func main() {
	root := &cobra.Command{
		Use:   "mcpdesk",
		Short: "Chat with LLM providers backed by MCP tool servers",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				logger.SetLevel(logger.DEBUG)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare invocation drops straight into the chat REPL.
			return runChat(cmd, args)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(
		newChatCmd(),
		newAuthCmd(),
		newProvidersCmd(),
		newModelsCmd(),
		newServersCmd(),
		newConversationsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
