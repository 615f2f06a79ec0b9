// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clatonhendricks/MCPDeskClient/pkg/store"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Manage saved conversations",
	}
	cmd.AddCommand(
		newConversationsListCmd(),
		newConversationsShowCmd(),
		newConversationsDeleteCmd(),
	)
	return cmd
}

func newConversationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest activity first",
		RunE:  runConversationsList,
	}
}

func newConversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runConversationsShow,
	}
}

func newConversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE:  runConversationsDelete,
	}
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	convs, err := a.store.ListConversations(context.Background())
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}
	for _, c := range convs {
		printConversation(c, false)
	}
	return nil
}

func printConversation(c *store.Conversation, active bool) {
	marker := " "
	if active {
		marker = "*"
	}
	title := c.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Printf("  %s %s  %s  %s\n", marker, c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), title)
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	conv, err := a.store.GetConversation(ctx, args[0])
	if err != nil {
		return err
	}
	msgs, err := a.store.Messages(ctx, conv.ID)
	if err != nil {
		return err
	}

	title := conv.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Printf("%s\n%s\n\n", title, strings.Repeat("-", len(title)))

	for _, m := range msgs {
		switch {
		case m.ToolName != "" && m.Role == "assistant":
			fmt.Printf("[assistant called %s] %s\n", m.ToolName, m.ToolArguments)
		case m.Role == "tool":
			fmt.Printf("[tool result]\n%s\n", m.Content)
		default:
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}
		fmt.Println()
	}
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteConversation(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted conversation %s\n", args[0])
	return nil
}
