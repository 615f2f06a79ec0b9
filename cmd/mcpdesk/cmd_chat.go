// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/clatonhendricks/MCPDeskClient/pkg/chat"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
	"github.com/clatonhendricks/MCPDeskClient/pkg/store"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE:  runChat,
	}
	cmd.Flags().StringP("message", "m", "", "Send a single message and exit")
	cmd.Flags().StringP("conversation", "c", "", "Resume an existing conversation by id")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	message, _ := cmd.Flags().GetString("message")
	conversationID, _ := cmd.Flags().GetString("conversation")

	ctx := context.Background()

	if conversationID == "" {
		conv, err := newConversation(ctx, a)
		if err != nil {
			return err
		}
		conversationID = conv.ID
	} else {
		if _, err := a.store.GetConversation(ctx, conversationID); err != nil {
			return fmt.Errorf("resuming conversation %s: %w", conversationID, err)
		}
	}

	a.engine.OnStatus(func(ev chat.StatusEvent) {
		switch ev.Stage {
		case "tool_call":
			fmt.Printf("  [tool] %s\n", ev.ToolName)
		case "tool_result":
			if flagDebug {
				fmt.Printf("  [tool] %s done\n", ev.ToolName)
			}
		}
	})

	if message != "" {
		reply, err := a.engine.Send(ctx, conversationID, message)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	return interactiveChat(a, conversationID)
}

// newConversation creates a conversation stamped with the active provider
// and model, if any. A missing provider is not fatal here; Send reports it
// when the user actually submits a message.
func newConversation(ctx context.Context, a *app) (*store.Conversation, error) {
	providerID, model := "", ""
	if p, err := a.registry.Current(); err == nil {
		providerID = p.ID()
		model = p.CurrentModel()
	}
	conv, err := a.store.CreateConversation(ctx, "", providerID, model)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

func interactiveChat(a *app, conversationID string) error {
	fmt.Println("mcpdesk interactive chat (Ctrl+C or 'exit' to quit, /help for commands)")
	printCurrentProvider(a)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".mcpdesk_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if strings.HasPrefix(input, "/") {
			newID, err := handleSlashCommand(a, input, conversationID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			if newID != "" {
				conversationID = newID
			}
			continue
		}

		ctx := context.Background()
		reply, err := a.engine.Send(ctx, conversationID, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", reply)
	}
}

// handleSlashCommand dispatches an in-REPL command. It returns a non-empty
// conversation id when the active conversation changes.
func handleSlashCommand(a *app, input, conversationID string) (string, error) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Println("  /new              start a new conversation")
		fmt.Println("  /provider [id]    show or switch the active provider")
		fmt.Println("  /model [id]       show or switch the active model")
		fmt.Println("  /models           list models for the active provider")
		fmt.Println("  /servers          list MCP servers")
		fmt.Println("  /list             list conversations")
		return "", nil

	case "/new":
		conv, err := newConversation(context.Background(), a)
		if err != nil {
			return "", err
		}
		fmt.Printf("Started conversation %s\n", conv.ID)
		return conv.ID, nil

	case "/provider":
		if len(args) == 0 {
			printCurrentProvider(a)
			for _, p := range a.registry.All() {
				marker := " "
				if p.ID() == a.registry.CurrentID() {
					marker = "*"
				}
				fmt.Printf("  %s %s (%s)\n", marker, p.ID(), p.DisplayName())
			}
			return "", nil
		}
		if err := a.registry.SetCurrent(args[0]); err != nil {
			return "", err
		}
		fmt.Printf("Switched to provider %s\n", args[0])
		return "", stampConversation(a, conversationID)

	case "/model":
		p, err := a.registry.Current()
		if err != nil {
			return "", err
		}
		if len(args) == 0 {
			fmt.Printf("Current model: %s\n", p.CurrentModel())
			return "", nil
		}
		p.SetModel(args[0])
		fmt.Printf("Switched to model %s\n", args[0])
		return "", stampConversation(a, conversationID)

	case "/models":
		p, err := a.registry.Current()
		if err != nil {
			return "", err
		}
		models, err := p.ListModels(context.Background())
		if err != nil {
			return "", err
		}
		for _, m := range models {
			marker := " "
			if m.ID == p.CurrentModel() {
				marker = "*"
			}
			fmt.Printf("  %s %s (%s)\n", marker, m.ID, m.DisplayName)
		}
		return "", nil

	case "/servers":
		printServers(a)
		return "", nil

	case "/list":
		convs, err := a.store.ListConversations(context.Background())
		if err != nil {
			return "", err
		}
		for _, c := range convs {
			printConversation(c, c.ID == conversationID)
		}
		return "", nil

	default:
		return "", fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

// stampConversation records the active provider and model on the
// conversation so a later resume picks them back up.
func stampConversation(a *app, conversationID string) error {
	p, err := a.registry.Current()
	if err != nil {
		if err == providers.ErrNoProviderConfigured {
			return nil
		}
		return err
	}
	return a.store.UpdateProviderModel(context.Background(), conversationID, p.ID(), p.CurrentModel())
}

func printCurrentProvider(a *app) {
	p, err := a.registry.Current()
	if err != nil {
		fmt.Println("No provider configured. Run 'mcpdesk auth login' or set an API key in the config.")
		return
	}
	fmt.Printf("Provider: %s, model: %s\n", p.DisplayName(), p.CurrentModel())
}
