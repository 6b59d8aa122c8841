package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"sidekick/pkg/sidekick/assistant"
	"sidekick/pkg/sidekick/store"
)

// newChatCmd creates the `sidekick chat` command for console conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Send a single message or start an interactive session. The console
session goes through the same classifier and dispatcher as the chat channels.

Examples:
  sidekick chat "What's on my calendar today?"
  sidekick chat  # interactive mode`,
		Args: cobra.ArbitraryArgs,
		RunE: runChat,
	}
	return cmd
}

// consoleDest is the destination for terminal sessions.
var consoleDest = assistant.Destination{Channel: "console", ChatID: "local"}

// consoleSender prints replies to stdout.
type consoleSender struct{}

func (consoleSender) Send(_ context.Context, _ assistant.Destination, text string) error {
	fmt.Println(text)
	return nil
}

func (consoleSender) SendImage(_ context.Context, _ assistant.Destination, url, caption string) error {
	fmt.Printf("🖼 %s\n%s\n", caption, url)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	assistant.ResolveAPIKey(cfg, logger)

	st, err := store.Open(cfg.Store)
	if err != nil {
		logger.Debug("store unavailable for chat session", "error", err)
		st = nil
	} else {
		defer st.Close()
	}

	llm := assistant.NewLLMClient(cfg.LLM, logger)
	deps := assistant.BuildDeps(cfg, llm, logger)
	deps.Store = st

	classifier := assistant.NewClassifier(llm, logger)
	dispatcher := assistant.NewDispatcher(deps, consoleSender{}, logger)

	ctx := context.Background()

	// Single-shot mode.
	if len(args) > 0 {
		handleConsoleMessage(ctx, classifier, dispatcher, strings.Join(args, " "))
		return nil
	}

	// Interactive mode.
	fmt.Printf("%s — type a request and press Enter. Type 'exit' to quit, 'help' for commands, 'history' for recent activity.\n\n", cfg.Name)

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(homeDir, ".sidekick_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if line == "history" {
			fmt.Println(historyText(st))
			fmt.Println()
			continue
		}

		handleConsoleMessage(ctx, classifier, dispatcher, line)
		fmt.Println()
	}

	return nil
}

// historyText formats the recent command log, newest first.
func historyText(st *store.Store) string {
	if st == nil {
		return "No local store available."
	}
	recs, err := st.RecentCommands(10)
	if err != nil {
		return fmt.Sprintf("Could not read history: %v", err)
	}
	if len(recs) == 0 {
		return "No activity yet."
	}

	var b strings.Builder
	b.WriteString("Recent activity:\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "  %s  %-8s  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Channel, r.Intent)
	}
	return strings.TrimRight(b.String(), "\n")
}

func handleConsoleMessage(ctx context.Context, classifier *assistant.Classifier, dispatcher *assistant.Dispatcher, text string) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "help" || lower == "/help" {
		dispatcher.Help(ctx, consoleDest)
		return
	}
	parsed := classifier.Classify(ctx, text, time.Now())
	dispatcher.Dispatch(ctx, parsed, consoleDest)
}
