package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sidekick/pkg/sidekick/assistant"
	"sidekick/pkg/sidekick/channels/discord"
	"sidekick/pkg/sidekick/channels/telegram"
	"sidekick/pkg/sidekick/store"
)

// newServeCmd creates the `sidekick serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot with messaging channels",
		Long: `Start Sidekick as a daemon, connecting to enabled channels
(Telegram, Discord) and processing messages.

Examples:
  sidekick serve
  sidekick serve --channel telegram
  sidekick serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("channel", nil, "channels to enable (telegram, discord)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	assistant.ResolveAPIKey(cfg, logger)

	// ── Store ──
	st, err := store.Open(cfg.Store)
	if err != nil {
		logger.Error("store unavailable, continuing without command log and video tracking", "error", err)
		st = nil
	} else {
		defer st.Close()
	}

	// ── Assistant ──
	llm := assistant.NewLLMClient(cfg.LLM, logger)
	deps := assistant.BuildDeps(cfg, llm, logger)
	bot := assistant.New(cfg, deps, st, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Channels ──
	channelFilter, _ := cmd.Flags().GetStringSlice("channel")

	if cfg.Channels.Telegram.Enabled && shouldEnable("telegram", channelFilter) {
		if cfg.Channels.Telegram.Token == "" {
			logger.Warn("telegram enabled but no token configured, skipping")
		} else {
			bot.RegisterChannel(telegram.New(cfg.Channels.Telegram.Config, logger))
			logger.Info("telegram channel registered")
		}
	}
	if cfg.Channels.Discord.Enabled && shouldEnable("discord", channelFilter) {
		if cfg.Channels.Discord.Token == "" {
			logger.Warn("discord enabled but no token configured, skipping")
		} else {
			bot.RegisterChannel(discord.New(cfg.Channels.Discord.Config, logger))
			logger.Info("discord channel registered")
		}
	}

	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	// ── Render watcher ──
	var watcher *assistant.RenderWatcher
	if cfg.Watcher.Enabled && st != nil {
		watcher = assistant.NewRenderWatcher(deps.Video, st, bot, logger)
		if err := watcher.Start(ctx, cfg.Watcher.Schedule); err != nil {
			logger.Error("render watcher failed to start", "error", err)
			watcher = nil
		}
	}

	logger.Info("Sidekick running. Press Ctrl+C to stop.", "name", cfg.Name)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		if watcher != nil {
			watcher.Stop()
		}
		bot.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// shouldEnable checks the --channel filter. An empty filter enables all.
func shouldEnable(name string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == name {
			return true
		}
	}
	return false
}
