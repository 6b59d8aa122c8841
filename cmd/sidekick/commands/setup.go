package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"sidekick/pkg/sidekick/assistant"
)

// newSetupCmd creates the `sidekick setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for assistant name, LLM model, and which channels to enable. The LLM
API key can be stored in the OS keyring instead of the config file.

Examples:
  sidekick setup
  sidekick setup --rotate-key
  sidekick setup --forget-key`,
		RunE: runSetup,
	}
	cmd.Flags().Bool("rotate-key", false, "prompt for a new LLM API key and store it in the OS keyring")
	cmd.Flags().Bool("forget-key", false, "remove the stored LLM API key from the OS keyring")
	return cmd
}

func runSetup(cmd *cobra.Command, _ []string) error {
	if rotate, _ := cmd.Flags().GetBool("rotate-key"); rotate {
		return rotateKey(cmd)
	}
	if forget, _ := cmd.Flags().GetBool("forget-key"); forget {
		return forgetKey()
	}

	cfg := assistant.DefaultConfig()

	var (
		apiKey        string
		telegramToken string
		discordToken  string
		useKeyring    = assistant.KeyringAvailable()
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Assistant name").
				Value(&cfg.Name),
			huh.NewInput().
				Title("LLM model").
				Description("Any OpenAI-compatible chat model.").
				Value(&cfg.LLM.Model),
			huh.NewInput().
				Title("LLM API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Timezone").
				Description("IANA name like Europe/Amsterdam. Leave empty for the host timezone.").
				Value(&cfg.Timezone),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable Telegram?").
				Value(&cfg.Channels.Telegram.Enabled),
			huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather. Leave empty to set TELEGRAM_BOT_TOKEN later.").
				EchoMode(huh.EchoModePassword).
				Value(&telegramToken),
			huh.NewConfirm().
				Title("Enable Discord?").
				Value(&cfg.Channels.Discord.Enabled),
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to set DISCORD_BOT_TOKEN later.").
				EchoMode(huh.EchoModePassword).
				Value(&discordToken),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	cfg.Channels.Telegram.Token = telegramToken
	cfg.Channels.Discord.Token = discordToken

	// Prefer the OS keyring for the API key; fall back to an env reference in
	// the config file so the key never lands on disk in plaintext.
	if apiKey != "" {
		if useKeyring {
			if err := assistant.StoreKeyring("api_key", apiKey); err != nil {
				fmt.Fprintf(os.Stderr, "keyring unavailable (%v), referencing ${OPENAI_API_KEY} instead\n", err)
				cfg.LLM.APIKey = "${OPENAI_API_KEY}"
			} else {
				fmt.Println("API key stored in the OS keyring.")
			}
		} else {
			cfg.LLM.APIKey = "${OPENAI_API_KEY}"
			fmt.Println("OS keyring unavailable; set OPENAI_API_KEY in your environment or .env file.")
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile("config.yaml", data, 0o600); err != nil {
		return fmt.Errorf("writing config.yaml: %w", err)
	}

	fmt.Println()
	fmt.Println("config.yaml written. Start the bot with: sidekick serve")
	return nil
}

// rotateKey replaces the keyring-stored API key. The prompt reads without
// echo so the key never appears on screen or in shell history.
func rotateKey(cmd *cobra.Command) error {
	apiKey, err := assistant.ReadPassword("New LLM API key: ")
	if err != nil {
		return err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("no key entered, keyring unchanged")
	}
	return assistant.MigrateKeyToKeyring(apiKey, newLogger(cmd, assistant.DefaultConfig()))
}

// forgetKey removes the stored API key. A missing key is not an error.
func forgetKey() error {
	if err := assistant.DeleteKeyring("api_key"); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Println("No API key stored in the OS keyring.")
			return nil
		}
		return fmt.Errorf("removing key from keyring: %w", err)
	}
	fmt.Println("API key removed from the OS keyring.")
	return nil
}
