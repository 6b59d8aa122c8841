package assistant

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sidekick/pkg/sidekick/channels/discord"
	"sidekick/pkg/sidekick/channels/telegram"
	"sidekick/pkg/sidekick/store"
)

// Config holds all assistant configuration.
type Config struct {
	// Name is the assistant name shown in responses and logs.
	Name string `yaml:"name"`

	// Timezone is the user's timezone (e.g. "Europe/Amsterdam"). Relative
	// dates in commands resolve against it. Empty means the host timezone.
	Timezone string `yaml:"timezone"`

	// LLM configures the completion endpoint used by the classifier and chat.
	LLM LLMConfig `yaml:"llm"`

	// Channels configures communication channels.
	Channels ChannelsConfig `yaml:"channels"`

	// Collaborators holds credentials for the external services.
	Collaborators CollaboratorsConfig `yaml:"collaborators"`

	// Store configures the SQLite database.
	Store store.Config `yaml:"store"`

	// Watcher configures the background video render poller.
	Watcher WatcherConfig `yaml:"watcher"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// ChannelsConfig configures which channels are active.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// TelegramConfig wraps the telegram channel config with an enable switch.
type TelegramConfig struct {
	Enabled         bool            `yaml:"enabled"`
	telegram.Config `yaml:",inline"`
}

// DiscordConfig wraps the discord channel config with an enable switch.
type DiscordConfig struct {
	Enabled        bool `yaml:"enabled"`
	discord.Config `yaml:",inline"`
}

// CollaboratorsConfig holds API credentials for external services. Values
// may be ${VAR} references resolved from the environment at load time.
type CollaboratorsConfig struct {
	// GoogleToken is an OAuth access token with Calendar, Gmail, People and
	// Drive scopes.
	GoogleToken string `yaml:"google_token"`

	// OpenWeatherKey is the OpenWeatherMap API key.
	OpenWeatherKey string `yaml:"openweather_key"`

	// TavilyKey is the Tavily web search API key.
	TavilyKey string `yaml:"tavily_key"`

	// ApifyToken is the Apify API token for lead scraping.
	ApifyToken string `yaml:"apify_token"`

	// JSON2VideoKey is the JSON2Video API key for video rendering.
	JSON2VideoKey string `yaml:"json2video_key"`

	// StripeKey is the Stripe secret key for subscription checks.
	StripeKey string `yaml:"stripe_key"`
}

// WatcherConfig configures the video render poller.
type WatcherConfig struct {
	// Enabled turns the background poller on.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron spec (e.g. "@every 2m").
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "Sidekick",
		LLM:  DefaultLLMConfig(),
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{Config: telegram.DefaultConfig()},
			Discord:  DiscordConfig{Config: discord.DefaultConfig()},
		},
		Store: store.DefaultConfig(),
		Watcher: WatcherConfig{
			Enabled:  true,
			Schedule: "@every 2m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} references in config values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LoadConfig reads and parses a YAML configuration file. .env files are
// loaded first and ${VAR} references in the YAML expand from the environment
// before parsing; secrets left empty fall back to well-known env variables.
func LoadConfig(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	resolveSecrets(cfg)
	return cfg, nil
}

// loadEnvFiles loads .env files from standard locations.
// godotenv.Load does NOT overwrite existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references with their
// environment values. Unset variables without a default keep the placeholder,
// so resolveSecrets can still detect them as unresolved.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, def := sub[1], sub[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if def != "" {
			return def
		}
		return match
	})
}

// ResolveSecrets fills empty or unresolved secrets from .env files and
// well-known environment variables. LoadConfig calls it automatically; it is
// exported for callers that start from DefaultConfig without a config file.
func ResolveSecrets(cfg *Config) {
	loadEnvFiles()
	resolveSecrets(cfg)
}

// resolveSecrets fills empty or unresolved secrets from well-known
// environment variables.
func resolveSecrets(cfg *Config) {
	fill(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	fill(&cfg.Channels.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	fill(&cfg.Channels.Discord.Token, "DISCORD_BOT_TOKEN")
	fill(&cfg.Collaborators.GoogleToken, "GOOGLE_ACCESS_TOKEN")
	fill(&cfg.Collaborators.OpenWeatherKey, "OPENWEATHER_API_KEY")
	fill(&cfg.Collaborators.TavilyKey, "TAVILY_API_KEY")
	fill(&cfg.Collaborators.ApifyToken, "APIFY_API_TOKEN")
	fill(&cfg.Collaborators.JSON2VideoKey, "JSON2VIDEO_API_KEY")
	fill(&cfg.Collaborators.StripeKey, "STRIPE_SECRET_KEY")
}

func fill(target *string, envVar string) {
	if *target != "" && !isEnvReference(*target) {
		return
	}
	if val := os.Getenv(envVar); val != "" {
		*target = val
	} else if isEnvReference(*target) {
		// Unresolved placeholder; treat as unset.
		*target = ""
	}
}

// isEnvReference checks if a string is an environment variable reference.
func isEnvReference(s string) bool {
	return len(s) > 1 && s[0] == '$'
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"sidekick.yaml",
		"sidekick.yml",
		"configs/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
