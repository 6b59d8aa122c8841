package assistant

import (
	"log/slog"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	if err := StoreKeyring("api_key", "sk-1"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if got := GetKeyring("api_key"); got != "sk-1" {
		t.Errorf("get = %q, want sk-1", got)
	}
	if err := DeleteKeyring("api_key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := GetKeyring("api_key"); got != "" {
		t.Errorf("get after delete = %q, want empty", got)
	}
}

func TestResolveAPIKeyPrefersConfiguredKey(t *testing.T) {
	keyring.MockInit()
	if err := StoreKeyring("api_key", "sk-ring"); err != nil {
		t.Fatalf("store: %v", err)
	}

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-config"
	ResolveAPIKey(cfg, slog.Default())

	if cfg.LLM.APIKey != "sk-config" {
		t.Errorf("APIKey = %q, want configured value kept", cfg.LLM.APIKey)
	}
}

func TestResolveAPIKeyFallsBackToKeyring(t *testing.T) {
	keyring.MockInit()
	if err := MigrateKeyToKeyring("sk-ring", slog.Default()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := DefaultConfig()
	cfg.LLM.APIKey = ""
	ResolveAPIKey(cfg, slog.Default())

	if cfg.LLM.APIKey != "sk-ring" {
		t.Errorf("APIKey = %q, want sk-ring from keyring", cfg.LLM.APIKey)
	}
}
