package commands

import (
	"testing"

	"github.com/zalando/go-keyring"

	"sidekick/pkg/sidekick/assistant"
)

func TestSetupForgetKeyRemovesStoredKey(t *testing.T) {
	keyring.MockInit()
	if err := assistant.StoreKeyring("api_key", "sk-test"); err != nil {
		t.Fatalf("seeding keyring: %v", err)
	}

	root := NewRootCmd("test")
	root.SetArgs([]string{"setup", "--forget-key"})
	if err := root.Execute(); err != nil {
		t.Fatalf("setup --forget-key: %v", err)
	}

	if got := assistant.GetKeyring("api_key"); got != "" {
		t.Errorf("key still present after forget: %q", got)
	}
}

func TestSetupForgetKeyWithoutStoredKey(t *testing.T) {
	keyring.MockInit()

	root := NewRootCmd("test")
	root.SetArgs([]string{"setup", "--forget-key"})
	if err := root.Execute(); err != nil {
		t.Fatalf("setup --forget-key on empty keyring: %v", err)
	}
}
