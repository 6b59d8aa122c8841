package commands

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sidekick/pkg/sidekick/store"
)

func openChatStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "chat.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestHistoryTextListsNewestFirst(t *testing.T) {
	st := openChatStore(t)
	now := time.Now()

	records := []store.CommandRecord{
		{ID: "1", Channel: "console", ChatID: "local", Intent: "weather", OK: true, CreatedAt: now.Add(-time.Minute)},
		{ID: "2", Channel: "telegram", ChatID: "9", Intent: "calendar_list", OK: true, CreatedAt: now},
	}
	for _, rec := range records {
		if err := st.RecordCommand(rec); err != nil {
			t.Fatalf("recording command: %v", err)
		}
	}

	text := historyText(st)
	if !strings.Contains(text, "weather") || !strings.Contains(text, "calendar_list") {
		t.Fatalf("missing entries:\n%s", text)
	}
	if strings.Index(text, "calendar_list") > strings.Index(text, "weather") {
		t.Errorf("newest entry not first:\n%s", text)
	}
}

func TestHistoryTextEmptyStates(t *testing.T) {
	if got, want := historyText(nil), "No local store available."; got != want {
		t.Errorf("nil store = %q, want %q", got, want)
	}

	st := openChatStore(t)
	if got, want := historyText(st), "No activity yet."; got != want {
		t.Errorf("empty store = %q, want %q", got, want)
	}
}
