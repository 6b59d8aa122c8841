package assistant

import (
	"strings"
	"testing"
	"time"
)

func TestRegistry_CoversEveryIntent(t *testing.T) {
	seen := map[Intent]int{}
	for _, spec := range Registry {
		if !spec.Intent.Valid() {
			t.Errorf("registry entry %q is not a known intent", spec.Intent)
		}
		seen[spec.Intent]++
	}
	for _, intent := range AllIntents {
		if n := seen[intent]; n != 1 {
			t.Errorf("intent %q has %d registry entries, want exactly 1", intent, n)
		}
	}
}

func TestRegistry_RequiredIntentsHaveClarifications(t *testing.T) {
	for _, spec := range Registry {
		if len(spec.Required) == 0 {
			continue
		}
		if spec.Clarify == "" {
			t.Errorf("intent %q requires params but has no clarification text", spec.Intent)
		}
		if spec.Usage == "" {
			t.Errorf("intent %q requires params but has no usage example", spec.Intent)
		}
	}
}

func TestLookup(t *testing.T) {
	if spec := Lookup(IntentWeather); spec == nil || spec.Intent != IntentWeather {
		t.Fatalf("Lookup(weather) = %v", spec)
	}
	if spec := Lookup(Intent("bogus")); spec != nil {
		t.Fatalf("Lookup(bogus) = %v, want nil", spec)
	}
}

func TestClassifierPrompt_ListsIntentsAndTime(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	prompt := ClassifierPrompt(now)

	if !strings.Contains(prompt, "2025-03-14 09:30:00 (Friday)") {
		t.Errorf("prompt missing current time, got:\n%s", prompt)
	}
	for _, intent := range AllIntents {
		if !strings.Contains(prompt, string(intent)) {
			t.Errorf("prompt missing intent %q", intent)
		}
	}
	// Delete beats update even when a new time is present.
	if !strings.Contains(prompt, "ALWAYS calendar_delete") {
		t.Error("prompt missing delete-over-update priority rule")
	}
}

func TestHelpText_HasAllGroupsAndFooter(t *testing.T) {
	help := HelpText()

	for _, want := range []string{"📧 *Communication*", "📅 *Productivity*", "🎨 *Creation*", "🧠 *Utilities*"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing section %q", want)
		}
	}
	if !strings.Contains(help, `Example: _"Write a blog about AI and send it to me"_`) {
		t.Error("help missing footer example")
	}
}
