package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// emailPattern is the RFC-ish address scan used to repair a missing "to"
// field on mail intents. First left-to-right match wins.
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Classifier maps free-text input to a ParsedCommand using the completion
// capability. It never returns an error: every failure path degrades to the
// chat fallback so the dispatcher always has something to route.
type Classifier struct {
	completer Completer
	logger    *slog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(completer Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{completer: completer, logger: logger.With("component", "classifier")}
}

// Classify turns raw user text into a ParsedCommand. now is injected so the
// model can resolve relative dates ("tomorrow") deterministically in tests.
func (c *Classifier) Classify(ctx context.Context, text string, now time.Time) ParsedCommand {
	if c.completer == nil {
		return ChatFallback(text)
	}

	raw, err := c.completer.CompleteJSON(ctx, ClassifierPrompt(now), text)
	if err != nil {
		c.logger.Warn("classifier: completion failed, falling back to chat", "error", err)
		return ChatFallback(text)
	}

	parsed, ok := c.parse(raw)
	if !ok {
		c.logger.Warn("classifier: unparseable output, falling back to chat", "output_len", len(raw))
		return ChatFallback(text)
	}

	if !parsed.Intent.Valid() {
		c.logger.Warn("classifier: unknown intent, falling back to chat", "intent", parsed.Intent)
		return ChatFallback(text)
	}
	if parsed.Params == nil {
		parsed.Params = map[string]any{}
	}

	c.repair(&parsed, text)
	return parsed
}

// parse decodes the model output, attempting a JSON repair pass before
// giving up on malformed payloads.
func (c *Classifier) parse(raw string) (ParsedCommand, bool) {
	raw = strings.TrimSpace(raw)
	// Some models wrap JSON in a fenced block despite instructions.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed ParsedCommand
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Intent != "" {
		return parsed, true
	}

	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return ParsedCommand{}, false
	}
	if err := json.Unmarshal([]byte(fixed), &parsed); err != nil || parsed.Intent == "" {
		return ParsedCommand{}, false
	}
	return parsed, true
}

// repair applies the deterministic post-processing steps: the email-address
// rescue for mail intents and the closed-set date clamp.
func (c *Classifier) repair(parsed *ParsedCommand, text string) {
	switch parsed.Intent {
	case IntentMailSend, IntentMailDraft:
		if parsed.StringParam("to") == "" {
			if match := emailPattern.FindString(text); match != "" {
				parsed.Params["to"] = match
				c.logger.Debug("classifier: recovered recipient via regex", "to", match)
			}
			// Still absent: the dispatcher treats the missing "to" as a
			// validation error and asks for clarification.
		}
	}

	// Date-only filters are a closed set; anything else the model invented
	// is dropped.
	if v, ok := parsed.Params["date"]; ok && v != nil {
		if s, ok := v.(string); !ok || (s != "today" && s != "tomorrow") {
			parsed.Params["date"] = nil
		}
	}
}
