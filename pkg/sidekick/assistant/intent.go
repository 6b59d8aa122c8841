// Package assistant implements the Sidekick core: the LLM intent classifier,
// the action registry, and the dispatcher that routes parsed commands to the
// external-API collaborators and formats replies.
package assistant

import "strings"

// Intent is the closed-set category describing what action the user wants
// performed. The classifier only ever emits values from this enumeration;
// anything else is downgraded to IntentChat.
type Intent string

const (
	IntentCalendarList   Intent = "calendar_list"
	IntentCalendarCreate Intent = "calendar_create"
	IntentCalendarUpdate Intent = "calendar_update"
	IntentCalendarDelete Intent = "calendar_delete"
	IntentMailList       Intent = "mail_list"
	IntentMailSend       Intent = "mail_send"
	IntentMailReply      Intent = "mail_reply"
	IntentMailDraft      Intent = "mail_draft"
	IntentContactSearch  Intent = "contact_search"
	IntentLeadGen        Intent = "lead_gen"
	IntentWeather        Intent = "weather"
	IntentWebSearch      Intent = "web_search"
	IntentImageGen       Intent = "image_gen"
	IntentImageSearch    Intent = "image_search"
	IntentBlogGen        Intent = "blog_gen"
	IntentVideoGen       Intent = "video_gen"
	IntentVideoStatus    Intent = "video_status"
	IntentSubscription   Intent = "subscription_status"
	IntentChat           Intent = "chat"
)

// AllIntents lists every intent in the enumeration. Registry exhaustiveness
// and dispatcher coverage are checked against this list.
var AllIntents = []Intent{
	IntentCalendarList,
	IntentCalendarCreate,
	IntentCalendarUpdate,
	IntentCalendarDelete,
	IntentMailList,
	IntentMailSend,
	IntentMailReply,
	IntentMailDraft,
	IntentContactSearch,
	IntentLeadGen,
	IntentWeather,
	IntentWebSearch,
	IntentImageGen,
	IntentImageSearch,
	IntentBlogGen,
	IntentVideoGen,
	IntentVideoStatus,
	IntentSubscription,
	IntentChat,
}

// Valid reports whether the intent is part of the closed enumeration.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// ParsedCommand is the classifier's output: an intent plus extracted
// parameters. Params is shaped per intent; missing fields mean "ask the user",
// never a crash.
type ParsedCommand struct {
	Intent Intent         `json:"intent"`
	Params map[string]any `json:"params"`
}

// StringParam returns the named parameter as a trimmed string, or "" when
// absent, null, or not a string.
func (c ParsedCommand) StringParam(key string) string {
	v, ok := c.Params[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// IntParam returns the named parameter as an int, or def when absent or not
// numeric. JSON numbers arrive as float64.
func (c ParsedCommand) IntParam(key string, def int) int {
	v, ok := c.Params[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// ChatFallback is the deterministic command every failure path resolves to.
func ChatFallback(text string) ParsedCommand {
	return ParsedCommand{Intent: IntentChat, Params: map[string]any{"query": text}}
}
