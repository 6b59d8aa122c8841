package assistant

import (
	"fmt"
	"strings"
	"time"
)

// RuleExample is a worked classification example shown to the model.
type RuleExample struct {
	// In is the user utterance.
	In string

	// Out is the expected JSON output, written literally.
	Out string
}

// ActionSpec describes everything the system knows about one intent: the
// parameter shape the classifier must emit, the parameters the dispatcher
// requires before acting, a usage example quoted in clarification replies,
// and the rule block injected into the classifier prompt. The classifier
// prompt and the /help listing are both generated from this table so they
// cannot drift apart.
type ActionSpec struct {
	Intent Intent

	// ParamsHint is the JSON parameter shape shown in the intent menu.
	ParamsHint string

	// Required lists params the dispatcher validates before any collaborator
	// call. Missing ones produce a clarification reply, never partial work.
	Required []string

	// Usage is one example of correct phrasing, quoted back to the user when
	// validation fails and rendered in /help.
	Usage string

	// Clarify is the clarification sentence sent when a required param is
	// missing. Only set on specs with Required params.
	Clarify string

	// HelpGroup and HelpLine drive the /help listing.
	HelpGroup string
	HelpLine  string

	// Rules are extra classifier instructions for this intent.
	Rules []string

	// Examples are worked input/output pairs for the classifier prompt.
	Examples []RuleExample
}

// Registry is the static action table. Order matters: it is the order rules
// appear in the classifier prompt and entries appear in /help.
var Registry = []ActionSpec{
	{
		Intent:     IntentCalendarList,
		ParamsHint: `{"date": "today"|"tomorrow"|null}`,
		Usage:      "Show my calendar today",
		HelpGroup:  "Productivity",
		HelpLine:   `"Show my calendar"`,
		Rules: []string{
			"Recognize queries about schedule, calendar, events, appointments",
		},
		Examples: []RuleExample{
			{`What's on my calendar today?`, `{"intent": "calendar_list", "params": {"date": "today"}}`},
			{`Show tomorrow's schedule`, `{"intent": "calendar_list", "params": {"date": "tomorrow"}}`},
			{`What's my schedule for tomorrow?`, `{"intent": "calendar_list", "params": {"date": "tomorrow"}}`},
			{`Show my calendar`, `{"intent": "calendar_list", "params": {"date": null}}`},
		},
	},
	{
		Intent:     IntentCalendarCreate,
		ParamsHint: `{"summary": "string", "start_time": "ISO format", "duration": 60}`,
		Required:   []string{"summary", "start_time"},
		Usage:      "Book dinner tomorrow at 7pm",
		Clarify:    "Please specify what to book and when",
		HelpGroup:  "Productivity",
		HelpLine:   `"Book meeting tomorrow..."`,
	},
	{
		Intent:     IntentCalendarUpdate,
		ParamsHint: `{"target_event": "name of event to move", "new_start_time": "ISO format", "date": "today"|"tomorrow"}`,
		Required:   []string{"target_event", "new_start_time"},
		Usage:      "Reschedule dinner to 7pm",
		Clarify:    "Please specify which event to move and the new time",
		HelpGroup:  "Productivity",
		HelpLine:   `"Reschedule dinner to 7pm"`,
		Rules: []string{
			`Recognize "reschedule", "move", "change time", "delay"`,
			"Extract the event name to target_event and the new start time to new_start_time",
		},
		Examples: []RuleExample{
			{`Reschedule dinner to 9pm`, `{"intent": "calendar_update", "params": {"target_event": "dinner", "new_start_time": "202x-MM-DDT21:00:00", "date": "today"}}`},
			{`Move tomorrow's meeting to 10am`, `{"intent": "calendar_update", "params": {"target_event": "meeting", "new_start_time": "202x-MM-DDT10:00:00", "date": "tomorrow"}}`},
		},
	},
	{
		Intent:     IntentCalendarDelete,
		ParamsHint: `{"target_event": "name of event to delete", "date": "today"|"tomorrow"}`,
		Required:   []string{"target_event"},
		Usage:      "Delete dinner",
		Clarify:    "Please specify which event to delete",
		HelpGroup:  "Productivity",
		HelpLine:   `"Delete dinner"`,
		Rules: []string{
			`Recognize "delete", "remove", "cancel", "clear"`,
			`PRIORITY: If the user says "delete" or "cancel", it is ALWAYS calendar_delete, never calendar_update — even when a new time also appears in the text`,
		},
		Examples: []RuleExample{
			{`Delete dinner`, `{"intent": "calendar_delete", "params": {"target_event": "dinner", "date": "today"}}`},
			{`Cancel the meeting tomorrow`, `{"intent": "calendar_delete", "params": {"target_event": "meeting", "date": "tomorrow"}}`},
			{`Cancel the meeting and move it to 5pm`, `{"intent": "calendar_delete", "params": {"target_event": "meeting", "date": "today"}}`},
		},
	},
	{
		Intent:     IntentMailList,
		ParamsHint: `{"query": "string"|null, "max_results": 5}`,
		Usage:      "Show my recent emails",
		HelpGroup:  "Communication",
		HelpLine:   `"Show my recent emails"`,
	},
	{
		Intent:     IntentMailSend,
		ParamsHint: `{"to": "email@example.com", "subject": "string", "body": "string"}`,
		Required:   []string{"to"},
		Usage:      "Send email to john@example.com",
		Clarify:    "Please specify the recipient email address",
		HelpGroup:  "Communication",
		HelpLine:   `"Send email to [email]..."`,
		Rules: []string{
			`ALWAYS extract the recipient email address into the "to" field`,
			"Look for patterns like: name@domain.com, user@gmail.com, etc.",
		},
		Examples: []RuleExample{
			{`send email to john@example.com`, `{"intent": "mail_send", "params": {"to": "john@example.com", "subject": "", "body": ""}}`},
			{`email test@gmail.com with subject Hello`, `{"intent": "mail_send", "params": {"to": "test@gmail.com", "subject": "Hello", "body": ""}}`},
			{`send message to user@company.com saying Thanks`, `{"intent": "mail_send", "params": {"to": "user@company.com", "subject": "", "body": "Thanks"}}`},
		},
	},
	{
		Intent:     IntentMailReply,
		ParamsHint: `{"message_id": "string"|null, "body": "reply text"}`,
		Required:   []string{"body"},
		Usage:      "Reply to latest email: Noted",
		Clarify:    "Please provide the reply text",
		HelpGroup:  "Communication",
		HelpLine:   `"Reply to latest email..."`,
		Rules: []string{
			"Extract the reply body text",
			`If the user mentions "latest email" or "last email", set message_id to null (the latest is fetched at dispatch time)`,
		},
		Examples: []RuleExample{
			{`reply to latest email: Noted`, `{"intent": "mail_reply", "params": {"message_id": null, "body": "Noted"}}`},
			{`reply Noted`, `{"intent": "mail_reply", "params": {"message_id": null, "body": "Noted"}}`},
			{`respond to last email saying Thanks`, `{"intent": "mail_reply", "params": {"message_id": null, "body": "Thanks"}}`},
		},
	},
	{
		Intent:     IntentMailDraft,
		ParamsHint: `{"to": "email@example.com", "subject": "string", "body": "string"}`,
		Required:   []string{"to"},
		Usage:      "Draft email to john@example.com",
		Clarify:    "Please specify the recipient email address for the draft",
		HelpGroup:  "Communication",
		HelpLine:   `"Draft email to [email]..."`,
		Rules: []string{
			"Extract recipient, subject, and body like mail_send",
		},
		Examples: []RuleExample{
			{`draft email to john@example.com with subject Meeting`, `{"intent": "mail_draft", "params": {"to": "john@example.com", "subject": "Meeting", "body": ""}}`},
			{`create draft to test@gmail.com about Project Update`, `{"intent": "mail_draft", "params": {"to": "test@gmail.com", "subject": "Project Update", "body": ""}}`},
		},
	},
	{
		Intent:     IntentContactSearch,
		ParamsHint: `{"query": "name or email"}`,
		Required:   []string{"query"},
		Usage:      "Find contact John",
		Clarify:    "Please specify a name or email to search for",
		HelpGroup:  "Communication",
		HelpLine:   `"Find contact [name]"`,
	},
	{
		Intent:     IntentLeadGen,
		ParamsHint: `{"query": "job title", "location": "city or country", "limit": 5}`,
		Required:   []string{"query"},
		Usage:      "Find leads for CEO in New York",
		Clarify:    "Please specify a job title to scrape leads for",
		HelpGroup:  "Utilities",
		HelpLine:   `"Find leads for [title] in [city]"`,
		Rules: []string{
			`Recognize "find leads", "scrape leads", "get emails", "find people"`,
			"Extract job title (query) and location. Default limit is 5, max is 10",
		},
		Examples: []RuleExample{
			{`Find leads for CEO in New York`, `{"intent": "lead_gen", "params": {"query": "CEO", "location": "New York", "limit": 5}}`},
			{`Scrape 10 leads for Software Engineer in London`, `{"intent": "lead_gen", "params": {"query": "Software Engineer", "location": "London", "limit": 10}}`},
		},
	},
	{
		Intent:     IntentWeather,
		ParamsHint: `{"city": "name"}`,
		Required:   []string{"city"},
		Usage:      "Weather in London",
		Clarify:    "Please specify a city",
		HelpGroup:  "Utilities",
		HelpLine:   `"Weather in [city]"`,
	},
	{
		Intent:     IntentWebSearch,
		ParamsHint: `{"query": "search term"}`,
		Required:   []string{"query"},
		Usage:      "Search for AI news",
		Clarify:    "Please specify what to search for",
		HelpGroup:  "Utilities",
		HelpLine:   `"Search web for..."`,
	},
	{
		Intent:     IntentImageGen,
		ParamsHint: `{"prompt": "image prompt", "title": "short title"}`,
		Required:   []string{"prompt"},
		Usage:      "Generate an image of a sunset",
		Clarify:    "Please describe the image to generate",
		HelpGroup:  "Creation",
		HelpLine:   `"Generate image of..."`,
	},
	{
		Intent:     IntentImageSearch,
		ParamsHint: `{"query": "search term for image"}`,
		Required:   []string{"query"},
		Usage:      "Find image of sunset",
		Clarify:    "Please specify which image to look for",
		HelpGroup:  "Utilities",
		HelpLine:   `"Find image of [query]"`,
		Rules: []string{
			"Extract the search query for finding previously stored images",
		},
		Examples: []RuleExample{
			{`find image of legendary watch`, `{"intent": "image_search", "params": {"query": "legendary watch"}}`},
			{`search for sunset image`, `{"intent": "image_search", "params": {"query": "sunset"}}`},
		},
	},
	{
		Intent:     IntentBlogGen,
		ParamsHint: `{"topic": "blog topic", "audience": "target audience"}`,
		Required:   []string{"topic"},
		Usage:      "Write a blog about AI",
		Clarify:    "Please specify the blog topic",
		HelpGroup:  "Creation",
		HelpLine:   `"Write a blog about..."`,
		Rules: []string{
			"Extract topic and intended audience",
		},
		Examples: []RuleExample{
			{`write a blog about AI for beginners`, `{"intent": "blog_gen", "params": {"topic": "AI", "audience": "beginners"}}`},
			{`create a post about healthy eating`, `{"intent": "blog_gen", "params": {"topic": "healthy eating", "audience": "general"}}`},
		},
	},
	{
		Intent:     IntentVideoGen,
		ParamsHint: `{"subject": "video subject"}`,
		Required:   []string{"subject"},
		Usage:      "Make a video about cats",
		Clarify:    "Please specify the video subject",
		HelpGroup:  "Creation",
		HelpLine:   `"Make a video about..."`,
		Examples: []RuleExample{
			{`make a video about space travel`, `{"intent": "video_gen", "params": {"subject": "space travel"}}`},
			{`generate a video on how to cook pasta`, `{"intent": "video_gen", "params": {"subject": "how to cook pasta"}}`},
		},
	},
	{
		Intent:     IntentVideoStatus,
		ParamsHint: `{"project_id": "optional id"}`,
		Usage:      "Check status of video xyz",
		HelpGroup:  "Creation",
		HelpLine:   `"Check video status..."`,
		Examples: []RuleExample{
			{`is my video done?`, `{"intent": "video_status", "params": {}}`},
			{`check status of video 123`, `{"intent": "video_status", "params": {"project_id": "123"}}`},
		},
	},
	{
		Intent:     IntentSubscription,
		ParamsHint: `{"email": "email address"}`,
		Usage:      "Am I subscribed with test@example.com?",
		HelpGroup:  "Utilities",
		HelpLine:   `"Am I subscribed?"`,
		Examples: []RuleExample{
			{`am I subscribed?`, `{"intent": "subscription_status", "params": {}}`},
			{`check subscription for test@example.com`, `{"intent": "subscription_status", "params": {"email": "test@example.com"}}`},
		},
	},
	{
		Intent:     IntentChat,
		ParamsHint: `{"query": "original text"}`,
		Usage:      "Ask me anything",
		HelpGroup:  "Utilities",
		HelpLine:   `Anything else — just ask`,
		Rules: []string{
			"Fallback for general questions that match no other intent",
		},
	},
}

// Lookup returns the spec for an intent, or nil when unknown.
func Lookup(intent Intent) *ActionSpec {
	for i := range Registry {
		if Registry[i].Intent == intent {
			return &Registry[i]
		}
	}
	return nil
}

// ClassifierPrompt renders the system instruction for the intent classifier,
// injecting the current time so relative dates resolve correctly.
func ClassifierPrompt(now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an intent classifier for a personal assistant.\nCurrent Time: %s\n\n", now.Format("2006-01-02 15:04:05 (Monday)"))
	b.WriteString("Categorize the user request into one of these intents and extract parameters in JSON format.\n\nIntents:\n")
	for _, spec := range Registry {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Intent, spec.ParamsHint)
	}
	b.WriteString("\n")

	for _, spec := range Registry {
		if len(spec.Rules) == 0 && len(spec.Examples) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Rules for %s:\n", spec.Intent)
		for _, rule := range spec.Rules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
		if len(spec.Examples) > 0 {
			b.WriteString("- Examples:\n")
			for _, ex := range spec.Examples {
				fmt.Fprintf(&b, "  * %q → %s\n", ex.In, ex.Out)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(`Other rules:
- Return ONLY valid JSON with keys "intent" and "params"
- The "date" field may only be "today", "tomorrow" or null — never invent other literals
- If the user asks for "tomorrow's schedule", intent is calendar_list with date="tomorrow"
- If the user asks for "weather in London", intent is weather with city="London"
`)
	return b.String()
}

// helpGroupOrder fixes the /help section order.
var helpGroupOrder = []struct {
	name  string
	emoji string
}{
	{"Communication", "📧"},
	{"Productivity", "📅"},
	{"Creation", "🎨"},
	{"Utilities", "🧠"},
}

// HelpText renders the /help listing from the registry.
func HelpText() string {
	var b strings.Builder
	b.WriteString("🤖 *Available Commands:*\n")

	for _, group := range helpGroupOrder {
		fmt.Fprintf(&b, "\n%s *%s*\n", group.emoji, group.name)
		seen := map[string]bool{}
		for _, spec := range Registry {
			if spec.HelpGroup != group.name || seen[spec.HelpLine] {
				continue
			}
			seen[spec.HelpLine] = true
			fmt.Fprintf(&b, "• %s\n", spec.HelpLine)
		}
	}

	b.WriteString("\nExample: _\"Write a blog about AI and send it to me\"_")
	return b.String()
}
