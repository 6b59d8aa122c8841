package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"sidekick/pkg/sidekick/collab"
	"sidekick/pkg/sidekick/store"
)

// genericFailure is the single user-facing message for any unexpected error
// during dispatch. Details stay in the server log.
const genericFailure = "⚠️ An error occurred while processing your request. Please try again."

// chatSystemPrompt is the fixed capability-disclosure instruction for the
// chat fallback. It denies capabilities the bot does not have and redirects
// to the nearest real intent instead of hallucinating an unsupported action.
const chatSystemPrompt = `You are an advanced Personal AI Assistant accessible via chat.

YOUR CAPABILITIES (Real-time Tools):
1. Communication: Gmail (Send, Read, Reply, Draft), Google Contacts (Search)
2. Productivity: Google Calendar (List, Create, Reschedule, Delete Events)
3. Creation: Blog Writer, Image Generation, Video Generation
4. Utilities: Web Search, Weather, Lead Scraping, Subscription Check

CRITICAL INSTRUCTIONS:
- If the user asks for something listed above, confirm and use the tool (or guide them to the syntax).
- YouTube/Social Media: You do NOT have direct tools to upload/share to YouTube/Instagram.
  - If asked, say: "I don't have a direct YouTube upload tool installed yet, but I can generate the video content for you using 'Make a video about...'"
  - Do NOT give generic advice on third-party automation tools unless specifically asked for "external tools".
  - Instead, offer to "Search the web" if they need a tutorial.
- Ambiguity: If the user says "Share this", ask "Share via Email? I can do that. I cannot share via Social Media yet."`

// chatDefaultReply is sent when the chat completion itself fails.
const chatDefaultReply = "I'm not sure how to help with that yet."

// Destination identifies where replies for a command go.
type Destination struct {
	// Channel is the originating channel name ("telegram", "discord", "console").
	Channel string

	// ChatID is the opaque session identifier to reply to.
	ChatID string
}

// Sender delivers replies to a destination. The assistant's channel registry
// implements it in production; tests capture messages with a fake.
type Sender interface {
	Send(ctx context.Context, dest Destination, text string) error
	SendImage(ctx context.Context, dest Destination, url, caption string) error
}

// Deps are the collaborator dependencies the Dispatcher routes to. Every
// field is an interface so tests can substitute fakes. Calling an intent
// whose collaborator is nil panics on the method call; the recovery in
// Dispatch turns that into the generic failure reply.
type Deps struct {
	Calendar  collab.Calendar
	Mail      collab.Mail
	Contacts  collab.Contacts
	Weather   collab.Weather
	Search    collab.WebSearch
	Leads     collab.Leads
	Studio    collab.Studio
	Video     collab.Video
	Billing   collab.Billing
	Completer Completer

	// Store tracks video jobs and the command log. Optional.
	Store *store.Store
}

// Dispatcher validates parsed commands, invokes collaborators and formats
// replies. It never panics out of Dispatch and never returns an error to the
// transport loop: every failure becomes exactly one reply.
type Dispatcher struct {
	deps   Deps
	sender Sender
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps Deps, sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{deps: deps, sender: sender, logger: logger.With("component", "dispatcher")}
}

// Dispatch executes the parsed command and sends replies as a side effect.
// Unexpected panics and errors are logged and converted into one generic
// failure reply; the caller's loop keeps running.
func (d *Dispatcher) Dispatch(ctx context.Context, parsed ParsedCommand, dest Destination) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch: panic recovered",
				"intent", parsed.Intent, "panic", r, "stack", string(debug.Stack()))
			d.send(ctx, dest, genericFailure)
		}
	}()

	spec := Lookup(parsed.Intent)
	if spec == nil {
		// The classifier guarantees a valid intent; an unknown one here is a
		// registry/dispatcher drift bug.
		d.logger.Error("dispatch: intent missing from registry", "intent", parsed.Intent)
		d.send(ctx, dest, genericFailure)
		return
	}

	// Validate required params before touching any collaborator.
	for _, key := range spec.Required {
		if parsed.StringParam(key) == "" {
			d.send(ctx, dest, fmt.Sprintf("❌ %s. Example: '%s'", spec.Clarify, spec.Usage))
			return
		}
	}

	switch parsed.Intent {
	case IntentCalendarList:
		d.calendarList(ctx, parsed, dest)
	case IntentCalendarCreate:
		d.calendarCreate(ctx, parsed, dest)
	case IntentCalendarUpdate:
		d.calendarUpdate(ctx, parsed, dest)
	case IntentCalendarDelete:
		d.calendarDelete(ctx, parsed, dest)
	case IntentMailList:
		d.mailList(ctx, parsed, dest)
	case IntentMailSend:
		d.mailSend(ctx, parsed, dest)
	case IntentMailReply:
		d.mailReply(ctx, parsed, dest)
	case IntentMailDraft:
		d.mailDraft(ctx, parsed, dest)
	case IntentContactSearch:
		d.contactSearch(ctx, parsed, dest)
	case IntentLeadGen:
		d.leadGen(ctx, parsed, dest)
	case IntentWeather:
		d.weather(ctx, parsed, dest)
	case IntentWebSearch:
		d.webSearch(ctx, parsed, dest)
	case IntentImageGen:
		d.imageGen(ctx, parsed, dest)
	case IntentImageSearch:
		d.imageSearch(ctx, parsed, dest)
	case IntentBlogGen:
		d.blogGen(ctx, parsed, dest)
	case IntentVideoGen:
		d.videoGen(ctx, parsed, dest)
	case IntentVideoStatus:
		d.videoStatus(ctx, parsed, dest)
	case IntentSubscription:
		d.subscriptionStatus(ctx, parsed, dest)
	case IntentChat:
		d.chat(ctx, parsed, dest)
	default:
		d.logger.Error("dispatch: no branch for intent", "intent", parsed.Intent)
		d.send(ctx, dest, genericFailure)
	}
}

// Help sends the registry-generated /help listing.
func (d *Dispatcher) Help(ctx context.Context, dest Destination) {
	d.send(ctx, dest, HelpText())
}

// ---------- Calendar ----------

func (d *Dispatcher) calendarList(ctx context.Context, parsed ParsedCommand, dest Destination) {
	date := parsed.StringParam("date")
	events, err := d.deps.Calendar.ListEvents(ctx, 10, date)
	if err != nil {
		d.replyError(ctx, dest, "Calendar", err)
		return
	}

	label := date
	if label == "" {
		label = "upcoming days"
	}
	if len(events) == 0 {
		d.send(ctx, dest, fmt.Sprintf("📅 No events found for %s.", label))
		return
	}

	header := date
	if header == "" {
		header = "Upcoming"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *Schedule (%s)*:\n\n", header)
	for _, e := range events {
		fmt.Fprintf(&b, "• `%s` - %s\n", eventTime(e.Start), e.Summary)
	}
	d.send(ctx, dest, b.String())
}

func (d *Dispatcher) calendarCreate(ctx context.Context, parsed ParsedCommand, dest Destination) {
	summary := parsed.StringParam("summary")
	created, err := d.deps.Calendar.CreateEvent(ctx,
		summary,
		parsed.StringParam("start_time"),
		parsed.IntParam("duration", 60),
		parsed.StringParam("description"),
	)
	if err != nil {
		d.replyError(ctx, dest, "Calendar", err)
		return
	}
	d.send(ctx, dest, fmt.Sprintf("✅ Event created: *%s*\n🔗 [View Event](%s)", summary, created.Link))
}

func (d *Dispatcher) calendarUpdate(ctx context.Context, parsed ParsedCommand, dest Destination) {
	target := parsed.StringParam("target_event")
	newStart := parsed.StringParam("new_start_time")
	dateFilter := parsed.StringParam("date")

	d.send(ctx, dest, fmt.Sprintf("🔍 Looking for event '%s' (%s)...", target, filterLabel(dateFilter)))

	found, err := d.findEvent(ctx, target, dateFilter)
	if err != nil {
		d.replyError(ctx, dest, "Calendar", err)
		return
	}
	if found == nil {
		d.send(ctx, dest, fmt.Sprintf("❌ Could not find an event matching '%s' in %s.", target, filterLabel(dateFilter)))
		return
	}

	d.send(ctx, dest, fmt.Sprintf("✅ Found: *%s* at %s. Moving to %s...", found.Summary, eventTime(found.Start), newStart))

	// Duration zero keeps the event's original length.
	updated, err := d.deps.Calendar.UpdateEvent(ctx, found.ID, newStart, parsed.IntParam("duration", 0))
	if err != nil {
		d.replyError(ctx, dest, "Update", err)
		return
	}
	d.send(ctx, dest, fmt.Sprintf("✅ Event Rescheduled: *%s*\n🔗 [View Event](%s)", found.Summary, updated.Link))
}

func (d *Dispatcher) calendarDelete(ctx context.Context, parsed ParsedCommand, dest Destination) {
	target := parsed.StringParam("target_event")
	dateFilter := parsed.StringParam("date")

	d.send(ctx, dest, fmt.Sprintf("🔍 Looking for event '%s' (%s) to delete...", target, filterLabel(dateFilter)))

	found, err := d.findEvent(ctx, target, dateFilter)
	if err != nil {
		d.replyError(ctx, dest, "Calendar", err)
		return
	}
	if found == nil {
		d.send(ctx, dest, fmt.Sprintf("❌ Could not find an event matching '%s' in %s.", target, filterLabel(dateFilter)))
		return
	}

	// Capture the title and time before deleting for the confirmation.
	title, when := found.Summary, eventTime(found.Start)

	if err := d.deps.Calendar.DeleteEvent(ctx, found.ID); err != nil {
		d.replyError(ctx, dest, "Delete", err)
		return
	}
	d.send(ctx, dest, fmt.Sprintf("🗑️ ✅ Event Cancelled: *%s* (%s)", title, when))
}

// findEvent lists candidate events for the date window and returns the first
// whose title contains the target name, case-insensitively. First match in
// list order wins; there is no fuzzy ranking, the listing order is the
// calendar's own chronological order.
func (d *Dispatcher) findEvent(ctx context.Context, target, dateFilter string) (*collab.Event, error) {
	if dateFilter != collab.DateToday && dateFilter != collab.DateTomorrow {
		dateFilter = ""
	}
	events, err := d.deps.Calendar.ListEvents(ctx, 20, dateFilter)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(target)
	for i := range events {
		if strings.Contains(strings.ToLower(events[i].Summary), needle) {
			return &events[i], nil
		}
	}
	return nil, nil
}

// ---------- Mail ----------

func (d *Dispatcher) mailList(ctx context.Context, parsed ParsedCommand, dest Destination) {
	emails, err := d.deps.Mail.ListEmails(ctx, parsed.IntParam("max_results", 5), parsed.StringParam("query"))
	if err != nil {
		d.replyError(ctx, dest, "Mail", err)
		return
	}
	if len(emails) == 0 {
		d.send(ctx, dest, "📧 No recent emails found.")
		return
	}

	var b strings.Builder
	b.WriteString("📧 *Recent Emails*:\n\n")
	for _, m := range emails {
		fmt.Fprintf(&b, "From: *%s*\nSub: %s\n`ID: %s`\n\n", m.From, m.Subject, m.ID)
	}
	d.send(ctx, dest, b.String())
}

func (d *Dispatcher) mailSend(ctx context.Context, parsed ParsedCommand, dest Destination) {
	to := parsed.StringParam("to")
	if _, err := d.deps.Mail.SendEmail(ctx, to, parsed.StringParam("subject"), parsed.StringParam("body")); err != nil {
		d.replyError(ctx, dest, "Mail", err)
		return
	}
	d.send(ctx, dest, fmt.Sprintf("✅ Email sent to *%s*", to))
}

func (d *Dispatcher) mailReply(ctx context.Context, parsed ParsedCommand, dest Destination) {
	messageID := parsed.StringParam("message_id")

	// A null message_id means "the most recently listed message"; resolving
	// it is this dispatcher's job, not the classifier's.
	if messageID == "" {
		latest, err := d.deps.Mail.ListEmails(ctx, 1, "")
		if err != nil {
			d.replyError(ctx, dest, "Reply", err)
			return
		}
		if len(latest) == 0 {
			d.send(ctx, dest, "❌ No emails found to reply to")
			return
		}
		messageID = latest[0].ID
	}

	if _, err := d.deps.Mail.ReplyEmail(ctx, messageID, parsed.StringParam("body")); err != nil {
		d.replyError(ctx, dest, "Reply", err)
		return
	}
	d.send(ctx, dest, "✅ Reply sent to email thread")
}

func (d *Dispatcher) mailDraft(ctx context.Context, parsed ParsedCommand, dest Destination) {
	to := parsed.StringParam("to")
	if _, err := d.deps.Mail.CreateDraft(ctx, to, parsed.StringParam("subject"), parsed.StringParam("body")); err != nil {
		d.replyError(ctx, dest, "Draft", err)
		return
	}
	d.send(ctx, dest, fmt.Sprintf("✅ Draft created for *%s*", to))
}

// ---------- Contacts / Leads ----------

func (d *Dispatcher) contactSearch(ctx context.Context, parsed ParsedCommand, dest Destination) {
	query := parsed.StringParam("query")
	contacts, err := d.deps.Contacts.Search(ctx, query)
	if err != nil {
		d.replyError(ctx, dest, "Contacts", err)
		return
	}
	if len(contacts) == 0 {
		d.send(ctx, dest, fmt.Sprintf("👤 No contacts found for '%s'", query))
		return
	}

	if len(contacts) > 5 {
		contacts = contacts[:5]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👤 *Contacts Found (%d)*:\n\n", len(contacts))
	for _, c := range contacts {
		fmt.Fprintf(&b, "• *%s*\n  📧 %s\n  📞 %s\n\n", c.Name, c.Email, c.Phone)
	}
	d.send(ctx, dest, b.String())
}

func (d *Dispatcher) leadGen(ctx context.Context, parsed ParsedCommand, dest Destination) {
	query := parsed.StringParam("query")
	location := parsed.StringParam("location")
	if location == "" {
		location = "United States"
	}
	limit := parsed.IntParam("limit", 5)

	d.send(ctx, dest, fmt.Sprintf("🔍 Scraping leads for '%s' in '%s' (Limit: %d)...\nThis may take up to a minute.", query, location, limit))

	leads, err := d.deps.Leads.Scrape(ctx, query, location, limit)
	if err != nil {
		d.replyError(ctx, dest, "Scraping", err)
		return
	}
	if len(leads) == 0 {
		d.send(ctx, dest, "❌ No leads found.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💼 *Leads Found (%d)*:\n\n", len(leads))
	for _, lead := range leads {
		name := strings.TrimSpace(lead.FirstName + " " + lead.LastName)
		if name == "" {
			name = "Unknown"
		}
		company := orDash(lead.Company, "N/A")
		title := orDash(lead.JobTitle, "N/A")
		email := orDash(lead.Email, "No Email")
		fmt.Fprintf(&b, "• *%s*\n  🏢 %s - %s\n  📧 %s\n", name, company, title, email)
		if lead.LinkedIn != "" {
			fmt.Fprintf(&b, "  🔗 [LinkedIn](https://www.linkedin.com/in/%s)\n", lead.LinkedIn)
		}
		b.WriteString("\n")
	}
	d.send(ctx, dest, b.String())
}

// ---------- Weather / Web ----------

func (d *Dispatcher) weather(ctx context.Context, parsed ParsedCommand, dest Destination) {
	report, err := d.deps.Weather.Current(ctx, parsed.StringParam("city"))
	if err != nil {
		d.replyError(ctx, dest, "Weather", err)
		return
	}
	d.send(ctx, dest, fmt.Sprintf("🌤 *Weather in %s*:\nTemp: %.1f°C\nConditions: %s",
		report.City, report.TempC, capitalize(report.Description)))
}

func (d *Dispatcher) webSearch(ctx context.Context, parsed ParsedCommand, dest Destination) {
	query := parsed.StringParam("query")
	d.send(ctx, dest, fmt.Sprintf("🔍 Searching web for '%s'...", query))

	summary, err := d.deps.Search.Search(ctx, query)
	if err != nil {
		d.replyError(ctx, dest, "Search", err)
		return
	}
	if summary == "" {
		summary = "No summary available."
	}
	d.send(ctx, dest, "🌐 *Search Results*:\n\n"+summary)
}

// ---------- Creation ----------

func (d *Dispatcher) imageGen(ctx context.Context, parsed ParsedCommand, dest Destination) {
	prompt := parsed.StringParam("prompt")
	title := parsed.StringParam("title")
	if title == "" {
		title = "Generated Image"
	}

	d.send(ctx, dest, fmt.Sprintf("🎨 Generating image based on: '%s'...", prompt))

	img, err := d.deps.Studio.GenerateImage(ctx, title, prompt)
	if err != nil {
		d.replyError(ctx, dest, "Image", err)
		return
	}
	if err := d.sender.SendImage(ctx, dest, img.URL, title); err != nil {
		// The image exists; fall back to a plain link.
		d.send(ctx, dest, fmt.Sprintf("🖼 *%s*\n%s", title, img.URL))
	}
}

func (d *Dispatcher) imageSearch(ctx context.Context, parsed ParsedCommand, dest Destination) {
	query := parsed.StringParam("query")
	d.send(ctx, dest, fmt.Sprintf("🔍 Searching for image: '%s'...", query))

	found, err := d.deps.Studio.SearchImage(ctx, query)
	if err != nil {
		d.replyError(ctx, dest, "Image search", err)
		return
	}
	if found == nil {
		d.send(ctx, dest, fmt.Sprintf("❌ No image found for '%s'", query))
		return
	}
	d.send(ctx, dest, fmt.Sprintf("🖼 *Image Found!*\n\n*Name*: %s\n*Drive Link*: [View on Google Drive](%s)", found.Name, found.Link))
}

func (d *Dispatcher) blogGen(ctx context.Context, parsed ParsedCommand, dest Destination) {
	topic := parsed.StringParam("topic")
	audience := parsed.StringParam("audience")
	if audience == "" {
		audience = "general audience"
	}

	d.send(ctx, dest, fmt.Sprintf("📝 Writing blog post about '%s' for '%s'...\nThis might take a minute.", topic, audience))

	post, err := d.deps.Studio.GenerateBlog(ctx, topic, audience)
	if err != nil {
		d.replyError(ctx, dest, "Blog", err)
		return
	}
	d.send(ctx, dest, post.Content)
	d.send(ctx, dest, "✅ Blog post workflow completed.")
}

func (d *Dispatcher) videoGen(ctx context.Context, parsed ParsedCommand, dest Destination) {
	subject := parsed.StringParam("subject")
	d.send(ctx, dest, fmt.Sprintf("🎬 Starting video generation for '%s'...", subject))

	projectID, err := d.deps.Video.StartRender(ctx, subject)
	if err != nil {
		d.replyError(ctx, dest, "Video", err)
		return
	}

	if d.deps.Store != nil {
		job := store.VideoJob{ProjectID: projectID, Subject: subject, Channel: dest.Channel, ChatID: dest.ChatID}
		if err := d.deps.Store.CreateVideoJob(job); err != nil {
			d.logger.Warn("dispatch: tracking video job failed", "project_id", projectID, "error", err)
		}
	}

	d.send(ctx, dest, fmt.Sprintf("✅ Video generation started!\nProject ID: `%s`\n\nI will notify you when it's ready (or you can ask 'status of video').", projectID))
}

func (d *Dispatcher) videoStatus(ctx context.Context, parsed ParsedCommand, dest Destination) {
	projectID := parsed.StringParam("project_id")

	// Without an explicit ID, fall back to the most recently tracked job.
	if projectID == "" && d.deps.Store != nil {
		job, err := d.deps.Store.LatestVideoJob()
		if err != nil {
			d.logger.Warn("dispatch: latest video job lookup failed", "error", err)
		} else if job != nil {
			projectID = job.ProjectID
		}
	}
	if projectID == "" {
		d.send(ctx, dest, "ℹ️ Please provide the Project ID. Example: 'Check status of video xyz'")
		return
	}

	d.send(ctx, dest, fmt.Sprintf("Checking status for `%s`...", projectID))

	status, err := d.deps.Video.Status(ctx, projectID)
	if err != nil {
		d.replyError(ctx, dest, "Video status", err)
		return
	}
	if status.Done() {
		if d.deps.Store != nil {
			if err := d.deps.Store.UpdateVideoJob(projectID, store.VideoDone, status.URL); err != nil {
				d.logger.Warn("dispatch: marking video job done failed", "project_id", projectID, "error", err)
			}
		}
		d.send(ctx, dest, fmt.Sprintf("✅ Video is READY!\n[Watch Video](%s)", status.URL))
		return
	}
	d.send(ctx, dest, fmt.Sprintf("⏳ Video status: %s", status.Status))
}

// ---------- Billing / Chat ----------

func (d *Dispatcher) subscriptionStatus(ctx context.Context, parsed ParsedCommand, dest Destination) {
	email := parsed.StringParam("email")
	if email == "" {
		// There is no chat-id→email mapping; ask for the address.
		d.send(ctx, dest, "ℹ️ Please provide the email to check. Example: 'Am I subscribed with test@example.com?'")
		return
	}

	active, err := d.deps.Billing.SubscriptionActive(ctx, email)
	if err != nil {
		d.replyError(ctx, dest, "Subscription", err)
		return
	}
	if active {
		d.send(ctx, dest, fmt.Sprintf("✅ User %s is SUBSCRIBED to Premium.", email))
	} else {
		d.send(ctx, dest, fmt.Sprintf("❌ User %s is NOT subscribed.", email))
	}
}

func (d *Dispatcher) chat(ctx context.Context, parsed ParsedCommand, dest Destination) {
	query := parsed.StringParam("query")
	if d.deps.Completer == nil {
		d.send(ctx, dest, chatDefaultReply)
		return
	}
	reply, err := d.deps.Completer.Complete(ctx, chatSystemPrompt, query)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			d.logger.Warn("dispatch: chat completion failed", "error", err)
		}
		d.send(ctx, dest, chatDefaultReply)
		return
	}
	d.send(ctx, dest, reply)
}

// ---------- Helpers ----------

// replyError translates a collaborator error into a user reply. Envelope
// errors surface the upstream message with a failure marker; anything else is
// logged and replaced with the generic failure message.
func (d *Dispatcher) replyError(ctx context.Context, dest Destination, label string, err error) {
	var apiErr *collab.APIError
	if errors.As(err, &apiErr) {
		d.send(ctx, dest, fmt.Sprintf("❌ %s error: %s", label, apiErr.Message))
		return
	}
	d.logger.Error("dispatch: unexpected error", "label", label, "error", err)
	d.send(ctx, dest, genericFailure)
}

func (d *Dispatcher) send(ctx context.Context, dest Destination, text string) {
	if err := d.sender.Send(ctx, dest, text); err != nil {
		d.logger.Warn("dispatch: send failed", "channel", dest.Channel, "chat_id", dest.ChatID, "error", err)
	}
}

// eventTime extracts "HH:MM" from an RFC 3339 start, or "All Day" for
// date-only events.
func eventTime(start string) string {
	if i := strings.IndexByte(start, 'T'); i >= 0 && len(start) >= i+6 {
		return start[i+1 : i+6]
	}
	return "All Day"
}

// filterLabel names the date window in progress/not-found messages.
func filterLabel(dateFilter string) string {
	if dateFilter == collab.DateToday || dateFilter == collab.DateTomorrow {
		return dateFilter
	}
	return "upcoming events"
}

func orDash(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
