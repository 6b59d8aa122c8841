package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sidekick/pkg/sidekick/collab"
)

// captureSender records outgoing replies.
type captureSender struct {
	texts  []string
	images []string
}

func (s *captureSender) Send(_ context.Context, _ Destination, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func (s *captureSender) SendImage(_ context.Context, _ Destination, url, caption string) error {
	s.images = append(s.images, url)
	return nil
}

func (s *captureSender) last() string {
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

// fakeCalendar serves canned events and records mutations.
type fakeCalendar struct {
	events    []collab.Event
	listErr   error
	updatedID string
	updatedAt string
	deletedID string
}

func (f *fakeCalendar) ListEvents(_ context.Context, _ int, _ string) ([]collab.Event, error) {
	return f.events, f.listErr
}

func (f *fakeCalendar) CreateEvent(_ context.Context, summary, _ string, _ int, _ string) (*collab.CreatedEvent, error) {
	return &collab.CreatedEvent{EventID: "new-1", Link: "https://cal/new-1"}, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, eventID, startISO string, _ int) (*collab.CreatedEvent, error) {
	f.updatedID = eventID
	f.updatedAt = startISO
	return &collab.CreatedEvent{EventID: eventID, Link: "https://cal/" + eventID}, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.deletedID = eventID
	return nil
}

type fakeMail struct {
	emails    []collab.Email
	repliedTo string
}

func (f *fakeMail) ListEmails(_ context.Context, _ int, _ string) ([]collab.Email, error) {
	return f.emails, nil
}

func (f *fakeMail) SendEmail(_ context.Context, to, _, _ string) (string, error) {
	return "sent-1", nil
}

func (f *fakeMail) ReplyEmail(_ context.Context, messageID, _ string) (string, error) {
	f.repliedTo = messageID
	return "reply-1", nil
}

func (f *fakeMail) CreateDraft(_ context.Context, _, _, _ string) (string, error) {
	return "draft-1", nil
}

type fakeWeather struct {
	report *collab.WeatherReport
	err    error
}

func (f *fakeWeather) Current(_ context.Context, _ string) (*collab.WeatherReport, error) {
	return f.report, f.err
}

// panicWeather simulates a collaborator bug.
type panicWeather struct{}

func (panicWeather) Current(_ context.Context, _ string) (*collab.WeatherReport, error) {
	panic("boom")
}

type fakeContacts struct {
	contacts []collab.Contact
}

func (f *fakeContacts) Search(_ context.Context, _ string) ([]collab.Contact, error) {
	return f.contacts, nil
}

type fakeWebSearch struct {
	summary string
}

func (f *fakeWebSearch) Search(_ context.Context, _ string) (string, error) {
	return f.summary, nil
}

type fakeLeads struct {
	leads []collab.Lead
}

func (f *fakeLeads) Scrape(_ context.Context, _, _ string, _ int) ([]collab.Lead, error) {
	return f.leads, nil
}

type fakeStudio struct{}

func (fakeStudio) GenerateImage(_ context.Context, title, _ string) (*collab.GeneratedImage, error) {
	return &collab.GeneratedImage{Title: title, URL: "https://img.example/1.png"}, nil
}

func (fakeStudio) SearchImage(_ context.Context, query string) (*collab.FoundImage, error) {
	return &collab.FoundImage{Name: query, Link: "https://drive.example/1"}, nil
}

func (fakeStudio) GenerateBlog(_ context.Context, topic, _ string) (*collab.BlogPost, error) {
	return &collab.BlogPost{Topic: topic, Content: "post body"}, nil
}

type fakeBilling struct {
	active bool
}

func (f fakeBilling) SubscriptionActive(_ context.Context, _ string) (bool, error) {
	return f.active, nil
}

func newTestDispatcher(deps Deps) (*Dispatcher, *captureSender) {
	sender := &captureSender{}
	return NewDispatcher(deps, sender, nil), sender
}

var testDest = Destination{Channel: "test", ChatID: "42"}

func TestDispatch_MissingRequiredParamAsksForClarification(t *testing.T) {
	tests := []struct {
		name   string
		parsed ParsedCommand
		want   string
	}{
		{
			name:   "calendar_update without target",
			parsed: ParsedCommand{Intent: IntentCalendarUpdate, Params: map[string]any{"new_start_time": "2025-06-01T19:00:00"}},
			want:   "❌ Please specify which event to move and the new time. Example: 'Reschedule dinner to 7pm'",
		},
		{
			name:   "weather without city",
			parsed: ParsedCommand{Intent: IntentWeather, Params: map[string]any{}},
			want:   "❌ Please specify a city. Example: 'Weather in London'",
		},
		{
			name:   "mail_send without recipient",
			parsed: ParsedCommand{Intent: IntentMailSend, Params: map[string]any{"body": "hi"}},
			want:   "❌ Please specify the recipient email address. Example: 'Send email to john@example.com'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sender := newTestDispatcher(Deps{Calendar: &fakeCalendar{}, Mail: &fakeMail{}, Weather: &fakeWeather{}})
			d.Dispatch(context.Background(), tt.parsed, testDest)

			if len(sender.texts) != 1 {
				t.Fatalf("got %d replies, want 1: %v", len(sender.texts), sender.texts)
			}
			if sender.texts[0] != tt.want {
				t.Errorf("reply = %q, want %q", sender.texts[0], tt.want)
			}
		})
	}
}

// fullDeps builds a Deps value with a working fake behind every interface.
func fullDeps() Deps {
	return Deps{
		Calendar: &fakeCalendar{events: []collab.Event{
			{ID: "e1", Summary: "Standup", Start: "2025-06-01T09:30:00"},
		}},
		Mail:      &fakeMail{emails: []collab.Email{{ID: "msg-1", From: "a@b.c", Subject: "Hi"}}},
		Contacts:  &fakeContacts{contacts: []collab.Contact{{Name: "Sam", Email: "sam@b.c", Phone: "-"}}},
		Weather:   &fakeWeather{report: &collab.WeatherReport{City: "London", TempC: 20, Description: "clear sky"}},
		Search:    &fakeWebSearch{summary: "an answer"},
		Leads:     &fakeLeads{leads: []collab.Lead{{FirstName: "Ada", Company: "Acme"}}},
		Studio:    fakeStudio{},
		Video:     &fakeVideo{statuses: map[string]*collab.RenderStatus{"p1": {Status: "running"}}},
		Billing:   fakeBilling{active: true},
		Completer: &stubCompleter{out: "hello"},
	}
}

// TestDispatch_EveryIntentHasABranch dispatches each intent with minimal
// valid params against full fakes. An intent that only exists in the registry
// would fall through to the default branch and reply with the generic
// failure.
func TestDispatch_EveryIntentHasABranch(t *testing.T) {
	params := map[Intent]map[string]any{
		IntentCalendarList:   {"date": "today"},
		IntentCalendarCreate: {"summary": "Standup", "start_time": "2025-06-02T09:00:00"},
		IntentCalendarUpdate: {"target_event": "standup", "new_start_time": "2025-06-02T10:00:00"},
		IntentCalendarDelete: {"target_event": "standup"},
		IntentMailList:       {},
		IntentMailSend:       {"to": "a@b.c"},
		IntentMailReply:      {"body": "Noted"},
		IntentMailDraft:      {"to": "a@b.c"},
		IntentContactSearch:  {"query": "sam"},
		IntentLeadGen:        {"query": "founder"},
		IntentWeather:        {"city": "London"},
		IntentWebSearch:      {"query": "go generics"},
		IntentImageGen:       {"prompt": "a lighthouse"},
		IntentImageSearch:    {"query": "lighthouse"},
		IntentBlogGen:        {"topic": "sourdough"},
		IntentVideoGen:       {"subject": "space"},
		IntentVideoStatus:    {"project_id": "p1"},
		IntentSubscription:   {"email": "a@b.c"},
		IntentChat:           {"query": "hi"},
	}

	for _, intent := range AllIntents {
		t.Run(string(intent), func(t *testing.T) {
			p, ok := params[intent]
			if !ok {
				t.Fatalf("intent %q has no dispatch parameters in this test", intent)
			}

			d, sender := newTestDispatcher(fullDeps())
			d.Dispatch(context.Background(), ParsedCommand{Intent: intent, Params: p}, testDest)

			if len(sender.texts)+len(sender.images) == 0 {
				t.Fatal("no reply sent")
			}
			spec := Lookup(intent)
			clarify := fmt.Sprintf("❌ %s. Example: '%s'", spec.Clarify, spec.Usage)
			for _, reply := range sender.texts {
				if reply == genericFailure {
					t.Errorf("reply fell through to the generic failure: %q", reply)
				}
				if len(spec.Required) > 0 && reply == clarify {
					t.Errorf("valid params asked for clarification: %q", reply)
				}
			}
		})
	}
}

func TestDispatch_NilCollaboratorBecomesGenericReply(t *testing.T) {
	d, sender := newTestDispatcher(Deps{})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentWeather, Params: map[string]any{"city": "London"}}, testDest)

	if got := sender.last(); got != genericFailure {
		t.Errorf("reply = %q, want generic failure", got)
	}
}

func TestDispatch_CalendarListEmpty(t *testing.T) {
	d, sender := newTestDispatcher(Deps{Calendar: &fakeCalendar{}})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentCalendarList, Params: map[string]any{"date": "today"}}, testDest)

	if got, want := sender.last(), "📅 No events found for today."; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_CalendarListFormatsEvents(t *testing.T) {
	cal := &fakeCalendar{events: []collab.Event{
		{ID: "e1", Summary: "Standup", Start: "2025-06-01T09:30:00+02:00"},
		{ID: "e2", Summary: "Lunch", Start: "2025-06-01"},
	}}
	d, sender := newTestDispatcher(Deps{Calendar: cal})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentCalendarList, Params: map[string]any{"date": "today"}}, testDest)

	reply := sender.last()
	if !strings.Contains(reply, "📅 *Schedule (today)*") {
		t.Errorf("missing header: %q", reply)
	}
	if !strings.Contains(reply, "`09:30` - Standup") {
		t.Errorf("missing timed event: %q", reply)
	}
	if !strings.Contains(reply, "`All Day` - Lunch") {
		t.Errorf("missing all-day event: %q", reply)
	}
}

func TestDispatch_CalendarUpdateFirstMatchWins(t *testing.T) {
	cal := &fakeCalendar{events: []collab.Event{
		{ID: "e1", Summary: "Morning run", Start: "2025-06-01T07:00:00"},
		{ID: "e2", Summary: "Team Dinner", Start: "2025-06-01T18:00:00"},
		{ID: "e3", Summary: "Dinner with Sam", Start: "2025-06-01T20:00:00"},
	}}
	d, sender := newTestDispatcher(Deps{Calendar: cal})
	d.Dispatch(context.Background(), ParsedCommand{
		Intent: IntentCalendarUpdate,
		Params: map[string]any{"target_event": "dinner", "new_start_time": "2025-06-01T19:00:00", "date": "today"},
	}, testDest)

	// Case-insensitive substring match; "Team Dinner" comes first.
	if cal.updatedID != "e2" {
		t.Fatalf("updated event = %q, want e2 (first match)", cal.updatedID)
	}
	if cal.updatedAt != "2025-06-01T19:00:00" {
		t.Errorf("new start = %q", cal.updatedAt)
	}
	if !strings.Contains(sender.last(), "✅ Event Rescheduled: *Team Dinner*") {
		t.Errorf("final reply = %q", sender.last())
	}
}

func TestDispatch_CalendarUpdateNotFound(t *testing.T) {
	cal := &fakeCalendar{events: []collab.Event{{ID: "e1", Summary: "Standup", Start: "2025-06-01T09:30:00"}}}
	d, sender := newTestDispatcher(Deps{Calendar: cal})
	d.Dispatch(context.Background(), ParsedCommand{
		Intent: IntentCalendarUpdate,
		Params: map[string]any{"target_event": "dentist", "new_start_time": "2025-06-01T19:00:00"},
	}, testDest)

	if cal.updatedID != "" {
		t.Fatalf("update called for %q, want no mutation", cal.updatedID)
	}
	if got, want := sender.last(), "❌ Could not find an event matching 'dentist' in upcoming events."; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_CalendarDeleteConfirmsWithOriginalDetails(t *testing.T) {
	cal := &fakeCalendar{events: []collab.Event{{ID: "e7", Summary: "Dentist", Start: "2025-06-01T15:00:00"}}}
	d, sender := newTestDispatcher(Deps{Calendar: cal})
	d.Dispatch(context.Background(), ParsedCommand{
		Intent: IntentCalendarDelete,
		Params: map[string]any{"target_event": "dentist", "date": "today"},
	}, testDest)

	if cal.deletedID != "e7" {
		t.Fatalf("deleted = %q, want e7", cal.deletedID)
	}
	if got, want := sender.last(), "🗑️ ✅ Event Cancelled: *Dentist* (15:00)"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_CollaboratorErrorSurfacesMessage(t *testing.T) {
	w := &fakeWeather{err: collab.Errf("weather", "city not found")}
	d, sender := newTestDispatcher(Deps{Weather: w})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentWeather, Params: map[string]any{"city": "Atlantis"}}, testDest)

	if got, want := sender.last(), "❌ Weather error: city not found"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_UnexpectedErrorBecomesGenericReply(t *testing.T) {
	w := &fakeWeather{err: errors.New("socket exploded")}
	d, sender := newTestDispatcher(Deps{Weather: w})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentWeather, Params: map[string]any{"city": "London"}}, testDest)

	if got := sender.last(); got != genericFailure {
		t.Errorf("reply = %q, want generic failure", got)
	}
	if strings.Contains(sender.last(), "socket exploded") {
		t.Error("internal error detail leaked to user")
	}
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	d, sender := newTestDispatcher(Deps{Weather: panicWeather{}})

	// Must not panic out of Dispatch.
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentWeather, Params: map[string]any{"city": "London"}}, testDest)

	if got := sender.last(); got != genericFailure {
		t.Errorf("reply = %q, want generic failure", got)
	}
}

func TestDispatch_WeatherFormatsReport(t *testing.T) {
	w := &fakeWeather{report: &collab.WeatherReport{City: "London", TempC: 17.5, Description: "scattered clouds"}}
	d, sender := newTestDispatcher(Deps{Weather: w})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentWeather, Params: map[string]any{"city": "London"}}, testDest)

	want := "🌤 *Weather in London*:\nTemp: 17.5°C\nConditions: Scattered clouds"
	if got := sender.last(); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_MailReplyResolvesLatestMessage(t *testing.T) {
	m := &fakeMail{emails: []collab.Email{{ID: "msg-9", From: "a@b.c", Subject: "Hello"}}}
	d, sender := newTestDispatcher(Deps{Mail: m})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentMailReply, Params: map[string]any{"body": "Noted"}}, testDest)

	if m.repliedTo != "msg-9" {
		t.Fatalf("replied to %q, want msg-9", m.repliedTo)
	}
	if got, want := sender.last(), "✅ Reply sent to email thread"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_MailReplyNoEmails(t *testing.T) {
	d, sender := newTestDispatcher(Deps{Mail: &fakeMail{}})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentMailReply, Params: map[string]any{"body": "Noted"}}, testDest)

	if got, want := sender.last(), "❌ No emails found to reply to"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_VideoStatusWithoutIDOrStoreAsksForID(t *testing.T) {
	d, sender := newTestDispatcher(Deps{})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentVideoStatus, Params: map[string]any{}}, testDest)

	if got, want := sender.last(), "ℹ️ Please provide the Project ID. Example: 'Check status of video xyz'"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestDispatch_SubscriptionWithoutEmailAsks(t *testing.T) {
	d, sender := newTestDispatcher(Deps{})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentSubscription, Params: map[string]any{}}, testDest)

	if !strings.Contains(sender.last(), "Please provide the email to check") {
		t.Errorf("reply = %q", sender.last())
	}
}

func TestDispatch_ChatWithoutCompleterUsesDefaultReply(t *testing.T) {
	d, sender := newTestDispatcher(Deps{})
	d.Dispatch(context.Background(),
		ParsedCommand{Intent: IntentChat, Params: map[string]any{"query": "hi"}}, testDest)

	if got := sender.last(); got != chatDefaultReply {
		t.Errorf("reply = %q, want default chat reply", got)
	}
}

func TestHelp_SendsListing(t *testing.T) {
	d, sender := newTestDispatcher(Deps{})
	d.Help(context.Background(), testDest)

	if !strings.Contains(sender.last(), "🤖 *Available Commands:*") {
		t.Errorf("reply = %q", sender.last())
	}
}
