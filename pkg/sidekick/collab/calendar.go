package collab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Date filters accepted by Calendar.ListEvents. Anything else means
// "upcoming" (timeMin = now, no upper bound).
const (
	DateToday    = "today"
	DateTomorrow = "tomorrow"
)

// Event is a calendar event as returned by ListEvents.
type Event struct {
	ID      string
	Summary string
	Start   string // RFC 3339 dateTime, or date for all-day events
	End     string
}

// CreatedEvent is the result of CreateEvent.
type CreatedEvent struct {
	EventID string
	Link    string
}

// Calendar is the calendar collaborator.
type Calendar interface {
	// ListEvents returns upcoming events, optionally restricted to a single
	// day with dateFilter (DateToday, DateTomorrow or "").
	ListEvents(ctx context.Context, maxResults int, dateFilter string) ([]Event, error)

	// CreateEvent creates an event starting at startISO with the given
	// duration in minutes.
	CreateEvent(ctx context.Context, summary, startISO string, durationMinutes int, description string) (*CreatedEvent, error)

	// UpdateEvent moves the event to startISO. When durationMinutes is zero
	// the event keeps its original duration.
	UpdateEvent(ctx context.Context, eventID, startISO string, durationMinutes int) (*CreatedEvent, error)

	// DeleteEvent removes the event.
	DeleteEvent(ctx context.Context, eventID string) error
}

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// googleCalendar talks to the Google Calendar v3 REST API on the primary
// calendar.
type googleCalendar struct {
	tokens  TokenSource
	client  httpDoer
	baseURL string
	now     func() time.Time
}

// NewGoogleCalendar creates a Calendar backed by the Google Calendar API.
func NewGoogleCalendar(tokens TokenSource) Calendar {
	return &googleCalendar{tokens: tokens, client: defaultClient(), baseURL: calendarBaseURL, now: time.Now}
}

func (g *googleCalendar) authHeader(ctx context.Context) (map[string]string, error) {
	tok, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, Errf("calendar", "credentials unavailable: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

type gcEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (t gcEventTime) value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

type gcEvent struct {
	ID        string      `json:"id,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	Desc      string      `json:"description,omitempty"`
	Start     gcEventTime `json:"start"`
	End       gcEventTime `json:"end"`
	EventType string      `json:"eventType,omitempty"`
	HTMLLink  string      `json:"htmlLink,omitempty"`
}

func (g *googleCalendar) ListEvents(ctx context.Context, maxResults int, dateFilter string) ([]Event, error) {
	headers, err := g.authHeader(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))

	now := g.now()
	switch dateFilter {
	case DateToday:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		q.Set("timeMin", start.Format(time.RFC3339))
		q.Set("timeMax", start.Add(24*time.Hour-time.Second).Format(time.RFC3339))
	case DateTomorrow:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
		q.Set("timeMin", start.Format(time.RFC3339))
		q.Set("timeMax", start.Add(24*time.Hour-time.Second).Format(time.RFC3339))
	default:
		q.Set("timeMin", now.Format(time.RFC3339))
	}

	var result struct {
		Items []gcEvent `json:"items"`
	}
	u := g.baseURL + "/calendars/primary/events?" + q.Encode()
	if err := doJSON(ctx, g.client, "calendar", http.MethodGet, u, headers, nil, &result); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		// Birthday events are read-only; listing them invites doomed mutations.
		if item.EventType == "birthday" {
			continue
		}
		summary := item.Summary
		if summary == "" {
			summary = "(No Title)"
		}
		events = append(events, Event{
			ID:      item.ID,
			Summary: summary,
			Start:   item.Start.value(),
			End:     item.End.value(),
		})
	}
	return events, nil
}

func (g *googleCalendar) CreateEvent(ctx context.Context, summary, startISO string, durationMinutes int, description string) (*CreatedEvent, error) {
	headers, err := g.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	start, err := parseISOTime(startISO)
	if err != nil {
		return nil, Errf("calendar", "invalid start_time format, use ISO format (YYYY-MM-DDTHH:MM:SS)")
	}
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	body := gcEvent{
		Summary: summary,
		Desc:    description,
		Start:   gcEventTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:     gcEventTime{DateTime: end.Format(time.RFC3339), TimeZone: "UTC"},
	}
	var created gcEvent
	u := g.baseURL + "/calendars/primary/events"
	if err := doJSON(ctx, g.client, "calendar", http.MethodPost, u, headers, body, &created); err != nil {
		return nil, err
	}
	return &CreatedEvent{EventID: created.ID, Link: created.HTMLLink}, nil
}

func (g *googleCalendar) UpdateEvent(ctx context.Context, eventID, startISO string, durationMinutes int) (*CreatedEvent, error) {
	headers, err := g.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	start, err := parseISOTime(startISO)
	if err != nil {
		return nil, Errf("calendar", "invalid start_time format")
	}

	// Fetch the event first: the new end time depends on the existing duration
	// unless an explicit one was given.
	var existing gcEvent
	u := g.baseURL + "/calendars/primary/events/" + url.PathEscape(eventID)
	if err := doJSON(ctx, g.client, "calendar", http.MethodGet, u, headers, nil, &existing); err != nil {
		return nil, err
	}

	duration := time.Hour
	if durationMinutes > 0 {
		duration = time.Duration(durationMinutes) * time.Minute
	} else if existing.Start.DateTime != "" && existing.End.DateTime != "" {
		oldStart, err1 := time.Parse(time.RFC3339, existing.Start.DateTime)
		oldEnd, err2 := time.Parse(time.RFC3339, existing.End.DateTime)
		if err1 == nil && err2 == nil {
			duration = oldEnd.Sub(oldStart)
		}
	}

	existing.Start = gcEventTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"}
	existing.End = gcEventTime{DateTime: start.Add(duration).Format(time.RFC3339), TimeZone: "UTC"}

	var updated gcEvent
	if err := doJSON(ctx, g.client, "calendar", http.MethodPut, u, headers, existing, &updated); err != nil {
		return nil, err
	}
	return &CreatedEvent{EventID: updated.ID, Link: updated.HTMLLink}, nil
}

func (g *googleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	headers, err := g.authHeader(ctx)
	if err != nil {
		return err
	}
	u := g.baseURL + "/calendars/primary/events/" + url.PathEscape(eventID)
	return doJSON(ctx, g.client, "calendar", http.MethodDelete, u, headers, nil, nil)
}

// parseISOTime accepts RFC 3339 or the offset-less YYYY-MM-DDTHH:MM:SS the
// classifier emits.
func parseISOTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
