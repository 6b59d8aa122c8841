package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCalendar(srv *httptest.Server) *googleCalendar {
	return &googleCalendar{
		tokens:  StaticToken("tok"),
		client:  srv.Client(),
		baseURL: srv.URL,
		now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestListEvents_SkipsBirthdaysAndDefaultsTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "e1", "summary": "Standup", "start": map[string]string{"dateTime": "2025-06-01T09:30:00Z"}, "end": map[string]string{"dateTime": "2025-06-01T09:45:00Z"}},
				{"id": "e2", "summary": "Mom's birthday", "eventType": "birthday", "start": map[string]string{"date": "2025-06-02"}, "end": map[string]string{"date": "2025-06-03"}},
				{"id": "e3", "start": map[string]string{"dateTime": "2025-06-01T13:00:00Z"}, "end": map[string]string{"dateTime": "2025-06-01T14:00:00Z"}},
			},
		})
	}))
	defer srv.Close()

	events, err := testCalendar(srv).ListEvents(context.Background(), 10, "")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (birthday skipped): %+v", len(events), events)
	}
	if events[0].Summary != "Standup" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Summary != "(No Title)" {
		t.Errorf("untitled event summary = %q, want (No Title)", events[1].Summary)
	}
}

func TestUpdateEvent_PreservesOriginalDuration(t *testing.T) {
	var putBody gcEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// Existing event: 90 minutes long.
			json.NewEncoder(w).Encode(gcEvent{
				ID:      "e1",
				Summary: "Dinner",
				Start:   gcEventTime{DateTime: "2025-06-01T18:00:00Z"},
				End:     gcEventTime{DateTime: "2025-06-01T19:30:00Z"},
			})
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&putBody); err != nil {
				t.Errorf("decoding PUT body: %v", err)
			}
			putBody.HTMLLink = "https://cal/e1"
			json.NewEncoder(w).Encode(putBody)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	updated, err := testCalendar(srv).UpdateEvent(context.Background(), "e1", "2025-06-01T20:00:00", 0)
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if updated.Link != "https://cal/e1" {
		t.Errorf("link = %q", updated.Link)
	}

	start, _ := time.Parse(time.RFC3339, putBody.Start.DateTime)
	end, _ := time.Parse(time.RFC3339, putBody.End.DateTime)
	if got := end.Sub(start); got != 90*time.Minute {
		t.Errorf("duration = %v, want 90m (preserved from original)", got)
	}
	if start.Hour() != 20 || start.Minute() != 0 {
		t.Errorf("new start = %v, want 20:00", start)
	}
}

func TestUpdateEvent_ExplicitDurationWins(t *testing.T) {
	var putBody gcEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(gcEvent{
				ID:    "e1",
				Start: gcEventTime{DateTime: "2025-06-01T18:00:00Z"},
				End:   gcEventTime{DateTime: "2025-06-01T19:30:00Z"},
			})
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&putBody)
			json.NewEncoder(w).Encode(putBody)
		}
	}))
	defer srv.Close()

	if _, err := testCalendar(srv).UpdateEvent(context.Background(), "e1", "2025-06-01T20:00:00", 30); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	start, _ := time.Parse(time.RFC3339, putBody.Start.DateTime)
	end, _ := time.Parse(time.RFC3339, putBody.End.DateTime)
	if got := end.Sub(start); got != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", got)
	}
}

func TestCreateEvent_RejectsBadStartTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for invalid input")
	}))
	defer srv.Close()

	_, err := testCalendar(srv).CreateEvent(context.Background(), "X", "tonight at 8", 60, "")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Service != "calendar" {
		t.Errorf("service = %q", apiErr.Service)
	}
}
