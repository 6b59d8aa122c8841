package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommandLog_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	recs := []CommandRecord{
		{ID: "c1", Channel: "telegram", ChatID: "100", Intent: "weather", OK: true},
		{ID: "c2", Channel: "discord", ChatID: "200", Intent: "calendar_list", OK: true},
	}
	for _, rec := range recs {
		if err := s.RecordCommand(rec); err != nil {
			t.Fatalf("recording %s: %v", rec.ID, err)
		}
		// created_at ordering needs distinct timestamps.
		time.Sleep(5 * time.Millisecond)
	}

	got, err := s.RecentCommands(10)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != "c2" || got[1].ID != "c1" {
		t.Errorf("order = %s, %s; want c2, c1", got[0].ID, got[1].ID)
	}
	if got[1].Intent != "weather" || got[1].Channel != "telegram" {
		t.Errorf("record c1 = %+v", got[1])
	}
}

func TestVideoJobs_Lifecycle(t *testing.T) {
	s := openTestStore(t)

	job := VideoJob{ProjectID: "proj-1", Subject: "space travel", Channel: "telegram", ChatID: "100"}
	if err := s.CreateVideoJob(job); err != nil {
		t.Fatalf("creating job: %v", err)
	}

	pending, err := s.PendingVideoJobs()
	if err != nil {
		t.Fatalf("listing pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ProjectID != "proj-1" {
		t.Fatalf("pending = %+v, want proj-1", pending)
	}
	if pending[0].Status != VideoPending {
		t.Errorf("status = %q, want pending", pending[0].Status)
	}

	if err := s.UpdateVideoJob("proj-1", VideoDone, "https://vid/1.mp4"); err != nil {
		t.Fatalf("updating job: %v", err)
	}

	pending, err = s.PendingVideoJobs()
	if err != nil {
		t.Fatalf("re-listing pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after done = %+v, want empty", pending)
	}

	latest, err := s.LatestVideoJob()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Status != VideoDone || latest.VideoURL != "https://vid/1.mp4" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestLatestVideoJob_EmptyStore(t *testing.T) {
	s := openTestStore(t)

	latest, err := s.LatestVideoJob()
	if err != nil {
		t.Fatalf("latest on empty store: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil", latest)
	}
}

func TestLatestVideoJob_PicksNewest(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"old", "new"} {
		if err := s.CreateVideoJob(VideoJob{ProjectID: id, Subject: id, Channel: "t", ChatID: "1"}); err != nil {
			t.Fatalf("creating %s: %v", id, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	latest, err := s.LatestVideoJob()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ProjectID != "new" {
		t.Errorf("latest = %+v, want new", latest)
	}
}
