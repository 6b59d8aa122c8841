package assistant

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"sidekick/pkg/sidekick/collab"
	"sidekick/pkg/sidekick/store"
)

// fakeVideo serves per-project render statuses.
type fakeVideo struct {
	statuses map[string]*collab.RenderStatus
}

func (f *fakeVideo) StartRender(_ context.Context, _ string) (string, error) {
	return "unused", nil
}

func (f *fakeVideo) Status(_ context.Context, projectID string) (*collab.RenderStatus, error) {
	if st, ok := f.statuses[projectID]; ok {
		return st, nil
	}
	return nil, collab.Errf("video_status", "unknown project")
}

func openWatcherStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "watcher.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRenderWatcher_AnnouncesCompletedJobOnce(t *testing.T) {
	st := openWatcherStore(t)
	if err := st.CreateVideoJob(store.VideoJob{ProjectID: "p1", Subject: "cats", Channel: "telegram", ChatID: "7"}); err != nil {
		t.Fatal(err)
	}

	video := &fakeVideo{statuses: map[string]*collab.RenderStatus{
		"p1": {Status: "done", URL: "https://vid/p1.mp4"},
	}}
	sender := &captureSender{}
	w := NewRenderWatcher(video, st, sender, nil)

	w.poll(context.Background())

	if len(sender.texts) != 1 {
		t.Fatalf("got %d announcements, want 1: %v", len(sender.texts), sender.texts)
	}
	if !strings.Contains(sender.texts[0], "✅ Video is READY!") || !strings.Contains(sender.texts[0], "https://vid/p1.mp4") {
		t.Errorf("announcement = %q", sender.texts[0])
	}

	// The job is now done; a second tick must not announce again.
	w.poll(context.Background())
	if len(sender.texts) != 1 {
		t.Errorf("got %d announcements after second poll, want still 1", len(sender.texts))
	}

	job, err := st.LatestVideoJob()
	if err != nil || job == nil {
		t.Fatalf("latest job: %v, %v", job, err)
	}
	if job.Status != store.VideoDone {
		t.Errorf("status = %q, want done", job.Status)
	}
}

func TestRenderWatcher_LeavesRunningJobsPending(t *testing.T) {
	st := openWatcherStore(t)
	if err := st.CreateVideoJob(store.VideoJob{ProjectID: "p2", Subject: "dogs", Channel: "telegram", ChatID: "7"}); err != nil {
		t.Fatal(err)
	}

	video := &fakeVideo{statuses: map[string]*collab.RenderStatus{
		"p2": {Status: "running"},
	}}
	sender := &captureSender{}
	w := NewRenderWatcher(video, st, sender, nil)

	w.poll(context.Background())

	if len(sender.texts) != 0 {
		t.Fatalf("announced a running job: %v", sender.texts)
	}
	pending, err := st.PendingVideoJobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestRenderWatcher_MarksErroredJobsFailed(t *testing.T) {
	st := openWatcherStore(t)
	if err := st.CreateVideoJob(store.VideoJob{ProjectID: "p3", Subject: "birds", Channel: "telegram", ChatID: "7"}); err != nil {
		t.Fatal(err)
	}

	video := &fakeVideo{statuses: map[string]*collab.RenderStatus{
		"p3": {Status: "error"},
	}}
	sender := &captureSender{}
	w := NewRenderWatcher(video, st, sender, nil)

	w.poll(context.Background())

	if len(sender.texts) != 1 || !strings.Contains(sender.texts[0], "❌ Video error") {
		t.Fatalf("announcements = %v", sender.texts)
	}
	pending, err := st.PendingVideoJobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}
