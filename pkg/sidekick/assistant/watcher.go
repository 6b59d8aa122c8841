package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"sidekick/pkg/sidekick/collab"
	"sidekick/pkg/sidekick/store"
)

// RenderWatcher polls pending video render jobs on a cron schedule and
// announces completed videos to the chat that requested them. Each job is
// announced at most once: the store transition to done happens before the
// announcement is attempted on the next tick.
type RenderWatcher struct {
	video  collab.Video
	store  *store.Store
	sender Sender
	logger *slog.Logger

	cron *cron.Cron
}

// NewRenderWatcher creates a watcher. The store and video collaborator are
// required; without them there is nothing to poll.
func NewRenderWatcher(video collab.Video, st *store.Store, sender Sender, logger *slog.Logger) *RenderWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderWatcher{
		video:  video,
		store:  st,
		sender: sender,
		logger: logger.With("component", "render-watcher"),
	}
}

// Start schedules the poll loop. schedule is a cron spec ("@every 2m").
func (w *RenderWatcher) Start(ctx context.Context, schedule string) error {
	if w.video == nil || w.store == nil {
		return fmt.Errorf("render watcher requires a video collaborator and a store")
	}
	if schedule == "" {
		schedule = "@every 2m"
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(schedule, func() { w.poll(ctx) }); err != nil {
		return fmt.Errorf("invalid watcher schedule %q: %w", schedule, err)
	}
	w.cron.Start()
	w.logger.Info("render watcher started", "schedule", schedule)
	return nil
}

// Stop halts the poll loop. Safe to call when never started.
func (w *RenderWatcher) Stop() {
	if w.cron != nil {
		w.cron.Stop()
	}
}

// poll checks every pending job once.
func (w *RenderWatcher) poll(ctx context.Context) {
	jobs, err := w.store.PendingVideoJobs()
	if err != nil {
		w.logger.Error("listing pending video jobs failed", "error", err)
		return
	}
	for _, job := range jobs {
		w.check(ctx, job)
	}
}

func (w *RenderWatcher) check(ctx context.Context, job store.VideoJob) {
	status, err := w.video.Status(ctx, job.ProjectID)
	if err != nil {
		// Upstream hiccups are expected; the next tick retries.
		w.logger.Warn("render status check failed", "project_id", job.ProjectID, "error", err)
		return
	}

	switch {
	case status.Done():
		// Mark done before announcing so a send failure cannot cause the
		// announcement to repeat forever.
		if err := w.store.UpdateVideoJob(job.ProjectID, store.VideoDone, status.URL); err != nil {
			w.logger.Error("marking video job done failed", "project_id", job.ProjectID, "error", err)
			return
		}
		dest := Destination{Channel: job.Channel, ChatID: job.ChatID}
		msg := fmt.Sprintf("✅ Video is READY!\n[Watch Video](%s)", status.URL)
		if err := w.sender.Send(ctx, dest, msg); err != nil {
			w.logger.Warn("video ready announcement failed", "project_id", job.ProjectID, "error", err)
		}
		w.logger.Info("video render completed", "project_id", job.ProjectID)

	case status.Status == "error":
		if err := w.store.UpdateVideoJob(job.ProjectID, store.VideoFailed, ""); err != nil {
			w.logger.Error("marking video job failed", "project_id", job.ProjectID, "error", err)
			return
		}
		dest := Destination{Channel: job.Channel, ChatID: job.ChatID}
		msg := fmt.Sprintf("❌ Video error: render failed for '%s'", job.Subject)
		if err := w.sender.Send(ctx, dest, msg); err != nil {
			w.logger.Warn("video failure announcement failed", "project_id", job.ProjectID, "error", err)
		}

	default:
		w.logger.Debug("video still rendering", "project_id", job.ProjectID, "status", status.Status)
	}
}
