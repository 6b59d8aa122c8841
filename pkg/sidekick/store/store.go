// Package store provides SQLite persistence for Sidekick: a log of handled
// commands and tracking of in-flight video render jobs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database connection.
type Store struct {
	db *sql.DB
}

// Config holds store configuration.
type Config struct {
	// Path is the database file location.
	Path string `yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Path: "./data/sidekick.db"}
}

// Open opens or creates the SQLite database and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS command_log (
	id         TEXT PRIMARY KEY,
	channel    TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	intent     TEXT NOT NULL,
	ok         INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_log_created ON command_log(created_at);

CREATE TABLE IF NOT EXISTS video_jobs (
	project_id TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	channel    TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	video_url  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_video_jobs_status ON video_jobs(status);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CommandRecord is one handled inbound message.
type CommandRecord struct {
	ID        string
	Channel   string
	ChatID    string
	Intent    string
	OK        bool
	CreatedAt time.Time
}

// RecordCommand appends a command to the log.
func (s *Store) RecordCommand(rec CommandRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO command_log (id, channel, chat_id, intent, ok, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Channel, rec.ChatID, rec.Intent, rec.OK, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// RecentCommands returns the latest handled commands, newest first.
func (s *Store) RecentCommands(limit int) ([]CommandRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, channel, chat_id, intent, ok, created_at FROM command_log ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	var recs []CommandRecord
	for rows.Next() {
		var r CommandRecord
		if err := rows.Scan(&r.ID, &r.Channel, &r.ChatID, &r.Intent, &r.OK, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Video job states.
const (
	VideoPending = "pending"
	VideoDone    = "done"
	VideoFailed  = "failed"
)

// VideoJob tracks a submitted render job and where to announce its result.
type VideoJob struct {
	ProjectID string
	Subject   string
	Channel   string
	ChatID    string
	Status    string
	VideoURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateVideoJob records a newly submitted render job as pending.
func (s *Store) CreateVideoJob(job VideoJob) error {
	now := time.Now()
	if job.Status == "" {
		job.Status = VideoPending
	}
	_, err := s.db.Exec(
		`INSERT INTO video_jobs (project_id, subject, channel, chat_id, status, video_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ProjectID, job.Subject, job.Channel, job.ChatID, job.Status, job.VideoURL, now, now,
	)
	if err != nil {
		return fmt.Errorf("create video job: %w", err)
	}
	return nil
}

// UpdateVideoJob sets the job's status and (optionally) the rendered URL.
func (s *Store) UpdateVideoJob(projectID, status, videoURL string) error {
	_, err := s.db.Exec(
		`UPDATE video_jobs SET status = ?, video_url = ?, updated_at = ? WHERE project_id = ?`,
		status, videoURL, time.Now(), projectID,
	)
	if err != nil {
		return fmt.Errorf("update video job %s: %w", projectID, err)
	}
	return nil
}

// PendingVideoJobs returns unfinished jobs, newest first.
func (s *Store) PendingVideoJobs() ([]VideoJob, error) {
	rows, err := s.db.Query(
		`SELECT project_id, subject, channel, chat_id, status, video_url, created_at, updated_at
		 FROM video_jobs WHERE status = ? ORDER BY created_at DESC`,
		VideoPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending video jobs: %w", err)
	}
	defer rows.Close()

	var jobs []VideoJob
	for rows.Next() {
		var j VideoJob
		if err := rows.Scan(&j.ProjectID, &j.Subject, &j.Channel, &j.ChatID, &j.Status, &j.VideoURL, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan video job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// LatestVideoJob returns the most recently submitted job regardless of state,
// or nil when none exist. Used to resolve "is my video done?" without a
// project ID.
func (s *Store) LatestVideoJob() (*VideoJob, error) {
	row := s.db.QueryRow(
		`SELECT project_id, subject, channel, chat_id, status, video_url, created_at, updated_at
		 FROM video_jobs ORDER BY created_at DESC LIMIT 1`,
	)
	var j VideoJob
	err := row.Scan(&j.ProjectID, &j.Subject, &j.Channel, &j.ChatID, &j.Status, &j.VideoURL, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest video job: %w", err)
	}
	return &j, nil
}
