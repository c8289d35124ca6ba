// Package store is the single source of truth for job records. It is the
// only writer of job status; every mutation goes through Add or Transition.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/applyd/internal/db"
	"github.com/garnizeh/applyd/internal/models"
)

var (
	// ErrNotFound indicates the job id does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition indicates the requested edge is not part of the
	// status machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionOpts carries optional fields merged into the row alongside a
// status change. Empty values leave the stored value untouched.
type TransitionOpts struct {
	Error          string
	ResumePath     string
	ScreenshotPath string
}

// Store persists jobs and their form-answer audit log. Writes are
// serialized so a transition is always applied as one unit; reads go
// straight to the database.
type Store struct {
	conn   *db.DB
	logger *slog.Logger

	mu sync.Mutex // serializes writes
}

func New(conn *db.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().Unix()
}

// Add inserts a job in status discovered and returns its id. Adding a URL
// that already exists is a no-op that returns the existing id; the stored
// row keeps its original fields.
func (s *Store) Add(ctx context.Context, company, role, url, platform, jdText, source string) (int64, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, fmt.Errorf("url is required")
	}
	if source == "" {
		source = "manual"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// upsert-by-URL: resolve duplicates to the existing row before trying
	// to insert, so the caller never sees a constraint error
	var existing int64
	err := s.conn.QueryRow(ctx, `SELECT id FROM jobs WHERE url = ?`, url).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return 0, fmt.Errorf("lookup url: %w", err)
	}

	ts := now()
	res, err := s.conn.Exec(ctx,
		`INSERT INTO jobs (company, role, url, platform, jd_text, source, status, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company, role, url, platform, jdText, source, models.StatusDiscovered, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	s.logger.Info("job added",
		"id", id, "company", company, "role", role, "platform", platform, "source", source)
	return id, nil
}

// Transition moves a job to newStatus and bumps updated. submitted is
// stamped exactly when newStatus is submitted. Optional fields from opts
// are merged in; previously set values are only overwritten when a new
// value is provided. The edge must exist in the status machine.
func (s *Store) Transition(ctx context.Context, id int64, newStatus models.Status, opts *TransitionOpts) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getOne(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if !models.CanTransition(cur.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s (job %d)", ErrInvalidTransition, cur.Status, newStatus, id)
	}

	fields := []string{"status = ?", "updated = ?"}
	args := []any{newStatus, now()}
	if opts != nil {
		if opts.Error != "" {
			fields = append(fields, "error = ?")
			args = append(args, opts.Error)
		}
		if opts.ResumePath != "" {
			fields = append(fields, "resume_path = ?")
			args = append(args, opts.ResumePath)
		}
		if opts.ScreenshotPath != "" {
			fields = append(fields, "screenshot_path = ?")
			args = append(args, opts.ScreenshotPath)
		}
	}
	if newStatus == models.StatusSubmitted {
		fields = append(fields, "submitted = ?")
		args = append(args, now())
	}
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE jobs SET %s WHERE id = ?`, strings.Join(fields, ", "))
	if _, err := s.conn.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("transition job %d: %w", id, err)
	}

	s.logger.Info("status transition",
		"id", id, "company", cur.Company, "role", cur.Role, "platform", cur.Platform,
		"from", cur.Status, "to", newStatus)
	return nil
}

// Fetch returns jobs newest-first, optionally filtered by status.
// An empty status returns all jobs.
func (s *Store) Fetch(ctx context.Context, status models.Status) ([]models.Job, error) {
	q := `SELECT id, company, role, url, platform, jd_text, resume_path, screenshot_path, status, error, source, created, updated, submitted FROM jobs`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created DESC, id DESC`

	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// Get returns the job with the given id, or nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*models.Job, error) {
	return s.getOne(ctx, id)
}

func (s *Store) getOne(ctx context.Context, id int64) (*models.Job, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT id, company, role, url, platform, jd_text, resume_path, screenshot_path, status, error, source, created, updated, submitted FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		j         models.Job
		status    string
		submitted sql.NullInt64
	)
	if err := row.Scan(&j.ID, &j.Company, &j.Role, &j.URL, &j.Platform, &j.JDText,
		&j.ResumePath, &j.ScreenshotPath, &status, &j.Error, &j.Source,
		&j.Created, &j.Updated, &submitted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.Status = models.Status(status)
	if submitted.Valid {
		j.Submitted = &submitted.Int64
	}
	return &j, nil
}

// Stats returns the number of jobs per status.
func (s *Store) Stats(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.conn.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out[models.Status(st)] = n
	}
	return out, rows.Err()
}

// RecordAnswer appends one screening-question answer to the audit log.
func (s *Store) RecordAnswer(ctx context.Context, a *models.FormAnswer) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("answer is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.Exec(ctx,
		`INSERT INTO form_answers (job_id, question, answer, source, created) VALUES (?, ?, ?, ?, ?)`,
		a.JobID, a.Question, a.Answer, a.Source, now())
	if err != nil {
		return 0, fmt.Errorf("record answer: %w", err)
	}
	return res.LastInsertId()
}

// AnswersForJob returns the audit log for one job, oldest first.
func (s *Store) AnswersForJob(ctx context.Context, jobID int64) ([]models.FormAnswer, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, job_id, question, answer, source, created FROM form_answers WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("answers for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var out []models.FormAnswer
	for rows.Next() {
		var a models.FormAnswer
		if err := rows.Scan(&a.ID, &a.JobID, &a.Question, &a.Answer, &a.Source, &a.Created); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
