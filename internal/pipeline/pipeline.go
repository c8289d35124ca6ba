// Package pipeline drives approved jobs through tailoring, form filling,
// and the resulting status transitions. The store stays the only writer of
// job state; the pipeline only asks it for transitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/garnizeh/applyd/internal/adapters"
	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/detect"
	"github.com/garnizeh/applyd/internal/models"
	"github.com/garnizeh/applyd/internal/resume"
	"github.com/garnizeh/applyd/internal/store"
)

// ErrNotApproved indicates the job is not in a processable status.
var ErrNotApproved = errors.New("job is not approved")

// Notifier observes jobs after their final transition of a processing
// pass. Used to mirror state into external trackers.
type Notifier interface {
	JobUpdated(ctx context.Context, job *models.Job)
}

// Outcome summarizes one processing pass over a job.
type Outcome struct {
	JobID    int64
	Final    models.Status
	Attempts int
	DryRun   bool
	Result   *models.FillResult
}

// Results aggregates a queue drain.
type Results struct {
	Processed int
	Succeeded int
	Failed    int
}

// Runner processes jobs one at a time. Serial on purpose: one browser,
// one application in flight, human-scale pacing between jobs.
type Runner struct {
	store    *store.Store
	registry *adapters.Registry
	deps     adapters.Deps
	finder   *resume.Finder
	tailorer resume.Tailorer
	notifier Notifier
	cfg      config.DaemonConfig
	logger   *slog.Logger
	rng      *rand.Rand
}

// Options carries the optional collaborators.
type Options struct {
	Tailorer resume.Tailorer
	Notifier Notifier
	// Rand seeds the inter-job delay jitter; nil uses the clock.
	Rand *rand.Rand
}

func NewRunner(st *store.Store, reg *adapters.Registry, deps adapters.Deps, finder *resume.Finder, cfg config.DaemonConfig, logger *slog.Logger, opts *Options) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		store:    st,
		registry: reg,
		deps:     deps,
		finder:   finder,
		cfg:      cfg,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if opts != nil {
		r.tailorer = opts.Tailorer
		r.notifier = opts.Notifier
		if opts.Rand != nil {
			r.rng = opts.Rand
		}
	}
	return r
}

// ProcessOne runs a single approved job through the pipeline. In dry-run
// mode it resolves the adapter and resume artifact, logs what would
// happen, and writes nothing.
func (r *Runner) ProcessOne(ctx context.Context, id int64, dryRun bool) (*Outcome, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: id %d", store.ErrNotFound, id)
	}
	if job.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: job %d is %s", ErrNotApproved, id, job.Status)
	}

	out := &Outcome{JobID: id, DryRun: dryRun}

	platform := job.Platform
	if platform == "" {
		platform = detect.FromURL(job.URL)
	}
	if !r.registry.Supported(platform) {
		if dryRun {
			r.logger.Info("dry-run: would mark manual", "id", id, "platform", platform)
			out.Final = models.StatusManual
			return out, nil
		}
		reason := fmt.Sprintf("no adapter for platform %q", platform)
		if err := r.store.Transition(ctx, id, models.StatusManual, &store.TransitionOpts{Error: reason}); err != nil {
			return nil, err
		}
		out.Final = models.StatusManual
		r.notify(ctx, id)
		return out, nil
	}

	resumePath, tailored := r.resolveResume(ctx, job, dryRun)

	if dryRun {
		r.logger.Info("dry-run: would fill",
			"id", id, "company", job.Company, "platform", platform,
			"resume", resumePath, "tailored", tailored)
		out.Final = job.Status
		return out, nil
	}

	if tailored {
		// tailoring produced an artifact; walk the tailoring edge so the
		// history shows it
		if err := r.store.Transition(ctx, id, models.StatusTailoring, nil); err != nil {
			return nil, err
		}
		if err := r.store.Transition(ctx, id, models.StatusReady, &store.TransitionOpts{ResumePath: resumePath}); err != nil {
			return nil, err
		}
	} else if resumePath == "" {
		if err := r.store.Transition(ctx, id, models.StatusFailed, &store.TransitionOpts{Error: "no resume artifact found"}); err != nil {
			return nil, err
		}
		out.Final = models.StatusFailed
		r.notify(ctx, id)
		return out, nil
	} else {
		if err := r.store.Transition(ctx, id, models.StatusReady, &store.TransitionOpts{ResumePath: resumePath}); err != nil {
			return nil, err
		}
	}

	if err := r.store.Transition(ctx, id, models.StatusFilling, nil); err != nil {
		return nil, err
	}

	result, attempts := r.fill(ctx, job, platform, resumePath)
	out.Attempts = attempts
	out.Result = result

	// the job never stays in filling: it lands in ready or failed. The
	// terminal transition runs on a cancellation-free context so a shutdown
	// signal mid-attempt cannot strand the job.
	doneCtx := context.WithoutCancel(ctx)
	if result != nil && result.Success {
		opts := &store.TransitionOpts{ScreenshotPath: result.ScreenshotPath}
		if err := r.store.Transition(doneCtx, id, models.StatusReady, opts); err != nil {
			return nil, err
		}
		out.Final = models.StatusReady
	} else {
		opts := &store.TransitionOpts{Error: failureReason(result)}
		if result != nil {
			opts.ScreenshotPath = result.ScreenshotPath
		}
		if err := r.store.Transition(doneCtx, id, models.StatusFailed, opts); err != nil {
			return nil, err
		}
		out.Final = models.StatusFailed
	}

	r.notify(doneCtx, id)
	return out, nil
}

// resolveResume finds the artifact for the job. An artifact already
// recorded on the row wins; otherwise tailoring runs when the collaborator
// is wired and the job carries a description. Tailoring failures degrade
// to the finder.
func (r *Runner) resolveResume(ctx context.Context, job *models.Job, dryRun bool) (string, bool) {
	if job.ResumePath != "" {
		if _, err := os.Stat(job.ResumePath); err == nil {
			return job.ResumePath, false
		}
		r.logger.Warn("recorded resume artifact is gone", "id", job.ID, "path", job.ResumePath)
	}

	if r.cfg.Tailoring && r.tailorer != nil && job.JDText != "" && !dryRun {
		path, err := r.tailorer.Tailor(ctx, job)
		if err == nil && path != "" {
			return path, true
		}
		if err != nil {
			r.logger.Warn("resume tailoring failed, using base resume", "id", job.ID, "error", err)
		}
	}

	path, err := r.finder.FindArtifact(job)
	if err != nil {
		r.logger.Error("no resume artifact", "id", job.ID, "company", job.Company)
		return "", false
	}
	return path, false
}

// fill runs the adapter with retries. Every attempt gets a fresh adapter
// and a fresh browser session; the backoff grows linearly.
func (r *Runner) fill(ctx context.Context, job *models.Job, platform, resumePath string) (*models.FillResult, int) {
	var last *models.FillResult
	attempts := 0

	for attempt := 0; attempt <= r.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
				break
			}
			r.logger.Info("retrying fill", "id", job.ID, "attempt", attempt+1)
		}
		attempts++

		adapter, err := r.registry.New(platform, r.deps)
		if err != nil {
			// unreachable after the Supported check, but belt and braces
			last = &models.FillResult{Error: err.Error()}
			break
		}

		result, err := adapter.Run(ctx, job, resumePath)
		if err != nil {
			r.logger.Error("fill attempt failed", "id", job.ID, "attempt", attempts, "error", err)
			last = &models.FillResult{Error: err.Error()}
			continue
		}
		last = result
		if result.Success {
			r.logger.Info("form filled", "id", job.ID, "company", job.Company, "attempts", attempts)
			return result, attempts
		}
		r.logger.Warn("fill incomplete", "id", job.ID, "attempt", attempts, "error", result.Error)
	}

	return last, attempts
}

// Drain processes approved jobs oldest first, up to max, pausing a
// randomized interval between jobs.
func (r *Runner) Drain(ctx context.Context, max int, dryRun bool) (*Results, error) {
	jobs, err := r.store.Fetch(ctx, models.StatusApproved)
	if err != nil {
		return nil, err
	}

	// Fetch returns newest first; the queue is drained in arrival order
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	if max > 0 && len(jobs) > max {
		jobs = jobs[:max]
	}

	res := &Results{}
	for i, job := range jobs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if i > 0 {
			if err := sleepCtx(ctx, r.interJobDelay()); err != nil {
				return res, err
			}
		}

		out, err := r.ProcessOne(ctx, job.ID, dryRun)
		if err != nil {
			r.logger.Error("process job", "id", job.ID, "error", err)
			res.Processed++
			res.Failed++
			continue
		}
		res.Processed++
		// a manual outcome still needs operator attention; only a job that
		// came out the other side counts as a success
		if out.Final == models.StatusFailed || out.Final == models.StatusManual {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	return res, nil
}

// interJobDelay jitters the pause between jobs inside the configured
// bounds so drains do not tick like a metronome.
func (r *Runner) interJobDelay() time.Duration {
	min, max := r.cfg.JobDelayMin, r.cfg.JobDelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(r.rng.Int63n(int64(max-min)+1))
}

func (r *Runner) notify(ctx context.Context, id int64) {
	if r.notifier == nil {
		return
	}
	job, err := r.store.Get(ctx, id)
	if err != nil || job == nil {
		return
	}
	r.notifier.JobUpdated(ctx, job)
}

func failureReason(result *models.FillResult) string {
	if result == nil {
		return "fill did not run"
	}
	if result.Error != "" {
		return result.Error
	}
	return "form could not be completed"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
