package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/models"
)

// base carries the shared fill mechanics every platform adapter uses.
type base struct {
	deps     Deps
	platform string
}

func (b *base) Platform() string {
	return b.platform
}

func (b *base) pause(ctx context.Context) {
	if b.deps.Pacing != nil {
		_ = b.deps.Pacing.Sleep(ctx)
	}
}

// firstVisible returns the first selector that resolves to a visible
// element.
func firstVisible(ctx context.Context, sess browser.Session, selectors ...string) (string, bool) {
	for _, sel := range selectors {
		if ok, err := sess.Visible(ctx, sel); err == nil && ok {
			return sel, true
		}
	}
	return "", false
}

// fillField types value into the first visible selector. Empty values and
// absent fields are logged and skipped; they are not failures.
func (b *base) fillField(ctx context.Context, sess browser.Session, res *models.FillResult, value string, selectors ...string) {
	if value == "" {
		return
	}
	sel, ok := firstVisible(ctx, sess, selectors...)
	if !ok {
		res.Append(models.LogInfo, fmt.Sprintf("field not found: %s", selectors[0]))
		return
	}
	if err := sess.Type(ctx, sel, value); err != nil {
		res.Append(models.LogError, fmt.Sprintf("type %s: %v", sel, err))
		return
	}
	res.Append(models.LogOK, "filled "+sel)
	b.pause(ctx)
}

// uploadResume attaches the PDF to the first visible file input.
func (b *base) uploadResume(ctx context.Context, sess browser.Session, res *models.FillResult, resumePath string, selectors ...string) bool {
	if resumePath == "" {
		res.Append(models.LogError, "no resume artifact to upload")
		return false
	}
	if _, err := os.Stat(resumePath); err != nil {
		res.Append(models.LogError, "resume not found: "+resumePath)
		return false
	}
	sel, ok := firstVisible(ctx, sess, selectors...)
	if !ok {
		res.Append(models.LogError, "resume upload field not found")
		return false
	}
	if err := sess.Upload(ctx, sel, resumePath); err != nil {
		res.Append(models.LogError, fmt.Sprintf("upload resume: %v", err))
		return false
	}
	res.Append(models.LogOK, "uploaded resume "+filepath.Base(resumePath))
	b.pause(ctx)
	return true
}

// matchOption picks the option that overlaps the answer text, substring
// match in either direction, case insensitive.
func matchOption(answer string, options []string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return "", false
	}
	for _, opt := range options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o == "" {
			continue
		}
		if strings.Contains(o, a) || strings.Contains(a, o) {
			return opt, true
		}
	}
	return "", false
}

func affirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// answerQuestions resolves every scraped screening question and applies
// the answer to its input. Skipped questions are logged, not fatal.
func (b *base) answerQuestions(ctx context.Context, sess browser.Session, job *models.Job, res *models.FillResult) {
	qs, err := sess.Questions(ctx)
	if err != nil {
		res.Append(models.LogError, fmt.Sprintf("scrape questions: %v", err))
		return
	}

	for _, q := range qs {
		if q.Label == "" {
			continue
		}
		b.answerOne(ctx, sess, job, res, q)
	}
}

func (b *base) answerOne(ctx context.Context, sess browser.Session, job *models.Job, res *models.FillResult, q browser.Question) {
	a := b.deps.Answers.Resolve(ctx, q.Label, job.Company, job.Role, job.JDText)
	if a.Source == "skip" {
		res.Append(models.LogSkip, "skipped: "+truncate(q.Label, 50))
		return
	}

	var err error
	switch q.Kind {
	case "select", "radio":
		opt, ok := matchOption(a.Text, q.Options)
		if !ok {
			res.Append(models.LogSkip, "no matching option: "+truncate(q.Label, 40))
			return
		}
		if q.Kind == "select" {
			err = sess.Select(ctx, q.Selector, opt)
		} else {
			err = sess.Click(ctx, q.Selector+" >> "+opt)
		}
	case "checkbox":
		if !affirmative(a.Text) {
			res.Append(models.LogSkip, "left unchecked: "+truncate(q.Label, 40))
			return
		}
		err = sess.Click(ctx, q.Selector)
	default:
		// text and textarea
		err = sess.Type(ctx, q.Selector, a.Text)
	}
	if err != nil {
		res.Append(models.LogError, fmt.Sprintf("answer %q: %v", truncate(q.Label, 40), err))
		return
	}

	res.Append(models.LogAnswer, fmt.Sprintf("[%s] %s", a.Source, truncate(q.Label, 40)))
	b.record(ctx, job, q.Label, a.Text, a.Source)
	b.pause(ctx)
}

func (b *base) record(ctx context.Context, job *models.Job, question, answer, source string) {
	if b.deps.Recorder == nil {
		return
	}
	fa := &models.FormAnswer{JobID: job.ID, Question: question, Answer: answer, Source: source}
	if _, err := b.deps.Recorder.RecordAnswer(ctx, fa); err != nil {
		b.deps.Logger.Error("record answer", "job_id", job.ID, "error", err)
	}
}

// finalize validates the form and captures a screenshot. Success means no
// required input was left empty.
func (b *base) finalize(ctx context.Context, sess browser.Session, job *models.Job, res *models.FillResult) {
	filled, emptyRequired, err := sess.Validate(ctx)
	if err != nil {
		res.Append(models.LogError, fmt.Sprintf("validate form: %v", err))
		res.Error = "form validation failed: " + err.Error()
		return
	}
	res.Validation = &models.Validation{FilledCount: filled, EmptyRequired: emptyRequired}
	res.Success = len(emptyRequired) == 0
	if !res.Success {
		res.Error = fmt.Sprintf("%d required fields left empty: %s",
			len(emptyRequired), strings.Join(emptyRequired, ", "))
	}

	if b.deps.ScreenshotDir != "" {
		if err := os.MkdirAll(b.deps.ScreenshotDir, 0o755); err == nil {
			path := filepath.Join(b.deps.ScreenshotDir,
				fmt.Sprintf("job-%d-%d.png", job.ID, time.Now().Unix()))
			if err := sess.Screenshot(ctx, path); err == nil {
				res.ScreenshotPath = path
			} else {
				res.Append(models.LogError, fmt.Sprintf("screenshot: %v", err))
			}
		}
	}
}

// open launches a session and navigates it to the URL. Both failures are
// session level.
func (b *base) open(ctx context.Context, url string) (browser.Session, error) {
	sess, err := b.deps.Launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	if err := sess.Navigate(ctx, url); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return sess, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// notVisible reports whether the error only means the element is absent.
func notVisible(err error) bool {
	return errors.Is(err, browser.ErrNotVisible)
}
