package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/garnizeh/applyd/internal/adapters"
	"github.com/garnizeh/applyd/internal/answers"
	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/db"
	"github.com/garnizeh/applyd/internal/models"
	"github.com/garnizeh/applyd/internal/pipeline"
	"github.com/garnizeh/applyd/internal/resume"
	"github.com/garnizeh/applyd/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testScheduler(t *testing.T, cfg config.DaemonConfig) (*Scheduler, *store.Store) {
	t.Helper()
	ctx := context.Background()

	conn, err := db.New(ctx, ":memory:", testLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(conn, testLogger())

	eng, err := answers.NewEngine(&answers.File{}, nil, config.EngineConfig{Timeout: time.Second}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	launcher := &browser.FakeLauncher{Script: func() *browser.FakeSession {
		return &browser.FakeSession{}
	}}
	deps := adapters.Deps{Launcher: launcher, Answers: eng, Recorder: st, Logger: testLogger()}

	dir := t.TempDir()
	pdf := filepath.Join(dir, "rendercv_output", "cv.pdf")
	if err := os.MkdirAll(filepath.Dir(pdf), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := pipeline.NewRunner(st, adapters.NewDefaultRegistry(), deps, resume.NewFinder(dir), cfg, testLogger(), nil)
	return New(runner, st, cfg, false, testLogger()), st
}

func TestRunOnce_EmptyQueue(t *testing.T) {
	s, _ := testScheduler(t, config.DaemonConfig{MaxPerRun: 5, RetryBackoff: time.Millisecond})

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Processed != 0 {
		t.Fatalf("empty queue processed %d jobs", res.Processed)
	}
}

func TestRunOnce_DrainsApproved(t *testing.T) {
	s, st := testScheduler(t, config.DaemonConfig{MaxPerRun: 5, Retries: 0, RetryBackoff: time.Millisecond})
	ctx := context.Background()

	id, err := st.Add(ctx, "Acme", "Engineer", "https://boards.greenhouse.io/acme/jobs/1", "", "", "manual")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Transition(ctx, id, models.StatusApproved, nil); err != nil {
		t.Fatal(err)
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Processed != 1 || res.Succeeded != 1 {
		t.Fatalf("unexpected results: %+v", res)
	}

	job, err := st.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != models.StatusReady {
		t.Fatalf("job status = %s, want ready", job.Status)
	}
}

func TestRun_StopsOnCancelWithinASecond(t *testing.T) {
	s, _ := testScheduler(t, config.DaemonConfig{Interval: time.Hour, MaxPerRun: 5, RetryBackoff: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("cancellation took %v, want about a second", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}
