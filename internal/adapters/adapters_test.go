package adapters

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/applyd/internal/answers"
	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/models"
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []models.FormAnswer
}

func (r *fakeRecorder) RecordAnswer(ctx context.Context, a *models.FormAnswer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *a)
	return int64(len(r.records)), nil
}

func testEngine(t *testing.T, f *answers.File) *answers.Engine {
	t.Helper()
	e, err := answers.NewEngine(f, nil, config.EngineConfig{Timeout: time.Second, MinConfidence: 0.5}, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDeps(t *testing.T, launcher browser.Launcher, file *answers.File, rec AnswerRecorder) Deps {
	t.Helper()
	return Deps{
		Launcher: launcher,
		Answers:  testEngine(t, file),
		Recorder: rec,
		Logger:   testLogger(),
	}
}

func writeResume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func actionsByOp(s *browser.FakeSession, op string) []browser.Action {
	var out []browser.Action
	for _, a := range s.Actions {
		if a.Op == op {
			out = append(out, a)
		}
	}
	return out
}

func TestRegistry_UnknownPlatform(t *testing.T) {
	r := NewDefaultRegistry()
	if _, err := r.New("taleo", Deps{}); err == nil || !strings.Contains(err.Error(), "unknown platform") {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestRegistry_Platforms(t *testing.T) {
	r := NewDefaultRegistry()
	got := r.Platforms()
	want := []string{"ashby", "greenhouse", "lever", "workday"}
	if len(got) != len(want) {
		t.Fatalf("platforms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("platforms = %v, want %v", got, want)
		}
	}
	for _, p := range want {
		if !r.Supported(p) {
			t.Fatalf("expected %s supported", p)
		}
	}
}

func TestRegistry_FreshInstancePerNew(t *testing.T) {
	r := NewDefaultRegistry()
	a1, err := r.New("lever", Deps{Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := r.New("lever", Deps{Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Fatal("expected a fresh adapter per New call")
	}
}

func TestGreenhouse_FillsPersonalAndUploads(t *testing.T) {
	sess := &browser.FakeSession{
		VisibleSet: map[string]bool{
			"#first_name":          true,
			"#last_name":           true,
			"#email":               true,
			"#phone":               true,
			`input[type="file"]`:   true,
		},
	}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	file := &answers.File{Personal: map[string]string{
		"first_name": "Ada", "last_name": "Lovelace",
		"email": "ada@example.com", "phone": "555-0100",
	}}
	rec := &fakeRecorder{}
	a, err := NewDefaultRegistry().New("greenhouse", testDeps(t, launcher, file, rec))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 1, Company: "Acme", Role: "Engineer", URL: "https://boards.greenhouse.io/acme/jobs/1"}
	res, err := a.Run(context.Background(), job, writeResume(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	typed := map[string]string{}
	for _, act := range actionsByOp(sess, "type") {
		typed[act.Selector] = act.Value
	}
	if typed["#first_name"] != "Ada" || typed["#last_name"] != "Lovelace" {
		t.Fatalf("name fields not filled: %v", typed)
	}
	if typed["#email"] != "ada@example.com" || typed["#phone"] != "555-0100" {
		t.Fatalf("contact fields not filled: %v", typed)
	}
	if got := actionsByOp(sess, "upload"); len(got) != 1 {
		t.Fatalf("expected one resume upload, got %v", got)
	}
	if sess.Closed == 0 {
		t.Fatal("session must be closed after the attempt")
	}
}

func TestGreenhouse_AnswersScreeningQuestions(t *testing.T) {
	sess := &browser.FakeSession{
		VisibleSet: map[string]bool{"#q_auth": true, "#q_sponsor": true},
		Qs: []browser.Question{
			{Selector: "#q_auth", Label: "Are you legally authorized to work in the United States?", Kind: "select", Options: []string{"Yes", "No"}},
			{Selector: "#q_sponsor", Label: "Will you require visa sponsorship?", Kind: "text"},
			{Selector: "#q_gender", Label: "Gender identity", Kind: "select", Options: []string{"Male", "Female"}},
		},
	}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	file := &answers.File{Lookup: map[string]string{"work_auth": "Yes", "sponsorship": "No"}}
	rec := &fakeRecorder{}
	a, err := NewDefaultRegistry().New("greenhouse", testDeps(t, launcher, file, rec))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 7, Company: "Acme", URL: "https://boards.greenhouse.io/acme/jobs/7"}
	res, err := a.Run(context.Background(), job, writeResume(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sel := actionsByOp(sess, "select")
	if len(sel) != 1 || sel[0].Value != "Yes" {
		t.Fatalf("expected work auth selected Yes, got %v", sel)
	}
	if len(rec.records) != 2 {
		t.Fatalf("expected 2 recorded answers, got %d", len(rec.records))
	}
	// unanswerable demographics question is skipped, not errored
	var skipped bool
	for _, l := range res.Log {
		if l.Level == models.LogSkip && strings.Contains(l.Message, "Gender") {
			skipped = true
		}
	}
	if !skipped {
		t.Fatalf("expected gender question skipped: %+v", res.Log)
	}
}

func TestGreenhouse_RequiredEmptyFails(t *testing.T) {
	sess := &browser.FakeSession{EmptyRequired: []string{"email"}}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	a, err := NewDefaultRegistry().New("greenhouse", testDeps(t, launcher, &answers.File{}, nil))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 2, Company: "Acme", URL: "https://boards.greenhouse.io/acme/jobs/2"}
	res, err := a.Run(context.Background(), job, writeResume(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure when required fields are empty")
	}
	if !strings.Contains(res.Error, "email") {
		t.Fatalf("error should name the empty field: %q", res.Error)
	}
}

func TestLever_NormalizesApplyURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://jobs.lever.co/acme/123", "https://jobs.lever.co/acme/123/apply"},
		{"https://jobs.lever.co/acme/123/", "https://jobs.lever.co/acme/123/apply"},
		{"https://jobs.lever.co/acme/123/apply", "https://jobs.lever.co/acme/123/apply"},
	}
	for _, tc := range cases {
		if got := applyURL(tc.in); got != tc.want {
			t.Fatalf("applyURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLever_NavigatesToApplyForm(t *testing.T) {
	sess := &browser.FakeSession{VisibleSet: map[string]bool{`input[name="name"]`: true}}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	file := &answers.File{Personal: map[string]string{"full_name": "Ada Lovelace"}}
	a, err := NewDefaultRegistry().New("lever", testDeps(t, launcher, file, nil))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 3, Company: "Acme", URL: "https://jobs.lever.co/acme/123"}
	if _, err := a.Run(context.Background(), job, writeResume(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	navs := actionsByOp(sess, "navigate")
	if len(navs) != 1 || navs[0].Value != "https://jobs.lever.co/acme/123/apply" {
		t.Fatalf("expected navigation to /apply, got %v", navs)
	}
	typed := actionsByOp(sess, "type")
	if len(typed) != 1 || typed[0].Value != "Ada Lovelace" {
		t.Fatalf("expected full name typed, got %v", typed)
	}
}

func TestAshby_MatchesFieldsByLabel(t *testing.T) {
	sess := &browser.FakeSession{
		VisibleSet: map[string]bool{"#fn": true, "#em": true, "#cv": true, "#why": true},
		Qs: []browser.Question{
			{Selector: "#fn", Label: "First Name", Kind: "text"},
			{Selector: "#em", Label: "Email Address", Kind: "text"},
			{Selector: "#cv", Label: "Resume", Kind: "file"},
			{Selector: "#why", Label: "Why do you want to join?", Kind: "textarea"},
		},
	}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	file := &answers.File{
		Personal: map[string]string{"first_name": "Ada", "email": "ada@example.com"},
		Custom:   map[string]string{"Why do you want to join": "Because the mission fits."},
	}
	rec := &fakeRecorder{}
	a, err := NewDefaultRegistry().New("ashby", testDeps(t, launcher, file, rec))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 4, Company: "Acme", URL: "https://jobs.ashbyhq.com/acme/xyz"}
	res, err := a.Run(context.Background(), job, writeResume(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success: %+v", res)
	}

	typed := map[string]string{}
	for _, act := range actionsByOp(sess, "type") {
		typed[act.Selector] = act.Value
	}
	if typed["#fn"] != "Ada" || typed["#em"] != "ada@example.com" {
		t.Fatalf("label-matched fields not filled: %v", typed)
	}
	if typed["#why"] != "Because the mission fits." {
		t.Fatalf("screening question not answered: %v", typed)
	}
	if ups := actionsByOp(sess, "upload"); len(ups) != 1 || ups[0].Selector != "#cv" {
		t.Fatalf("expected upload via file question, got %v", ups)
	}
	if len(rec.records) != 1 {
		t.Fatalf("only the screening answer is recorded, got %d", len(rec.records))
	}
}

func TestWorkday_WalksWizardPages(t *testing.T) {
	sess := &browser.FakeSession{
		VisibleSet: map[string]bool{
			`input[data-automation-id="legalNameSection_firstName"]`:       true,
			`button[data-automation-id="bottom-navigation-next-button"]`:   true,
		},
	}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	file := &answers.File{Personal: map[string]string{"first_name": "Ada"}}
	a, err := NewDefaultRegistry().New("workday", testDeps(t, launcher, file, nil))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 5, Company: "Acme", URL: "https://acme.wd1.myworkdayjobs.com/job/1"}
	if _, err := a.Run(context.Background(), job, writeResume(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// next stays visible, so the walk hits the page cap
	clicks := 0
	for _, act := range actionsByOp(sess, "click") {
		if act.Selector == `button[data-automation-id="bottom-navigation-next-button"]` {
			clicks++
		}
	}
	if clicks != 8 {
		t.Fatalf("expected 8 next clicks at the page cap, got %d", clicks)
	}
}

func TestWorkday_AuthWithoutEmailFails(t *testing.T) {
	sess := &browser.FakeSession{
		VisibleSet: map[string]bool{`input[type="email"]`: true},
	}
	launcher := &browser.FakeLauncher{Sessions: []*browser.FakeSession{sess}}
	a, err := NewDefaultRegistry().New("workday", testDeps(t, launcher, &answers.File{}, nil))
	if err != nil {
		t.Fatal(err)
	}

	job := &models.Job{ID: 6, Company: "Acme", URL: "https://acme.wd1.myworkdayjobs.com/job/2"}
	if _, err := a.Run(context.Background(), job, writeResume(t)); err == nil {
		t.Fatal("expected session-level failure when auth needs an email")
	}
	if sess.Closed == 0 {
		t.Fatal("session must be closed on failure")
	}
}

func TestRun_LaunchFailureIsSessionLevel(t *testing.T) {
	launcher := &browser.FakeLauncher{LaunchErr: os.ErrDeadlineExceeded}
	a, err := NewDefaultRegistry().New("lever", testDeps(t, launcher, &answers.File{}, nil))
	if err != nil {
		t.Fatal(err)
	}
	job := &models.Job{ID: 9, Company: "Acme", URL: "https://jobs.lever.co/acme/9"}
	if _, err := a.Run(context.Background(), job, "r.pdf"); err == nil {
		t.Fatal("expected launch failure to surface as error")
	}
}
