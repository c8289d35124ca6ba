// Package adapters implements per-platform form fillers behind a common
// contract. Each adapter drives one browser session through one fill
// attempt; the pipeline owns retries and status transitions.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/garnizeh/applyd/internal/answers"
	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/models"
)

// ErrUnknownPlatform indicates no adapter is registered for the platform.
var ErrUnknownPlatform = errors.New("unknown platform")

// AnswerRecorder persists screening answers for auditability. The store
// satisfies it.
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, a *models.FormAnswer) (int64, error)
}

// Deps are the collaborators an adapter needs. Recorder may be nil; the
// answer audit log is then skipped.
type Deps struct {
	Launcher      browser.Launcher
	Answers       *answers.Engine
	Recorder      AnswerRecorder
	Pacing        *browser.Pacing
	ScreenshotDir string
	Logger        *slog.Logger
}

// SiteAdapter fills one application form. Run returns an error only for
// session-level failures (browser would not start, navigation failed); a
// form that could not be completed comes back as a result with
// Success=false. An adapter instance serves exactly one attempt.
type SiteAdapter interface {
	Platform() string
	Run(ctx context.Context, job *models.Job, resumePath string) (*models.FillResult, error)
}

// Factory builds a fresh adapter for one attempt.
type Factory func(deps Deps) SiteAdapter

// Registry maps platform names to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry with every built-in adapter.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("greenhouse", func(deps Deps) SiteAdapter { return newGreenhouse(deps) })
	r.Register("lever", func(deps Deps) SiteAdapter { return newLever(deps) })
	r.Register("ashby", func(deps Deps) SiteAdapter { return newAshby(deps) })
	r.Register("workday", func(deps Deps) SiteAdapter { return newWorkday(deps) })
	return r
}

func (r *Registry) Register(platform string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[platform] = f
}

// New builds a fresh adapter for the platform.
func (r *Registry) New(platform string, deps Deps) (SiteAdapter, error) {
	r.mu.RLock()
	f, ok := r.factories[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return f(deps), nil
}

// Supported reports whether an adapter exists for the platform.
func (r *Registry) Supported(platform string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[platform]
	return ok
}

// Platforms lists registered platforms, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
