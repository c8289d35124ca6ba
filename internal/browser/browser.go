// Package browser abstracts the automation surface adapters drive. The
// production launcher wraps a real browser; tests use the scripted fake in
// this package. Adapters only ever see the Session interface.
package browser

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/garnizeh/applyd/internal/config"
)

// ErrNotVisible indicates no element matching the selector is visible.
var ErrNotVisible = errors.New("element not visible")

// Question is one screening question scraped from an application form.
type Question struct {
	// Selector addresses the input element to fill.
	Selector string
	// Label is the visible question text.
	Label string
	// Kind is the input kind: text, textarea, select, radio, checkbox, file.
	Kind string
	// Options holds the choices for select and radio inputs.
	Options []string
	// Required marks questions the form will not submit without.
	Required bool
}

// Launcher opens browser sessions. A fresh session is opened per fill
// attempt so retries never inherit half-filled page state.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one live page the adapter drives. Implementations return an
// error when the page or element cannot be operated; ErrNotVisible is used
// for selectors that resolve to nothing interactable.
type Session interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Visible reports whether a selector matches a visible element.
	Visible(ctx context.Context, selector string) (bool, error)
	// Click clicks the first visible element matching the selector.
	Click(ctx context.Context, selector string) error
	// Type fills the element with text, simulating keystrokes.
	Type(ctx context.Context, selector, text string) error
	// Select picks an option by visible text on a select element.
	Select(ctx context.Context, selector, option string) error
	// Upload attaches a local file to a file input.
	Upload(ctx context.Context, selector, path string) error
	// HTML returns the current page markup.
	HTML(ctx context.Context) (string, error)
	// Questions scrapes the screening questions present on the page.
	Questions(ctx context.Context) ([]Question, error)
	// Validate counts filled inputs and names the required inputs still
	// left empty.
	Validate(ctx context.Context) (filled int, emptyRequired []string, err error)
	// Screenshot writes a capture of the page to path.
	Screenshot(ctx context.Context, path string) error
	// Close tears the session down. Safe to call more than once.
	Close() error
}

// Pacing spaces out browser actions so a fill session looks like a person
// working through a form rather than a script.
type Pacing struct {
	min    time.Duration
	max    time.Duration
	typing time.Duration
	rng    *rand.Rand
}

// NewPacing builds pacing from browser config. A nil source of randomness
// is seeded from the clock.
func NewPacing(cfg config.BrowserConfig, rng *rand.Rand) *Pacing {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	min, max := cfg.MinDelay, cfg.MaxDelay
	if max < min {
		max = min
	}
	return &Pacing{min: min, max: max, typing: cfg.TypingDelay, rng: rng}
}

// Delay returns a randomized pause in [min, max].
func (p *Pacing) Delay() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + time.Duration(p.rng.Int63n(int64(p.max-p.min)+1))
}

// Typing is the per-keystroke delay sessions should honor.
func (p *Pacing) Typing() time.Duration {
	return p.typing
}

// Sleep pauses for a randomized delay, returning early when the context is
// canceled.
func (p *Pacing) Sleep(ctx context.Context) error {
	t := time.NewTimer(p.Delay())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
