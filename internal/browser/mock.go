package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Action records one operation performed on a fake session, for assertions.
type Action struct {
	Op       string
	Selector string
	Value    string
}

// FakeLauncher hands out scripted sessions. When Sessions is non-empty each
// Launch returns the next one; otherwise every Launch returns a fresh
// session scripted by Script.
type FakeLauncher struct {
	mu       sync.Mutex
	Sessions []*FakeSession
	Script   func() *FakeSession
	// LaunchErr makes Launch fail, modeling a browser that will not start.
	LaunchErr error
	// Launched counts how many sessions were handed out.
	Launched int
}

func (l *FakeLauncher) Launch(ctx context.Context) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.Launched++
	if len(l.Sessions) > 0 {
		s := l.Sessions[0]
		l.Sessions = l.Sessions[1:]
		return s, nil
	}
	if l.Script != nil {
		return l.Script(), nil
	}
	return &FakeSession{}, nil
}

// FakeSession is a scripted page. Selectors present in VisibleSet are
// treated as visible; errors are injected per operation name.
type FakeSession struct {
	mu sync.Mutex

	// VisibleSet lists selectors Visible reports true for.
	VisibleSet map[string]bool
	// Page is returned by HTML.
	Page string
	// Qs is returned by Questions.
	Qs []Question
	// Filled and EmptyRequired are returned by Validate.
	Filled        int
	EmptyRequired []string
	// Errs injects an error keyed by operation name (navigate, click,
	// type, select, upload, questions, validate, screenshot).
	Errs map[string]error

	Actions []Action
	Closed  int
}

func (s *FakeSession) record(op, selector, value string) {
	s.Actions = append(s.Actions, Action{Op: op, Selector: selector, Value: value})
}

func (s *FakeSession) fail(op string) error {
	if s.Errs == nil {
		return nil
	}
	return s.Errs[op]
}

func (s *FakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("navigate", "", url)
	return s.fail("navigate")
}

func (s *FakeSession) Visible(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VisibleSet[selector], nil
}

func (s *FakeSession) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("click", selector, "")
	if err := s.fail("click"); err != nil {
		return err
	}
	if !s.VisibleSet[selector] {
		return fmt.Errorf("%w: %s", ErrNotVisible, selector)
	}
	return nil
}

func (s *FakeSession) Type(ctx context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("type", selector, text)
	if err := s.fail("type"); err != nil {
		return err
	}
	if !s.VisibleSet[selector] {
		return fmt.Errorf("%w: %s", ErrNotVisible, selector)
	}
	return nil
}

func (s *FakeSession) Select(ctx context.Context, selector, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("select", selector, option)
	if err := s.fail("select"); err != nil {
		return err
	}
	if !s.VisibleSet[selector] {
		return fmt.Errorf("%w: %s", ErrNotVisible, selector)
	}
	return nil
}

func (s *FakeSession) Upload(ctx context.Context, selector, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("upload", selector, path)
	if err := s.fail("upload"); err != nil {
		return err
	}
	if !s.VisibleSet[selector] {
		return fmt.Errorf("%w: %s", ErrNotVisible, selector)
	}
	return nil
}

func (s *FakeSession) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Page, nil
}

func (s *FakeSession) Questions(ctx context.Context) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("questions"); err != nil {
		return nil, err
	}
	return s.Qs, nil
}

func (s *FakeSession) Validate(ctx context.Context) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("validate"); err != nil {
		return 0, nil, err
	}
	return s.Filled, s.EmptyRequired, nil
}

func (s *FakeSession) Screenshot(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("screenshot", "", path)
	if err := s.fail("screenshot"); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake screenshot"), 0o644)
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed++
	return nil
}
