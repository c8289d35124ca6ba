package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/garnizeh/applyd/internal/config"
)

// ChromeLauncher opens sessions on a locally installed Chrome or Chromium.
// Each Launch starts a fresh browser process so sessions never share
// cookies or page state.
type ChromeLauncher struct {
	cfg config.BrowserConfig
}

func NewChromeLauncher(cfg config.BrowserConfig) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.WindowSize(1440, 900),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// an empty Run forces the browser process to start now, so launch
	// failures surface here instead of on the first Navigate
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s := &chromeSession{ctx: tabCtx, cfg: l.cfg}
	s.cancel = func() {
		tabCancel()
		allocCancel()
	}
	return s, nil
}

type chromeSession struct {
	ctx    context.Context
	cfg    config.BrowserConfig
	cancel func()
	once   sync.Once
}

// run executes chromedp actions against the tab, bounded by the page
// timeout and by the caller's context.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.PageLoadWait),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

const visibleJS = `(function(sel){
	const el = document.querySelector(sel);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	const r = el.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
})(%s)`

func (s *chromeSession) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(visibleJS, strconv.Quote(selector)), &visible))
	if err != nil {
		return false, err
	}
	return visible, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	// "container >> label" addresses a choice inside a radio group
	if container, label, ok := strings.Cut(selector, " >> "); ok {
		return s.clickOption(ctx, container, label)
	}

	visible, err := s.Visible(ctx, selector)
	if err != nil {
		return err
	}
	if !visible {
		return ErrNotVisible
	}
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

const clickOptionJS = `(function(sel, want){
	const root = document.querySelector(sel) || document;
	want = want.trim().toLowerCase();
	const inputs = root.querySelectorAll('input[type="radio"], input[type="checkbox"]');
	for (const input of inputs) {
		let text = '';
		const label = input.closest('label') ||
			(input.id && document.querySelector('label[for="' + input.id + '"]'));
		if (label) text = label.textContent;
		if (!text) text = input.value || '';
		text = text.trim().toLowerCase();
		if (text === want || text.includes(want) || want.includes(text)) {
			input.click();
			return true;
		}
	}
	return false;
})(%s, %s)`

func (s *chromeSession) clickOption(ctx context.Context, container, label string) error {
	var clicked bool
	js := fmt.Sprintf(clickOptionJS, strconv.Quote(container), strconv.Quote(label))
	if err := s.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return ErrNotVisible
	}
	return nil
}

func (s *chromeSession) Type(ctx context.Context, selector, text string) error {
	visible, err := s.Visible(ctx, selector)
	if err != nil {
		return err
	}
	if !visible {
		return ErrNotVisible
	}
	return s.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

const selectJS = `(function(sel, want){
	const el = document.querySelector(sel);
	if (!el || el.tagName !== 'SELECT') return false;
	want = want.trim().toLowerCase();
	for (const opt of el.options) {
		const text = opt.text.trim().toLowerCase();
		if (text === want || text.includes(want) || want.includes(text)) {
			el.value = opt.value;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
})(%s, %s)`

func (s *chromeSession) Select(ctx context.Context, selector, option string) error {
	var picked bool
	js := fmt.Sprintf(selectJS, strconv.Quote(selector), strconv.Quote(option))
	if err := s.run(ctx, chromedp.Evaluate(js, &picked)); err != nil {
		return err
	}
	if !picked {
		return ErrNotVisible
	}
	return nil
}

func (s *chromeSession) Upload(ctx context.Context, selector, path string) error {
	// file inputs are routinely hidden behind styled buttons, so only
	// existence is checked, not visibility
	var exists bool
	js := fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(selector))
	if err := s.run(ctx, chromedp.Evaluate(js, &exists)); err != nil {
		return err
	}
	if !exists {
		return ErrNotVisible
	}
	return s.run(ctx, chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery))
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// questionsJS walks the form controls on the page and emits one entry per
// question. Radio groups collapse into a single entry keyed by name.
const questionsJS = `(function(){
	function labelFor(el) {
		if (el.id) {
			const lab = document.querySelector('label[for="' + el.id + '"]');
			if (lab) return lab.textContent.trim();
		}
		const wrap = el.closest('label');
		if (wrap) return wrap.textContent.trim();
		return el.getAttribute('aria-label') || el.getAttribute('placeholder') || el.name || '';
	}
	function selectorFor(el) {
		if (el.id) return '#' + CSS.escape(el.id);
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		return '';
	}
	const out = [];
	const seenRadioGroups = {};
	const controls = document.querySelectorAll('input, textarea, select');
	for (const el of controls) {
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (type === 'hidden' || type === 'submit' || type === 'button') continue;
		const sel = selectorFor(el);
		if (!sel) continue;

		let kind = 'text';
		let options = [];
		if (el.tagName === 'TEXTAREA') {
			kind = 'textarea';
		} else if (el.tagName === 'SELECT') {
			kind = 'select';
			options = Array.from(el.options).map(o => o.text.trim()).filter(t => t);
		} else if (type === 'radio') {
			if (el.name) {
				if (seenRadioGroups[el.name]) continue;
				seenRadioGroups[el.name] = true;
			}
			kind = 'radio';
			const group = el.name ?
				document.querySelectorAll('input[type="radio"][name="' + el.name + '"]') : [el];
			options = Array.from(group).map(labelFor).filter(t => t);
		} else if (type === 'checkbox') {
			kind = 'checkbox';
		} else if (type === 'file') {
			kind = 'file';
		}

		out.push({
			Selector: sel,
			Label: labelFor(el),
			Kind: kind,
			Options: options,
			Required: el.required || el.getAttribute('aria-required') === 'true',
		});
	}
	return out;
})()`

func (s *chromeSession) Questions(ctx context.Context) ([]Question, error) {
	var qs []Question
	if err := s.run(ctx, chromedp.Evaluate(questionsJS, &qs)); err != nil {
		return nil, fmt.Errorf("scrape questions: %w", err)
	}
	return qs, nil
}

const validateJS = `(function(){
	function labelFor(el) {
		if (el.id) {
			const lab = document.querySelector('label[for="' + el.id + '"]');
			if (lab) return lab.textContent.trim();
		}
		const wrap = el.closest('label');
		if (wrap) return wrap.textContent.trim();
		return el.name || el.id || 'unnamed field';
	}
	let filled = 0;
	const empty = [];
	const seenRadioGroups = {};
	const controls = document.querySelectorAll('input, textarea, select');
	for (const el of controls) {
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (type === 'hidden' || type === 'submit' || type === 'button') continue;

		let has;
		if (type === 'radio') {
			if (el.name) {
				if (seenRadioGroups[el.name]) continue;
				seenRadioGroups[el.name] = true;
				has = document.querySelector('input[type="radio"][name="' + el.name + '"]:checked') !== null;
			} else {
				has = el.checked;
			}
		} else if (type === 'checkbox') {
			has = el.checked;
		} else if (type === 'file') {
			has = el.files && el.files.length > 0;
		} else {
			has = (el.value || '').trim() !== '';
		}

		if (has) {
			filled++;
		} else if (el.required || el.getAttribute('aria-required') === 'true') {
			empty.push(labelFor(el));
		}
	}
	return {Filled: filled, Empty: empty};
})()`

func (s *chromeSession) Validate(ctx context.Context) (int, []string, error) {
	var res struct {
		Filled int
		Empty  []string
	}
	if err := s.run(ctx, chromedp.Evaluate(validateJS, &res)); err != nil {
		return 0, nil, fmt.Errorf("validate form: %w", err)
	}
	return res.Filled, res.Empty, nil
}

func (s *chromeSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *chromeSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}
