// Package browser provides the headless Chrome session backing page
// interactions via chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrSessionClosed indicates the browsing session has been torn down.
var ErrSessionClosed = errors.New("browser session closed")

// Config controls the headless session.
type Config struct {
	UserAgent         string
	Headless          bool
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	NavigationQPS     float64
	WindowWidth       int
	WindowHeight      int
}

func (c *Config) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 15 * time.Second
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1366
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 900
	}
}

// Session is one long-lived browser tab. The harvesting pipeline is
// sequential on purpose: a single tab mimics one viewer and keeps the
// rendered-state checks meaningful. Session implements harvest.Page.
type Session struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	limiter     *rate.Limiter
	logger      *zap.Logger
	cfg         Config
}

// NewSession launches headless Chrome and opens the working tab.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	cfg.applyDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	warmup := chromedp.Tasks{network.Enable()}
	if cfg.UserAgent != "" {
		warmup = append(warmup, emulation.SetUserAgentOverride(cfg.UserAgent))
	}
	if err := chromedp.Run(tabCtx, warmup); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.NavigationQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.NavigationQPS), 1)
	}

	return &Session{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		limiter:     limiter,
		logger:      logger,
		cfg:         cfg,
	}, nil
}

// Close tears down the tab and the allocator.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.tabCancel()
	s.allocCancel()
	return nil
}

// run executes actions against the tab, bounded by timeout and the caller's
// context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.tabCtx.Err() != nil {
		return ErrSessionClosed
	}
	taskCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()
	return chromedp.Run(taskCtx, actions...)
}

// Navigate loads url, honoring the navigation rate budget, and waits for the
// body to be parsed.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("navigation rate limit: %w", err)
		}
	}
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Evaluate runs js in the page and stores its JSON result in out. A nil out
// discards the result.
func (s *Session) Evaluate(ctx context.Context, js string, out any) error {
	var action chromedp.Action
	if out == nil {
		var discard any
		action = chromedp.Evaluate(js, &discard)
	} else {
		action = chromedp.Evaluate(js, out)
	}
	if err := s.run(ctx, s.cfg.ActionTimeout, action); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// QueryText returns the trimmed text of the first node matching selector.
// Absence within the timeout is reported as ok=false, not an error.
func (s *Session) QueryText(ctx context.Context, selector string, timeout time.Duration) (string, bool) {
	var text string
	err := s.run(ctx, timeout,
		chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.AtLeast(0)),
	)
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}

// WaitFunc polls js until it evaluates truthy or the timeout elapses.
func (s *Session) WaitFunc(ctx context.Context, js string, timeout time.Duration) error {
	var res bool
	err := s.run(ctx, timeout,
		chromedp.Poll(js, &res, chromedp.WithPollingInterval(200*time.Millisecond)),
	)
	if err != nil {
		return fmt.Errorf("wait for condition: %w", err)
	}
	return nil
}

// WaitVisible blocks until selector matches a visible node.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	return nil
}

// ScrollBy scrolls the viewport by the given deltas.
func (s *Session) ScrollBy(ctx context.Context, dx, dy int) error {
	js := fmt.Sprintf(`window.scrollBy(%d, %d); true`, dx, dy)
	var done bool
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &done)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// Content returns the current outer HTML of the document.
func (s *Session) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Screenshot captures the viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return png, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
