// Package portal drives one headless Chrome session against the SER portal.
//
// A Session owns exactly one allocator and one browser context. Sessions are
// never shared between case files; callers open one per worker and Close it
// on every exit path.
package portal

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config describes how to reach the portal and how long to wait for it.
type Config struct {
	BaseURL      string
	QueryURL     string
	LoginURL     string
	PostLoginURL string
	CookieDomain string
	Variant      Variant
	Headless     bool

	AuthTimeout       time.Duration
	NavigationTimeout time.Duration
	Settle            time.Duration
	DownloadTimeout   time.Duration

	Selectors Selectors
}

// DefaultConfig returns the timeouts used against the production portal.
func DefaultConfig() Config {
	return Config{
		Variant:           VariantText,
		Headless:          true,
		AuthTimeout:       45 * time.Second,
		NavigationTimeout: 30 * time.Second,
		Settle:            3 * time.Second,
		DownloadTimeout:   60 * time.Second,
		Selectors:         DefaultSelectors,
	}
}

// Session is an isolated browser bound to one case file pipeline.
type Session struct {
	cfg    Config
	logger *zap.Logger

	ctx           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	staging   string
	downloads chan downloadEvent

	closeOnce sync.Once
}

// Open launches a browser and prepares it to accept downloads into a private
// staging directory.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.Selectors.Categories == nil {
		cfg.Selectors = DefaultSelectors
	}

	staging, err := os.MkdirTemp("", "fur-downloads-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create download staging dir: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1600, 900),
		)...,
	)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
	)

	s := &Session{
		cfg:           cfg,
		logger:        logger,
		ctx:           browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		staging:       staging,
		downloads:     make(chan downloadEvent, 32),
	}

	chromedp.ListenTarget(browserCtx, s.onEvent)

	err = chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(staging).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug("Browser session opened", zap.String("staging", staging))
	return s, nil
}

// Close releases the browser, the allocator and the staging directory.
// It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
		if err := os.RemoveAll(s.staging); err != nil {
			s.logger.Warn("Failed to remove download staging dir", zap.String("staging", s.staging), zap.Error(err))
		}
		s.logger.Debug("Browser session closed")
	})
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config {
	return s.cfg
}

// scope derives a browser-bound context that also ends when ctx does.
func (s *Session) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	c, cancel := s.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(c, actions...)
}

func (s *Session) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		s.publish(downloadEvent{guid: e.GUID, filename: e.SuggestedFilename, begin: true})
	case *browser.EventDownloadProgress:
		if e.State == browser.DownloadProgressStateCompleted || e.State == browser.DownloadProgressStateCanceled {
			s.publish(downloadEvent{guid: e.GUID, state: e.State})
		}
	}
}

// publish never blocks the CDP event loop.
func (s *Session) publish(ev downloadEvent) {
	select {
	case s.downloads <- ev:
	default:
		s.logger.Warn("Dropped download event", zap.String("guid", ev.guid))
	}
}
