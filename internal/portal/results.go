package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/fsutil"
)

const visibleJS = `(() => {
	const el = document.querySelector(%q);
	return !!el && el.offsetParent !== null;
})()`

const scrollJS = `(() => {
	const el = document.querySelector(%q);
	if (el) { el.scrollLeft = (el.scrollWidth - el.clientWidth) / 1.8; }
	return !!el;
})()`

const styleJS = `(() => {
	const style = document.createElement("style");
	style.textContent = %q;
	document.head.appendChild(style);
	return true;
})()`

const nextPageJS = `(() => {
	const el = document.querySelector(%q);
	if (!el) { return false; }
	el.click();
	return true;
})()`

// OpenCategory switches to a result tab and reports whether its table is shown.
func (s *Session) OpenCategory(ctx context.Context, category string) (bool, error) {
	c, err := s.cfg.Selectors.Category(category)
	if err != nil {
		return false, err
	}
	if c.Tab != "" {
		if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Click(c.Tab, chromedp.BySearch)); err != nil {
			return false, &NavigationError{Step: "open tab " + category, Cause: err}
		}
		s.settle(ctx)
	}

	var visible bool
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(fmt.Sprintf(visibleJS, c.ScrollContainer), &visible)); err != nil {
		return false, &NavigationError{Step: "inspect tab " + category, Cause: err}
	}
	return visible, nil
}

// ResultsHTML returns the markup of a category's tab panel.
func (s *Session) ResultsHTML(ctx context.Context, category string) (string, error) {
	c, err := s.cfg.Selectors.Category(category)
	if err != nil {
		return "", err
	}
	var html string
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.OuterHTML(c.Scope, &html, chromedp.ByQuery)); err != nil {
		return "", &NavigationError{Step: "read results " + category, Cause: err}
	}
	return html, nil
}

// DownloadRow clicks the PDF icon of a row and stores the file in dir under
// the name the server suggested. It returns the saved path.
func (s *Session) DownloadRow(ctx context.Context, category string, row int, dir string) (string, error) {
	c, err := s.cfg.Selectors.Category(category)
	if err != nil {
		return "", err
	}

	drain(s.downloads)
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Click(s.cfg.Selectors.RowArtifact(c, row), chromedp.ByQuery)); err != nil {
		return "", &DownloadError{Row: row, Reason: "could not click artifact icon", Cause: err}
	}

	done, err := awaitDownload(ctx, s.downloads, row, s.cfg.DownloadTimeout)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, safeFilename(done.filename, done.guid))
	if err := fsutil.MoveFile(filepath.Join(s.staging, done.guid), dst); err != nil {
		return "", &DownloadError{Row: row, Reason: "could not save artifact", Cause: err}
	}
	return dst, nil
}

// Capture writes a full-page PNG of the current results view to path. The
// expanded variant scrolls the table sideways and moves the search panel so
// that the status column is visible.
func (s *Session) Capture(ctx context.Context, category, path string, expanded bool) error {
	c, err := s.cfg.Selectors.Category(category)
	if err != nil {
		return err
	}

	if expanded {
		sel := s.cfg.Selectors
		s.fill(ctx, s.logger, "scroll results", chromedp.Evaluate(fmt.Sprintf(scrollJS, c.ScrollContainer), nil))
		s.fill(ctx, s.logger, "search panel", chromedp.Click(sel.SearchPanel, chromedp.ByQuery))
		s.fill(ctx, s.logger, "panel style", chromedp.Evaluate(fmt.Sprintf(styleJS, panelCSS(sel.SearchPanel)), nil))
		if err := s.run(ctx, 5*time.Second, chromedp.WaitVisible(c.StatusHeader, chromedp.BySearch)); err != nil {
			s.logger.Warn("Status column not visible before capture", zap.String("category", category), zap.Error(err))
		}
		s.settle(ctx)
	}

	var buf []byte
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return &NavigationError{Step: "capture " + category, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// NextPage advances the category's pagination. It reports false when no
// enabled next control exists.
func (s *Session) NextPage(ctx context.Context, category string) (bool, error) {
	c, err := s.cfg.Selectors.Category(category)
	if err != nil {
		return false, err
	}
	if c.NextPage == "" {
		return false, nil
	}

	var clicked bool
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(fmt.Sprintf(nextPageJS, c.NextPage), &clicked)); err != nil {
		return false, &NavigationError{Step: "next page " + category, Cause: err}
	}
	if clicked {
		s.settle(ctx)
	}
	return clicked, nil
}
