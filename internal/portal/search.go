package portal

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Search opens the FUR query screen, fills the filters and submits them.
//
// Only a failed page load is returned. Problems filling or submitting the form
// are logged and the caller goes on to extraction, which then finds no rows.
func (s *Session) Search(ctx context.Context, taxID, caseNumber string, w types.SearchWindow) error {
	log := s.logger.With(zap.String("tax_id", taxID), zap.String("case_number", caseNumber), zap.Stringer("window", w))

	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(s.cfg.QueryURL)); err != nil {
		return &NavigationError{Step: "open query screen", Cause: err}
	}

	sel := s.cfg.Selectors
	start, end := w.Format()

	s.fill(ctx, log, "tax id", s.taxIDActions(taxID)...)
	s.fill(ctx, log, "case number", chromedp.Clear(sel.CaseNumber, chromedp.ByQuery), chromedp.SendKeys(sel.CaseNumber, caseNumber, chromedp.ByQuery))
	s.fill(ctx, log, "start date", chromedp.Clear(sel.StartDate, chromedp.ByQuery), chromedp.SendKeys(sel.StartDate, start, chromedp.ByQuery))
	s.fill(ctx, log, "end date", chromedp.Clear(sel.EndDate, chromedp.ByQuery), chromedp.SendKeys(sel.EndDate, end, chromedp.ByQuery))
	s.fill(ctx, log, "submit", chromedp.Click(sel.SearchButton, chromedp.ByQuery))

	s.settle(ctx)
	log.Info("Search submitted")
	return nil
}

func (s *Session) taxIDActions(taxID string) []chromedp.Action {
	sel := s.cfg.Selectors
	if s.cfg.Variant == VariantDropdown {
		return []chromedp.Action{
			chromedp.Click(sel.TaxIDDropdown, chromedp.ByQuery),
			chromedp.WaitVisible(sel.TaxIDDropdownSearch, chromedp.ByQuery),
			chromedp.SendKeys(sel.TaxIDDropdownSearch, taxID, chromedp.ByQuery),
			chromedp.Sleep(s.cfg.Settle / 3),
			chromedp.SendKeys(sel.TaxIDDropdownSearch, kb.Enter, chromedp.ByQuery),
		}
	}
	return []chromedp.Action{
		chromedp.Clear(sel.TaxID, chromedp.ByQuery),
		chromedp.SendKeys(sel.TaxID, taxID, chromedp.ByQuery),
	}
}

func (s *Session) fill(ctx context.Context, log *zap.Logger, field string, actions ...chromedp.Action) {
	if err := s.run(ctx, s.cfg.NavigationTimeout, actions...); err != nil {
		log.Warn("Failed to fill search field", zap.String("field", field), zap.Error(err))
	}
}

// settle waits for the results to render.
func (s *Session) settle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	case <-time.After(s.cfg.Settle):
	}
}
