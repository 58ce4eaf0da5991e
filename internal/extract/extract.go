// Package extract walks the result tabs of a searched portal session, infers
// the period of every row from its own date and downloads the row artifacts
// into the evidence tree.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/fsutil"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// maxPages bounds pagination in case the portal keeps a next control enabled.
const maxPages = 200

// Page is the part of a portal session the extractor drives.
type Page interface {
	OpenCategory(ctx context.Context, category string) (bool, error)
	ResultsHTML(ctx context.Context, category string) (string, error)
	DownloadRow(ctx context.Context, category string, row int, dir string) (string, error)
	Capture(ctx context.Context, category, path string, expanded bool) error
	NextPage(ctx context.Context, category string) (bool, error)
}

// Category describes the results table of one evidence category.
type Category struct {
	Name         string
	Table        string
	Artifact     string
	DateHeader   string
	DateColumn   int
	StatusHeader string
	StatusColumn int
}

// DefaultCategories lists both FUR tabs. Self-assessments are governed by
// their filing date, obligations by their due date.
var DefaultCategories = []Category{
	{
		Name:         layout.CategorySelfAssessment,
		Table:        "table.scrollBarProcesada",
		Artifact:     "a.fa-file-pdf-o",
		DateHeader:   "Fecha Presentación",
		DateColumn:   4,
		StatusHeader: "Estado FUR",
		StatusColumn: 9,
	},
	{
		Name:         layout.CategoryObligation,
		Table:        "table.scrollBarProcesada",
		Artifact:     "a.fa-file-pdf-o",
		DateHeader:   "Fecha Límite",
		DateColumn:   5,
		StatusHeader: "Estado FUR",
		StatusColumn: 8,
	},
}

// Outcome classifies what happened to a row.
type Outcome int

const (
	Downloaded Outcome = iota
	SkippedStatus
	NoArtifact
	DateError
	DownloadFailed
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case SkippedStatus:
		return "skipped_status"
	case NoArtifact:
		return "no_artifact"
	case DateError:
		return "date_error"
	case DownloadFailed:
		return "download_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RowResult is the per-row result of extraction.
type RowResult struct {
	Row     types.ExtractedRow
	Outcome Outcome
	Path    string
	Err     error
}

// Result aggregates one case file's extraction.
type Result struct {
	Rows        []RowResult
	Populated   []types.Period
	Screenshots []string
}

// Count returns how many rows ended with the given outcome.
func (r Result) Count(o Outcome) int {
	n := 0
	for _, row := range r.Rows {
		if row.Outcome == o {
			n++
		}
	}
	return n
}

// Extractor downloads row artifacts into a Layout.
type Extractor struct {
	layout     *layout.Layout
	categories []Category
	logger     *zap.Logger
}

// New creates an extractor over both FUR categories.
func New(l *layout.Layout, logger *zap.Logger) *Extractor {
	return &Extractor{layout: l, categories: DefaultCategories, logger: logger}
}

// WithCategories returns a copy of the extractor limited to the given categories.
func (e *Extractor) WithCategories(categories ...Category) *Extractor {
	c := *e
	c.categories = categories
	return &c
}

// Extract processes every category and page of an already searched session.
// year is the searched year and locates the case root that holds screenshots.
func (e *Extractor) Extract(ctx context.Context, page Page, t layout.Target, year int) (Result, error) {
	log := e.logger.With(zap.String("tax_id", t.TaxID), zap.String("case_number", t.CaseNumber))

	caseRoot, err := e.layout.EnsureCaseRoot(t, year)
	if err != nil {
		return Result{}, err
	}

	var res Result
	populated := make(map[types.Period]bool)

	for _, cat := range e.categories {
		clog := log.With(zap.String("category", cat.Name))

		visible, err := page.OpenCategory(ctx, cat.Name)
		if err != nil {
			clog.Warn("Failed to open category", zap.Error(err))
			e.errorScreenshot(ctx, page, clog, caseRoot, cat.Name, t.TaxID)
			continue
		}
		if !visible {
			clog.Info("No results table for category")
			continue
		}

		for n := 1; n <= maxPages; n++ {
			res.Screenshots = append(res.Screenshots, e.capturePage(ctx, page, clog, caseRoot, cat.Name, t.TaxID, n)...)

			html, err := page.ResultsHTML(ctx, cat.Name)
			if err != nil {
				clog.Warn("Failed to read results", zap.Int("page", n), zap.Error(err))
				e.errorScreenshot(ctx, page, clog, caseRoot, cat.Name, t.TaxID)
				break
			}
			rows, err := ParseRows(html, cat, n)
			if err != nil {
				clog.Warn("Failed to parse results", zap.Int("page", n), zap.Error(err))
				break
			}
			clog.Info("Parsed results page", zap.Int("page", n), zap.Int("rows", len(rows)))

			for _, row := range rows {
				rr := e.processRow(ctx, page, t, row)
				if rr.Outcome == Downloaded || rr.Outcome == DownloadFailed {
					populated[rr.Row.Period()] = true
				}
				logRow(clog, rr)
				res.Rows = append(res.Rows, rr)
			}

			more, err := page.NextPage(ctx, cat.Name)
			if err != nil {
				clog.Warn("Failed to advance pagination", zap.Int("page", n), zap.Error(err))
				break
			}
			if !more {
				break
			}
		}
	}

	for p := range populated {
		res.Populated = append(res.Populated, p)
	}
	sort.Slice(res.Populated, func(i, j int) bool { return res.Populated[i].Before(res.Populated[j]) })

	e.distributeScreenshots(log, t, res.Screenshots, res.Populated)
	return res, nil
}

func (e *Extractor) processRow(ctx context.Context, page Page, t layout.Target, row Row) RowResult {
	rr := RowResult{Row: row.ExtractedRow}

	if IsSkippedStatus(row.StatusText) {
		rr.Outcome = SkippedStatus
		return rr
	}
	if !row.HasArtifact {
		rr.Outcome = NoArtifact
		return rr
	}

	date, err := ParseEvidenceDate(row.DateText)
	if err != nil {
		rr.Outcome = DateError
		rr.Err = err
		return rr
	}
	rr.Row.EvidenceDate = date

	dir, err := e.layout.EnsureCategory(t, rr.Row.Period(), row.Category)
	if err != nil {
		rr.Outcome = DownloadFailed
		rr.Err = err
		return rr
	}

	path, err := page.DownloadRow(ctx, row.Category, row.Index, dir)
	if err != nil {
		rr.Outcome = DownloadFailed
		rr.Err = err
		return rr
	}
	rr.Outcome = Downloaded
	rr.Path = path
	return rr
}

// EnsureRequested creates the evidence folders of every requested quarter so
// that a searched quarter without rows is distinguishable from one never searched.
func (e *Extractor) EnsureRequested(t layout.Target, year int, quarters []int) ([]string, error) {
	dirs := make([]string, 0, len(quarters))
	for _, q := range quarters {
		p := types.Period{Year: year, Quarter: q}
		names := make([]string, 0, len(e.categories))
		for _, c := range e.categories {
			names = append(names, c.Name)
		}
		dir, err := e.layout.EnsurePeriod(t, p, names...)
		if err != nil {
			return dirs, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func (e *Extractor) capturePage(ctx context.Context, page Page, log *zap.Logger, caseRoot, category, taxID string, n int) []string {
	var shots []string
	for _, expanded := range []bool{false, true} {
		name := fmt.Sprintf("%s_%s_p%d.png", taxID, category, n)
		if expanded {
			name = fmt.Sprintf("%s_%s_p%d_expandido.png", taxID, category, n)
		}
		path := filepath.Join(caseRoot, name)
		if err := page.Capture(ctx, category, path, expanded); err != nil {
			log.Warn("Failed to capture results", zap.String("path", path), zap.Error(err))
			continue
		}
		shots = append(shots, path)
	}
	return shots
}

func (e *Extractor) errorScreenshot(ctx context.Context, page Page, log *zap.Logger, caseRoot, category, taxID string) {
	path := filepath.Join(caseRoot, fmt.Sprintf("error_%s_%s.png", category, taxID))
	if err := page.Capture(ctx, category, path, false); err != nil {
		log.Warn("Failed to capture error screenshot", zap.Error(err))
		return
	}
	log.Info("Saved error screenshot", zap.String("path", path))
}

// distributeScreenshots copies every capture into each populated period root.
func (e *Extractor) distributeScreenshots(log *zap.Logger, t layout.Target, shots []string, periods []types.Period) {
	for _, p := range periods {
		dir := e.layout.PeriodPath(t, p)
		for _, src := range shots {
			dst := filepath.Join(dir, filepath.Base(src))
			if err := fsutil.CopyFile(src, dst); err != nil {
				log.Warn("Failed to copy screenshot", zap.String("src", src), zap.String("dst", dst), zap.Error(err))
			}
		}
	}
}

func logRow(log *zap.Logger, rr RowResult) {
	fields := []zap.Field{
		zap.Int("page", rr.Row.Page),
		zap.Int("row", rr.Row.Index),
		zap.Stringer("outcome", rr.Outcome),
	}
	switch rr.Outcome {
	case Downloaded:
		log.Info("Row downloaded", append(fields, zap.Stringer("period", rr.Row.Period()), zap.String("path", rr.Path))...)
	case DateError, DownloadFailed:
		log.Warn("Row skipped", append(fields, zap.Error(rr.Err))...)
	default:
		log.Debug("Row skipped", append(fields, zap.String("status", rr.Row.StatusText))...)
	}
}

