// Package layout maps case files and periods to the on-disk evidence tree.
//
// The canonical shape is {root}/{section}/{year}/{taxId}-{caseNumber}/{q}T/{category}/
// and every writer and reader of the download directory goes through it.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Evidence categories exposed by the SER portal.
const (
	CategorySelfAssessment = "autoliquidacion"
	CategoryObligation     = "obligacion"
)

// Categories lists the evidence categories in portal tab order.
var Categories = []string{CategorySelfAssessment, CategoryObligation}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// Target identifies whose evidence a path belongs to.
type Target struct {
	Section    string
	TaxID      string
	CaseNumber string
}

// TargetFor builds the target of a case file within a section.
func TargetFor(section string, cf types.CaseFile) Target {
	return Target{Section: section, TaxID: cf.TaxID, CaseNumber: cf.CaseNumber}
}

func (t Target) folder() string {
	return sanitize(t.TaxID) + "-" + sanitize(t.CaseNumber)
}

// Layout resolves evidence paths under Root.
type Layout struct {
	Root string
}

// New returns a layout rooted at root.
func New(root string) *Layout {
	return &Layout{Root: root}
}

// CaseRoot returns {root}/{section}/{year}/{taxId}-{caseNumber}.
func (l *Layout) CaseRoot(t Target, year int) string {
	return filepath.Join(l.Root, sanitize(t.Section), strconv.Itoa(year), t.folder())
}

// PeriodPath returns the quarter folder of a case file.
func (l *Layout) PeriodPath(t Target, p types.Period) string {
	return filepath.Join(l.CaseRoot(t, p.Year), p.Folder())
}

// CategoryPath returns the category folder inside a quarter folder.
func (l *Layout) CategoryPath(t Target, p types.Period, category string) string {
	return filepath.Join(l.PeriodPath(t, p), sanitize(category))
}

// EnsurePeriod creates the quarter folder and the given category folders if absent.
func (l *Layout) EnsurePeriod(t Target, p types.Period, categories ...string) (string, error) {
	dir := l.PeriodPath(t, p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create period folder %s: %w", dir, err)
	}
	for _, c := range categories {
		if _, err := l.EnsureCategory(t, p, c); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// EnsureCategory creates the category folder if absent and returns it.
func (l *Layout) EnsureCategory(t Target, p types.Period, category string) (string, error) {
	dir := l.CategoryPath(t, p, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create category folder %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureCaseRoot creates the case-file folder if absent.
func (l *Layout) EnsureCaseRoot(t Target, year int) (string, error) {
	dir := l.CaseRoot(t, year)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create case folder %s: %w", dir, err)
	}
	return dir, nil
}

// Key converts a path under Root into a forward-slash storage key.
func (l *Layout) Key(path string) (string, error) {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s is outside %s", path, l.Root)
	}
	return filepath.ToSlash(rel), nil
}

// ErrUnsafeRoot is returned by Reset for roots that must never be wiped.
var ErrUnsafeRoot = errors.New("refusing to reset unsafe download root")

// Reset clears the whole download directory. It runs once at the start of a run.
func (l *Layout) Reset() error {
	abs, err := filepath.Abs(l.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve download root: %w", err)
	}
	if l.Root == "" || abs == string(filepath.Separator) || abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrUnsafeRoot, l.Root)
	}
	if home, err := os.UserHomeDir(); err == nil && abs == home {
		return fmt.Errorf("%w: %q", ErrUnsafeRoot, l.Root)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to clear download root: %w", err)
	}
	return os.MkdirAll(abs, 0o755)
}

// sanitize keeps a single path segment free of separators and traversal.
func sanitize(segment string) string {
	segment = strings.ReplaceAll(segment, "..", "")
	return unsafeSegment.ReplaceAllString(segment, "")
}
