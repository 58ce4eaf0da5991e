// Package source provides the case files a run works through.
package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Source yields the case files of a run.
type Source interface {
	CaseFiles(ctx context.Context, f Filter) ([]types.CaseFile, error)
}

// Filter limits case files to a tax ID range. Nil bounds are open.
type Filter struct {
	IDFrom *int64
	IDTo   *int64
}

// ValidationError rejects a filter before any case file is processed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Validate rejects an inverted range.
func (f Filter) Validate() error {
	if f.IDFrom != nil && f.IDTo != nil && *f.IDTo < *f.IDFrom {
		return &ValidationError{Field: "nitHasta", Message: fmt.Sprintf("%d is lower than nitDesde %d", *f.IDTo, *f.IDFrom)}
	}
	return nil
}

// Match reports whether a tax ID falls inside the range. Non-numeric tax IDs
// only match an open range.
func (f Filter) Match(taxID string) bool {
	if f.IDFrom == nil && f.IDTo == nil {
		return true
	}
	id, err := strconv.ParseInt(taxID, 10, 64)
	if err != nil {
		return false
	}
	if f.IDFrom != nil && id < *f.IDFrom {
		return false
	}
	if f.IDTo != nil && id > *f.IDTo {
		return false
	}
	return true
}

// Static serves the case files carried by a request.
type Static struct {
	files []types.CaseFile
}

// NewStatic wraps a fixed list of case files.
func NewStatic(files []types.CaseFile) *Static {
	return &Static{files: files}
}

// CaseFiles returns the wrapped case files inside the filter range.
func (s *Static) CaseFiles(_ context.Context, f Filter) ([]types.CaseFile, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]types.CaseFile, 0, len(s.files))
	for _, c := range s.files {
		if f.Match(c.TaxID) {
			out = append(out, c)
		}
	}
	return out, nil
}
