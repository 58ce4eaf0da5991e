// Package types provides the data model shared by the FUR download pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"sort"
	"strings"
)

// CaseFile identifies one expediente to search in the SER portal.
// Explicit Year/Quarters always win over the Assigned* values.
type CaseFile struct {
	TaxID            string `json:"nitOperador"`
	CaseNumber       string `json:"expediente"`
	Year             *int   `json:"year,omitempty"`
	AssignedYear     *int   `json:"year_asignado,omitempty"`
	Quarters         []int  `json:"trimestre,omitempty"`
	AssignedQuarters []int  `json:"trimestre_asignado,omitempty"`
	FilingNumber     string `json:"radicado,omitempty"`
	ServiceCode      string `json:"codigo_servicio,omitempty"`
}

// Key returns the "{taxId}-{caseNumber}" identity used for folder names and dedup.
func (c CaseFile) Key() string {
	return fmt.Sprintf("%s-%s", c.TaxID, c.CaseNumber)
}

// ResolvedYear returns Year, then AssignedYear, then fallback.
func (c CaseFile) ResolvedYear(fallback int) int {
	if c.Year != nil && *c.Year > 0 {
		return *c.Year
	}
	if c.AssignedYear != nil && *c.AssignedYear > 0 {
		return *c.AssignedYear
	}
	return fallback
}

// ResolvedQuarters returns Quarters when non-empty, otherwise AssignedQuarters.
// The result is sorted, de-duplicated and limited to 1..4.
func (c CaseFile) ResolvedQuarters() []int {
	source := c.Quarters
	if len(normalizeQuarters(source)) == 0 {
		source = c.AssignedQuarters
	}
	return normalizeQuarters(source)
}

func normalizeQuarters(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, q := range in {
		if q < 1 || q > 4 || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}

// Normalize trims identifiers. Tax IDs sometimes arrive with a check digit
// suffix ("900014381-7"); only the base number is used by the portal.
func (c CaseFile) Normalize() CaseFile {
	c.TaxID = strings.TrimSpace(c.TaxID)
	if i := strings.IndexByte(c.TaxID, '-'); i > 0 {
		c.TaxID = c.TaxID[:i]
	}
	c.CaseNumber = strings.TrimSpace(c.CaseNumber)
	c.FilingNumber = strings.TrimSpace(c.FilingNumber)
	c.ServiceCode = strings.TrimSpace(c.ServiceCode)
	return c
}

// IntPtr is a small helper for optional year fields.
func IntPtr(v int) *int {
	return &v
}
