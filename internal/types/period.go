package types

import (
	"fmt"
	"time"
)

// DateLayout is the dd/mm/yyyy format used by the SER portal for every date field.
const DateLayout = "02/01/2006"

// Period is a (year, quarter) bucket used to organize evidence on disk and in storage.
type Period struct {
	Year    int `json:"anio"`
	Quarter int `json:"trimestre"`
}

// PeriodOf derives the period a date belongs to.
func PeriodOf(d time.Time) Period {
	return Period{Year: d.Year(), Quarter: (int(d.Month())-1)/3 + 1}
}

// Folder returns the on-disk folder name of the quarter, e.g. "2T".
func (p Period) Folder() string {
	return fmt.Sprintf("%dT", p.Quarter)
}

func (p Period) String() string {
	return fmt.Sprintf("%d-Q%d", p.Year, p.Quarter)
}

// Before orders periods chronologically.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// SearchWindow is the inclusive date range submitted to the portal search form.
type SearchWindow struct {
	Start time.Time `json:"fecha_inicial"`
	End   time.Time `json:"fecha_final"`
}

// Valid reports whether Start is not after End.
func (w SearchWindow) Valid() bool {
	return !w.Start.After(w.End)
}

// Format returns the portal representation of both bounds.
func (w SearchWindow) Format() (start, end string) {
	return w.Start.Format(DateLayout), w.End.Format(DateLayout)
}

func (w SearchWindow) String() string {
	s, e := w.Format()
	return s + " - " + e
}

// ExtractedRow is one result-table row read from the portal.
type ExtractedRow struct {
	Category     string    `json:"categoria"`
	Page         int       `json:"pagina"`
	Index        int       `json:"fila"`
	EvidenceDate time.Time `json:"fecha"`
	HasArtifact  bool      `json:"tiene_pdf"`
	StatusText   string    `json:"estado"`
	Cells        []string  `json:"-"`
}

// Period returns the period inferred from the row's own date.
func (r ExtractedRow) Period() Period {
	return PeriodOf(r.EvidenceDate)
}

// UploadTask pairs a local file with one destination key.
type UploadTask struct {
	LocalPath string
	Key       string
}
