package types

import "time"

// AuditRecord is the warehouse row written once per (case file, period) upload attempt.
type AuditRecord struct {
	RowID          string    `json:"id_registro"`
	IngestionID    string    `json:"id_ingesta"`
	TaxID          string    `json:"nit_operador"`
	CaseNumber     string    `json:"expediente"`
	FilingNumber   string    `json:"radicado,omitempty"`
	ServiceCode    string    `json:"codigo_servicio,omitempty"`
	Section        string    `json:"seccion"`
	Year           int       `json:"anio"`
	Quarter        int       `json:"trimestre"`
	Uploaded       bool      `json:"subido_a_storage"`
	ImageURLs      []string  `json:"urls_imagenes"`
	ImageKeys      []string  `json:"rutas_imagenes"`
	DocumentURLs   []string  `json:"urls_documentos"`
	DocumentKeys   []string  `json:"rutas_documentos"`
	IngestedAt     time.Time `json:"fecha_ingesta"`
	AssignedYear   *int      `json:"year_asignado,omitempty"`
	AssignedPeriod []int     `json:"trimestre_asignado,omitempty"`

	// Persisted reports whether the audit sink accepted the row. Not stored.
	Persisted bool `json:"registrado"`
}

// Period returns the record's period.
func (r AuditRecord) Period() Period {
	return Period{Year: r.Year, Quarter: r.Quarter}
}

// Enrichment carries the case-file metadata copied onto every audit record.
type Enrichment struct {
	IngestionID      string
	ServiceCode      string
	FilingNumber     string
	AssignedYear     *int
	AssignedQuarters []int
}

// EnrichmentFor builds the enrichment block of a case file.
func EnrichmentFor(c CaseFile, ingestionID string) Enrichment {
	return Enrichment{
		IngestionID:      ingestionID,
		ServiceCode:      c.ServiceCode,
		FilingNumber:     c.FilingNumber,
		AssignedYear:     c.AssignedYear,
		AssignedQuarters: c.AssignedQuarters,
	}
}
