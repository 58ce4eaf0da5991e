// Package audit writes one log row per (case file, period) upload attempt.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/storage"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Sink appends audit rows to durable storage.
type Sink interface {
	Insert(ctx context.Context, rec types.AuditRecord) error
}

// InsertError reports a row the sink refused.
type InsertError struct {
	RowID string
	Cause error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("audit insert of %s failed: %v", e.RowID, e.Cause)
}

func (e *InsertError) Unwrap() error {
	return e.Cause
}

// Recorder builds audit rows and hands them to a Sink.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

// NewRecorder creates a recorder over sink.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Record writes the row of one (case file, period) pair. A sink failure is
// logged and reflected in Persisted; uploads already done are left in place.
func (r *Recorder) Record(ctx context.Context, cf types.CaseFile, section string, p types.Period, uploaded bool, files storage.Split, ingestedAt time.Time, enr types.Enrichment) types.AuditRecord {
	rec := types.AuditRecord{
		RowID:          RowID(enr.IngestionID, cf, p),
		IngestionID:    enr.IngestionID,
		TaxID:          cf.TaxID,
		CaseNumber:     cf.CaseNumber,
		FilingNumber:   enr.FilingNumber,
		ServiceCode:    enr.ServiceCode,
		Section:        section,
		Year:           p.Year,
		Quarter:        p.Quarter,
		Uploaded:       uploaded,
		ImageURLs:      nonNil(files.ImageURLs),
		ImageKeys:      nonNil(files.ImageKeys),
		DocumentURLs:   nonNil(files.DocumentURLs),
		DocumentKeys:   nonNil(files.DocumentKeys),
		IngestedAt:     ingestedAt.UTC(),
		AssignedYear:   enr.AssignedYear,
		AssignedPeriod: enr.AssignedQuarters,
	}

	log := r.logger.With(zap.String("tax_id", cf.TaxID), zap.String("case_number", cf.CaseNumber), zap.Stringer("period", p))
	if err := r.sink.Insert(ctx, rec); err != nil {
		log.Error("Failed to record audit row", zap.Error(&InsertError{RowID: rec.RowID, Cause: err}))
		return rec
	}
	rec.Persisted = true
	log.Info("Recorded audit row", zap.Bool("uploaded", uploaded), zap.Int("documents", len(rec.DocumentKeys)), zap.Int("images", len(rec.ImageKeys)))
	return rec
}

// RowID is stable for a (run, case file, period) triple so that retried
// inserts are de-duplicated by the sink.
func RowID(ingestionID string, cf types.CaseFile, p types.Period) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(ingestionID+"|"+cf.Key()+"|"+p.String())).String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
