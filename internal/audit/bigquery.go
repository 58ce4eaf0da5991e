package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// BigQueryTable addresses the audit table.
type BigQueryTable struct {
	Project string
	Dataset string
	Table   string
}

// BigQuerySink streams audit rows with tabledata.insertAll.
type BigQuerySink struct {
	svc   *bq.Service
	table BigQueryTable
}

// NewBigQuerySink creates a sink. Without a credentials file the application
// default credentials are used.
func NewBigQuerySink(ctx context.Context, table BigQueryTable, credentialsFile string) (*BigQuerySink, error) {
	if table.Project == "" || table.Dataset == "" || table.Table == "" {
		return nil, fmt.Errorf("bigquery project, dataset and table are required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := bq.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery service: %w", err)
	}
	return &BigQuerySink{svc: svc, table: table}, nil
}

// Insert appends one row. The row id doubles as the streaming insert id.
func (s *BigQuerySink) Insert(ctx context.Context, rec types.AuditRecord) error {
	req := &bq.TableDataInsertAllRequest{
		Rows: []*bq.TableDataInsertAllRequestRows{{
			InsertId: rec.RowID,
			Json:     rowJSON(rec),
		}},
	}
	resp, err := s.svc.Tabledata.InsertAll(s.table.Project, s.table.Dataset, s.table.Table, req).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.InsertErrors) > 0 {
		var msgs []string
		for _, ie := range resp.InsertErrors {
			for _, e := range ie.Errors {
				msgs = append(msgs, fmt.Sprintf("%s: %s", e.Reason, e.Message))
			}
		}
		return fmt.Errorf("rejected rows: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// rowJSON maps a record to the warehouse column names.
func rowJSON(rec types.AuditRecord) map[string]bq.JsonValue {
	row := map[string]bq.JsonValue{
		"id_registro":      rec.RowID,
		"id_ingesta":       rec.IngestionID,
		"nit_operador":     rec.TaxID,
		"expediente":       rec.CaseNumber,
		"seccion":          rec.Section,
		"anio":             rec.Year,
		"trimestre":        rec.Quarter,
		"subido_a_storage": rec.Uploaded,
		"urls_imagenes":    rec.ImageURLs,
		"rutas_imagenes":   rec.ImageKeys,
		"urls_documentos":  rec.DocumentURLs,
		"rutas_documentos": rec.DocumentKeys,
		"fecha_ingesta":    rec.IngestedAt.UTC().Format(time.RFC3339),
	}
	if rec.FilingNumber != "" {
		row["radicado"] = rec.FilingNumber
	}
	if rec.ServiceCode != "" {
		row["codigo_servicio"] = rec.ServiceCode
	}
	if rec.AssignedYear != nil {
		row["year_asignado"] = *rec.AssignedYear
	}
	if len(rec.AssignedPeriod) > 0 {
		row["trimestre_asignado"] = rec.AssignedPeriod
	}
	return row
}
