package db

import (
	"context"
	"fmt"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// Insert appends an audit row. Re-inserting the same row id is a no-op.
func (db *DB) Insert(ctx context.Context, rec types.AuditRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO fur_audit_log (
			id_registro, id_ingesta, nit_operador, expediente, radicado, codigo_servicio,
			seccion, anio, trimestre, subido_a_storage,
			urls_imagenes, rutas_imagenes, urls_documentos, rutas_documentos,
			fecha_ingesta, year_asignado, trimestre_asignado)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id_registro) DO NOTHING`,
		rec.RowID, rec.IngestionID, rec.TaxID, rec.CaseNumber, rec.FilingNumber, rec.ServiceCode,
		rec.Section, rec.Year, rec.Quarter, rec.Uploaded,
		orEmpty(rec.ImageURLs), orEmpty(rec.ImageKeys), orEmpty(rec.DocumentURLs), orEmpty(rec.DocumentKeys),
		rec.IngestedAt, rec.AssignedYear, rec.AssignedPeriod,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit row %s: %w", rec.RowID, err)
	}
	return nil
}

// AuditRecords lists the rows written by one ingestion.
func (db *DB) AuditRecords(ctx context.Context, ingestionID string) ([]types.AuditRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id_registro, id_ingesta, nit_operador, expediente, COALESCE(radicado, ''), COALESCE(codigo_servicio, ''),
		        seccion, anio, trimestre, subido_a_storage,
		        urls_imagenes, rutas_imagenes, urls_documentos, rutas_documentos,
		        fecha_ingesta, year_asignado, trimestre_asignado
		 FROM fur_audit_log WHERE id_ingesta = $1
		 ORDER BY nit_operador, expediente, anio, trimestre`,
		ingestionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit rows: %w", err)
	}
	defer rows.Close()

	var out []types.AuditRecord
	for rows.Next() {
		var r types.AuditRecord
		if err := rows.Scan(
			&r.RowID, &r.IngestionID, &r.TaxID, &r.CaseNumber, &r.FilingNumber, &r.ServiceCode,
			&r.Section, &r.Year, &r.Quarter, &r.Uploaded,
			&r.ImageURLs, &r.ImageKeys, &r.DocumentURLs, &r.DocumentKeys,
			&r.IngestedAt, &r.AssignedYear, &r.AssignedPeriod,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		r.Persisted = true
		out = append(out, r)
	}
	return out, rows.Err()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
