package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/source"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// CaseFiles returns the active case files of the oficios table.
func (db *DB) CaseFiles(ctx context.Context, f source.Filter) ([]types.CaseFile, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query, args := caseFilesQuery(f)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list case files: %w", err)
	}
	defer rows.Close()

	var out []types.CaseFile
	for rows.Next() {
		var (
			nit int64
			c   types.CaseFile
		)
		if err := rows.Scan(&nit, &c.CaseNumber, &c.FilingNumber, &c.Year, &c.Quarters, &c.AssignedYear, &c.AssignedQuarters, &c.ServiceCode); err != nil {
			return nil, fmt.Errorf("failed to scan case file: %w", err)
		}
		c.TaxID = strconv.FormatInt(nit, 10)
		out = append(out, c.Normalize())
	}
	return out, rows.Err()
}

func caseFilesQuery(f source.Filter) (string, []any) {
	query := `SELECT nit_operador, expediente, COALESCE(radicado, ''), year, trimestre,
	                 year_asignado, trimestre_asignado, COALESCE(codigo_servicio, '')
	          FROM oficios WHERE estado = 1`
	var args []any
	argNum := 1

	if f.IDFrom != nil {
		query += fmt.Sprintf(" AND nit_operador >= $%d", argNum)
		args = append(args, *f.IDFrom)
		argNum++
	}
	if f.IDTo != nil {
		query += fmt.Sprintf(" AND nit_operador <= $%d", argNum)
		args = append(args, *f.IDTo)
	}
	query += " ORDER BY nit_operador, expediente"
	return query, args
}
