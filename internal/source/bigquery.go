package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// BigQueryConfig addresses the table of active case files.
type BigQueryConfig struct {
	Project  string
	Dataset  string
	Table    string
	Location string
}

// BigQuery reads active case files from the warehouse.
type BigQuery struct {
	svc *bq.Service
	cfg BigQueryConfig
}

// NewBigQuery creates a warehouse source.
func NewBigQuery(ctx context.Context, cfg BigQueryConfig, credentialsFile string) (*BigQuery, error) {
	if cfg.Project == "" || cfg.Dataset == "" {
		return nil, fmt.Errorf("bigquery project and dataset are required")
	}
	if cfg.Table == "" {
		cfg.Table = "oficios"
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := bq.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery service: %w", err)
	}
	return &BigQuery{svc: svc, cfg: cfg}, nil
}

// CaseFiles runs the active case-file query and pages through its results.
func (b *BigQuery) CaseFiles(ctx context.Context, f Filter) ([]types.CaseFile, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	req := buildQuery(b.cfg, f)
	resp, err := b.svc.Jobs.Query(b.cfg.Project, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query case files: %w", err)
	}

	files := rowsToCaseFiles(resp.Schema, resp.Rows)
	token := resp.PageToken
	jobID := ""
	if resp.JobReference != nil {
		jobID = resp.JobReference.JobId
	}
	for token != "" && jobID != "" {
		call := b.svc.Jobs.GetQueryResults(b.cfg.Project, jobID).PageToken(token).Context(ctx)
		if b.cfg.Location != "" {
			call = call.Location(b.cfg.Location)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to page case files: %w", err)
		}
		files = append(files, rowsToCaseFiles(page.Schema, page.Rows)...)
		token = page.PageToken
	}
	return files, nil
}

func buildQuery(cfg BigQueryConfig, f Filter) *bq.QueryRequest {
	query := fmt.Sprintf(
		"SELECT CAST(NIT_OPERADOR AS STRING) AS nit, CAST(EXPEDIENTE AS STRING) AS expediente, "+
			"CAST(RADICADO AS STRING) AS radicado, YEAR AS year, TRIMESTRE AS trimestre, "+
			"CAST(CODIGO_SERVICIO AS STRING) AS codigo_servicio "+
			"FROM `%s.%s.%s` WHERE ESTADO = 1", cfg.Project, cfg.Dataset, cfg.Table)

	var params []*bq.QueryParameter
	if f.IDFrom != nil {
		query += " AND NIT_OPERADOR >= @nit_desde"
		params = append(params, int64Param("nit_desde", *f.IDFrom))
	}
	if f.IDTo != nil {
		query += " AND NIT_OPERADOR <= @nit_hasta"
		params = append(params, int64Param("nit_hasta", *f.IDTo))
	}
	query += " ORDER BY NIT_OPERADOR, EXPEDIENTE"

	useLegacy := false
	return &bq.QueryRequest{
		Query:           query,
		UseLegacySql:    &useLegacy,
		ParameterMode:   "NAMED",
		QueryParameters: params,
		Location:        cfg.Location,
	}
}

func int64Param(name string, v int64) *bq.QueryParameter {
	return &bq.QueryParameter{
		Name:           name,
		ParameterType:  &bq.QueryParameterType{Type: "INT64"},
		ParameterValue: &bq.QueryParameterValue{Value: strconv.FormatInt(v, 10)},
	}
}

// rowsToCaseFiles maps result rows by column name. Rows missing a tax ID or
// case number are dropped.
func rowsToCaseFiles(schema *bq.TableSchema, rows []*bq.TableRow) []types.CaseFile {
	if schema == nil {
		return nil
	}
	col := make(map[string]int, len(schema.Fields))
	for i, field := range schema.Fields {
		col[strings.ToLower(field.Name)] = i
	}

	get := func(r *bq.TableRow, name string) string {
		i, ok := col[name]
		if !ok || i >= len(r.F) || r.F[i] == nil || r.F[i].V == nil {
			return ""
		}
		s, _ := r.F[i].V.(string)
		return s
	}

	var out []types.CaseFile
	for _, r := range rows {
		c := types.CaseFile{
			TaxID:        get(r, "nit"),
			CaseNumber:   get(r, "expediente"),
			FilingNumber: get(r, "radicado"),
			ServiceCode:  get(r, "codigo_servicio"),
		}.Normalize()
		if c.TaxID == "" || c.CaseNumber == "" {
			continue
		}
		if y, err := strconv.Atoi(get(r, "year")); err == nil && y > 0 {
			c.Year = types.IntPtr(y)
		}
		if q, err := strconv.Atoi(get(r, "trimestre")); err == nil && q >= 1 && q <= 4 {
			c.Quarters = []int{q}
		}
		out = append(out, c)
	}
	return out
}
