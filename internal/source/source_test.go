package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bq "google.golang.org/api/bigquery/v2"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

func id(v int64) *int64 { return &v }

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{IDFrom: id(100), IDTo: id(100)}.Validate())

	err := Filter{IDFrom: id(200), IDTo: id(100)}.Validate()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "nitHasta", vErr.Field)
}

func TestFilter_Match(t *testing.T) {
	f := Filter{IDFrom: id(800000000), IDTo: id(900000000)}

	assert.True(t, f.Match("830122566"))
	assert.True(t, f.Match("900000000"))
	assert.False(t, f.Match("900014381"))
	assert.False(t, f.Match("abc"))
	assert.True(t, Filter{}.Match("abc"))
}

func TestStatic_CaseFiles(t *testing.T) {
	s := NewStatic([]types.CaseFile{
		{TaxID: "100", CaseNumber: "1"},
		{TaxID: "250", CaseNumber: "2"},
		{TaxID: "300", CaseNumber: "3"},
	})

	got, err := s.CaseFiles(context.Background(), Filter{IDFrom: id(200)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = s.CaseFiles(context.Background(), Filter{IDFrom: id(200), IDTo: id(100)})
	assert.Error(t, err)
}

func TestBuildQuery(t *testing.T) {
	req := buildQuery(BigQueryConfig{Project: "p", Dataset: "d", Table: "oficios"}, Filter{IDFrom: id(1), IDTo: id(9)})

	assert.Contains(t, req.Query, "FROM `p.d.oficios` WHERE ESTADO = 1")
	assert.Contains(t, req.Query, "NIT_OPERADOR >= @nit_desde")
	assert.Contains(t, req.Query, "NIT_OPERADOR <= @nit_hasta")
	assert.Contains(t, req.Query, "ORDER BY NIT_OPERADOR, EXPEDIENTE")
	assert.False(t, *req.UseLegacySql)
	require.Len(t, req.QueryParameters, 2)
	assert.Equal(t, "9", req.QueryParameters[1].ParameterValue.Value)
}

func TestRowsToCaseFiles(t *testing.T) {
	schema := &bq.TableSchema{Fields: []*bq.TableFieldSchema{
		{Name: "nit"}, {Name: "expediente"}, {Name: "radicado"}, {Name: "year"}, {Name: "trimestre"}, {Name: "codigo_servicio"},
	}}
	row := func(vals ...interface{}) *bq.TableRow {
		r := &bq.TableRow{}
		for _, v := range vals {
			r.F = append(r.F, &bq.TableCell{V: v})
		}
		return r
	}

	files := rowsToCaseFiles(schema, []*bq.TableRow{
		row("900014381-7", "96002150", "R1", "2024", "2", "S1"),
		row("", "1", nil, nil, nil, nil),
		row("800", "2", nil, nil, "9", nil),
	})

	require.Len(t, files, 2)
	assert.Equal(t, "900014381", files[0].TaxID)
	assert.Equal(t, 2024, *files[0].Year)
	assert.Equal(t, []int{2}, files[0].Quarters)
	assert.Nil(t, files[1].Year)
	assert.Empty(t, files[1].Quarters)
}
