package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/source"
)

func int64Ptr(v int64) *int64 { return &v }

func TestSchema_DefinesTables(t *testing.T) {
	schema := Schema()

	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS oficios")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS fur_audit_log")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS fur_runs")
}

func TestCaseFilesQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   source.Filter
		contains []string
		args     []any
	}{
		{
			name:     "no range",
			filter:   source.Filter{},
			contains: []string{"WHERE estado = 1 ORDER BY nit_operador, expediente"},
			args:     nil,
		},
		{
			name:     "lower bound",
			filter:   source.Filter{IDFrom: int64Ptr(100)},
			contains: []string{"AND nit_operador >= $1"},
			args:     []any{int64(100)},
		},
		{
			name:     "both bounds",
			filter:   source.Filter{IDFrom: int64Ptr(100), IDTo: int64Ptr(200)},
			contains: []string{"AND nit_operador >= $1", "AND nit_operador <= $2"},
			args:     []any{int64(100), int64(200)},
		},
		{
			name:     "upper bound only",
			filter:   source.Filter{IDTo: int64Ptr(200)},
			contains: []string{"AND nit_operador <= $1"},
			args:     []any{int64(200)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := caseFilesQuery(tt.filter)
			for _, c := range tt.contains {
				assert.Contains(t, query, c)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestOrEmpty(t *testing.T) {
	assert.Equal(t, []string{}, orEmpty(nil))
	assert.Equal(t, []string{"a"}, orEmpty([]string{"a"}))
}
