package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseFile_ResolvedYear(t *testing.T) {
	tests := []struct {
		name     string
		cf       CaseFile
		fallback int
		expected int
	}{
		{"explicit year wins", CaseFile{Year: IntPtr(2023), AssignedYear: IntPtr(2021)}, 2025, 2023},
		{"assigned year when no explicit", CaseFile{AssignedYear: IntPtr(2021)}, 2025, 2021},
		{"fallback when neither", CaseFile{}, 2025, 2025},
		{"zero explicit year ignored", CaseFile{Year: IntPtr(0), AssignedYear: IntPtr(2022)}, 2025, 2022},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cf.ResolvedYear(tt.fallback))
		})
	}
}

func TestCaseFile_ResolvedQuarters(t *testing.T) {
	tests := []struct {
		name     string
		cf       CaseFile
		expected []int
	}{
		{"explicit quarters win", CaseFile{Quarters: []int{2}, AssignedQuarters: []int{1, 3}}, []int{2}},
		{"assigned quarters when no explicit", CaseFile{AssignedQuarters: []int{3, 1}}, []int{1, 3}},
		{"deduplicated and filtered", CaseFile{Quarters: []int{4, 4, 0, 7, 2}}, []int{2, 4}},
		{"invalid explicit falls back", CaseFile{Quarters: []int{9}, AssignedQuarters: []int{1}}, []int{1}},
		{"none", CaseFile{}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cf.ResolvedQuarters())
		})
	}
}

func TestCaseFile_NormalizeAndKey(t *testing.T) {
	cf := CaseFile{TaxID: " 900014381-7 ", CaseNumber: " 96002150 "}.Normalize()

	assert.Equal(t, "900014381", cf.TaxID)
	assert.Equal(t, "96002150", cf.CaseNumber)
	assert.Equal(t, "900014381-96002150", cf.Key())
}

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected Period
	}{
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Period{2024, 1}},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Period{2024, 1}},
		{time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), Period{2024, 2}},
		{time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), Period{2024, 3}},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), Period{2024, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			assert.Equal(t, tt.expected, PeriodOf(tt.date))
		})
	}
}

func TestPeriod_FolderAndOrder(t *testing.T) {
	assert.Equal(t, "2T", Period{2024, 2}.Folder())
	assert.Equal(t, "2024-Q2", Period{2024, 2}.String())
	assert.True(t, Period{2023, 4}.Before(Period{2024, 1}))
	assert.True(t, Period{2024, 1}.Before(Period{2024, 2}))
	assert.False(t, Period{2024, 2}.Before(Period{2024, 2}))
}

func TestSearchWindow(t *testing.T) {
	w := SearchWindow{
		Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, w.Valid())
	start, end := w.Format()
	assert.Equal(t, "02/01/2024", start)
	assert.Equal(t, "27/03/2024", end)

	w.Start, w.End = w.End, w.Start
	assert.False(t, w.Valid())
}

func TestAuditRecord_JSONFields(t *testing.T) {
	rec := AuditRecord{
		TaxID:      "900014381",
		CaseNumber: "96002150",
		Year:       2024,
		Quarter:    1,
		Uploaded:   true,
		ImageURLs:  []string{"https://storage.googleapis.com/b/a.png"},
	}

	jsonBytes, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"nit_operador":"900014381"`)
	assert.Contains(t, string(jsonBytes), `"subido_a_storage":true`)
	assert.Contains(t, string(jsonBytes), `"trimestre":1`)
	assert.Equal(t, Period{2024, 1}, rec.Period())
}
