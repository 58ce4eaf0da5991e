package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestFuresRequest_Validate(t *testing.T) {
	validItem := FuresDataItem{TaxID: "900014381", CaseNumber: "96002150"}

	tests := []struct {
		name    string
		req     FuresRequest
		wantErr bool
	}{
		{"valid payload", FuresRequest{Section: "ia", Data: []FuresDataItem{validItem}}, false},
		{"valid database origin", FuresRequest{Section: "ia", FromDatabase: true}, false},
		{"missing section", FuresRequest{Data: []FuresDataItem{validItem}}, true},
		{"section with path separator", FuresRequest{Section: "../etc", Data: []FuresDataItem{validItem}}, true},
		{"no data and no database flag", FuresRequest{Section: "ia"}, true},
		{"inverted range", FuresRequest{Section: "ia", FromDatabase: true, NitFrom: int64Ptr(200), NitTo: int64Ptr(100)}, true},
		{"equal range", FuresRequest{Section: "ia", FromDatabase: true, NitFrom: int64Ptr(200), NitTo: int64Ptr(200)}, false},
		{"item without case number", FuresRequest{Section: "ia", Data: []FuresDataItem{{TaxID: "1"}}}, true},
		{"quarter out of range", FuresRequest{Section: "ia", Data: []FuresDataItem{{TaxID: "1", CaseNumber: "2", Quarters: []int{5}}}}, true},
		{"year out of range", FuresRequest{Section: "ia", Year: IntPtr(1990), FromDatabase: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFuresRequest_UnmarshalAndNormalize(t *testing.T) {
	body := `{
		"token_ser": "abc",
		"seccion": "ia",
		"data": [
			{"nitOperador": "900014381", "expediente": "96002150", "year": 2024, "trimestre": [1], "year_asignado": 2022, "trimestre_asignado": [3]}
		]
	}`

	var req FuresRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.NoError(t, req.Validate())

	cases := req.CaseFiles()
	require.Len(t, cases, 1)
	assert.Equal(t, 2024, cases[0].ResolvedYear(2025))
	assert.Equal(t, []int{1}, cases[0].ResolvedQuarters())
	assert.Equal(t, "abc", req.TokenSER)
}
