package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest marks structurally invalid trigger input.
var ErrInvalidRequest = errors.New("invalid request")

// FuresRequest is the trigger payload accepted by the HTTP API and the CLI.
type FuresRequest struct {
	TokenSER     string          `json:"token_ser,omitempty"`
	Year         *int            `json:"year,omitempty" validate:"omitempty,gte=2000,lte=2100"`
	NitFrom      *int64          `json:"nitDesde,omitempty" validate:"omitempty,gte=0"`
	NitTo        *int64          `json:"nitHasta,omitempty" validate:"omitempty,gte=0"`
	Section      string          `json:"seccion" validate:"required,max=64,excludesall=/."`
	FromDatabase bool            `json:"desde_bd,omitempty"`
	Data         []FuresDataItem `json:"data,omitempty" validate:"omitempty,dive"`
}

// FuresDataItem is one case file as sent in a request body.
type FuresDataItem struct {
	TaxID            string `json:"nitOperador" validate:"required,max=20,excludesall=/."`
	CaseNumber       string `json:"expediente" validate:"required,max=40,excludesall=/."`
	FilingNumber     string `json:"radicado,omitempty"`
	Year             *int   `json:"year,omitempty" validate:"omitempty,gte=2000,lte=2100"`
	Quarters         []int  `json:"trimestre,omitempty" validate:"omitempty,dive,min=1,max=4"`
	AssignedQuarters []int  `json:"trimestre_asignado,omitempty" validate:"omitempty,dive,min=1,max=4"`
	AssignedYear     *int   `json:"year_asignado,omitempty" validate:"omitempty,gte=2000,lte=2100"`
	ServiceCode      string `json:"codigo_servicio,omitempty"`
}

// CaseFile normalizes the request item into the pipeline's case-file model.
func (d FuresDataItem) CaseFile() CaseFile {
	return CaseFile{
		TaxID:            d.TaxID,
		CaseNumber:       d.CaseNumber,
		Year:             d.Year,
		AssignedYear:     d.AssignedYear,
		Quarters:         d.Quarters,
		AssignedQuarters: d.AssignedQuarters,
		FilingNumber:     d.FilingNumber,
		ServiceCode:      d.ServiceCode,
	}.Normalize()
}

// CaseFiles returns every request item as a CaseFile.
func (r *FuresRequest) CaseFiles() []CaseFile {
	out := make([]CaseFile, 0, len(r.Data))
	for _, item := range r.Data {
		out = append(out, item.CaseFile())
	}
	return out
}

// Validate validates the request using the validator plus cross-field rules.
func (r *FuresRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.NitFrom != nil && r.NitTo != nil && *r.NitTo < *r.NitFrom {
		return fmt.Errorf("%w: nitHasta (%d) is lower than nitDesde (%d)", ErrInvalidRequest, *r.NitTo, *r.NitFrom)
	}
	if len(r.Data) == 0 && !r.FromDatabase {
		return fmt.Errorf("%w: data is required unless desde_bd is set", ErrInvalidRequest)
	}
	return nil
}
