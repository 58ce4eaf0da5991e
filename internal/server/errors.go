package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/app"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/lock"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/pipeline"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/schemas"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/source"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrRunNotFound indicates an unknown ingestion id.
type ErrRunNotFound struct {
	ID string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *ErrValidation
		schemaErr   *schemas.ValidationError
		filterErr   *source.ValidationError
		runNotFound *ErrRunNotFound
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &schemaErr),
		errors.As(err, &filterErr),
		errors.Is(err, types.ErrInvalidRequest),
		errors.Is(err, pipeline.ErrDuplicateCaseFile),
		errors.Is(err, app.ErrNoCredentials):
		return http.StatusBadRequest
	case errors.As(err, &runNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
