package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/db"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/pipeline"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/schemas"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// maxBodyBytes bounds trigger payloads.
const maxBodyBytes = 4 << 20

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeFursRequest checks the body against the request schema, then the
// struct rules.
func decodeFursRequest(w http.ResponseWriter, r *http.Request) (*types.FuresRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}
	if !json.Valid(body) {
		return nil, &ErrValidation{Field: "body", Message: "malformed JSON"}
	}
	if err := schemas.ValidateFursRequest(body); err != nil {
		return nil, err
	}

	var req types.FuresRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// handleFurs runs a download and answers with the run summary. The run is
// detached from the request context so a dropped client does not abort
// uploads half way.
func (s *Server) handleFurs(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFursRequest(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	summary, err := s.runner.Run(context.WithoutCancel(r.Context()), req, nil)
	if err != nil {
		s.logger.Error("Run failed", zap.String("seccion", req.Section), zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleFursStream runs a download and streams state changes as SSE,
// ending with a "complete" event that carries the summary.
func (s *Server) handleFursStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFursRequest(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	onProgress := func(e pipeline.ProgressEvent) {
		if err := sse.WriteEvent("progress", e); err != nil {
			s.logger.Debug("Dropped progress event", zap.Error(err))
		}
	}
	summary, err := s.runner.Run(context.WithoutCancel(r.Context()), req, onProgress)
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	sse.WriteEvent("complete", summary) //nolint:errcheck
}

// RunDetail is a stored run with its audit rows.
type RunDetail struct {
	*db.Run
	Records []types.AuditRecord `json:"registros"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotImplemented, "run history requires DATABASE_URL")
		return
	}
	id := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		err := &ErrRunNotFound{ID: id}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	records, err := s.runs.AuditRecords(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, RunDetail{Run: run, Records: records})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotImplemented, "run history requires DATABASE_URL")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			err := &ErrValidation{Field: "limit", Message: "must be an integer between 1 and 500"}
			s.errorResponse(w, HTTPStatus(err), err.Error())
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}
