package web

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/JonMunkholm/qbank/internal/core"
)

// errNoFile is returned when an upload carries no "file" part.
var errNoFile = errors.New("no file provided")

// multipartMemory is the part of an upload kept in memory; the rest spills
// to temporary files.
const multipartMemory = 32 << 20

// CountResponse is the body of GET /api/records/count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// handleHealth reports liveness. It does not touch the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCount returns the number of records in the store.
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		s.respondError(w, r, fmt.Errorf("count records: %w", err), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// handleRunStatus returns the state of the run limiter.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// handleImport runs an import of the configured source and returns the run
// summary. Batch and file failures are part of a 200 response.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err, acquireStatus(err))
		return
	}
	defer s.limiter.Release()

	res, err := s.importer.Run(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, core.ErrSourceNotFound):
			status = http.StatusNotFound
		case errors.Is(err, core.ErrNoFiles):
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, r, err, status)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleUpload imports one uploaded CSV file through the same pipeline.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.ContentLength > s.maxUpload {
		s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.maxUpload), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid upload form: %w", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err, acquireStatus(err))
		return
	}
	defer s.limiter.Release()

	fr := s.importer.ImportFile(ctx, filepath.Base(header.Filename), 0, file, header.Size)
	if fr.Failure != nil {
		status := http.StatusBadRequest
		if errors.Is(fr.Failure, core.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.respondError(w, r, fr.Failure, status)
		return
	}

	writeJSON(w, http.StatusOK, fr)
}

func acquireStatus(err error) int {
	if errors.Is(err, core.ErrRunInProgress) {
		return http.StatusConflict
	}
	return http.StatusServiceUnavailable
}
