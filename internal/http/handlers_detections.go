package http

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/report"
)

func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	ds, err := s.deps.Calibration.List(r.Context())
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(newList(ds)).Write(w)
}

func (s *Server) handleNewDetection(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.deps.Calibration.NewDraft()).Write(w)
}

// handleSaveDetection serves both POST (new or upsert by body ID) and
// PUT /{id}, where the path ID wins.
func (s *Server) handleSaveDetection(w http.ResponseWriter, r *http.Request) {
	var d core.Detection
	if err := decodeJSON(w, r, &d); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		d.ID = id
	}

	saved, err := s.deps.Calibration.Save(r.Context(), d)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	status := http.StatusCreated
	if r.Method == http.MethodPut {
		status = http.StatusOK
	}
	NewResponse().Status(status).JSON(saved).Write(w)
}

func (s *Server) handleGetDetection(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Calibration.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(d).Write(w)
}

func (s *Server) handleDeleteDetection(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Calibration.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDetectionReport(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Calibration.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Detection(&buf, d); err != nil {
		fail(w, r, log.OpExport, err)
		return
	}
	NewResponse().Attachment(report.DetectionFilename(d), report.FormatTXT.ContentType(), buf.Bytes()).Write(w)
}
