package web

import (
	"net/http"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// handlePreview classifies an uploaded export without writing anything.
// Form fields: file, profile (optional), ignore_errors.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	src, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	ignore, err := boolValue(r, "ignore_errors")
	if err != nil {
		respondBadRequest(w, "invalid ignore_errors")
		return
	}

	result, err := s.imports.Preview(r.Context(), eventID, src, core.PreviewOptions{IgnoreErrors: ignore})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImport commits an uploaded export.
// Form fields: file, profile (optional), ignore_errors, send_emails.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	src, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	ignore, err := boolValue(r, "ignore_errors")
	if err != nil {
		respondBadRequest(w, "invalid ignore_errors")
		return
	}
	send, err := boolValue(r, "send_emails")
	if err != nil {
		respondBadRequest(w, "invalid send_emails")
		return
	}

	result, err := s.imports.Commit(r.Context(), eventID, src, core.CommitOptions{
		IgnoreErrors: ignore,
		SendEmails:   send,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleImportStatus reports the commit limiter's occupancy.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.imports.Limiter().Status())
}
