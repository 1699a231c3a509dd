package web

import (
	"net/http"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// ImportLogResponse is an import log with its derived figures.
type ImportLogResponse struct {
	core.ImportLog
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"duration_ms"`
}

func toImportLogResponse(l core.ImportLog) ImportLogResponse {
	return ImportLogResponse{
		ImportLog:  l,
		Skipped:    l.Totals.Skipped(),
		DurationMs: l.Duration().Milliseconds(),
	}
}

// handleListImportLogs returns the import history of an event, newest first.
func (s *Server) handleListImportLogs(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}

	logs, err := s.imports.ListImportLogs(r.Context(), eventID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]ImportLogResponse, len(logs))
	for i, l := range logs {
		out[i] = toImportLogResponse(l)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetImportLog returns one import log.
func (s *Server) handleGetImportLog(w http.ResponseWriter, r *http.Request) {
	logID, ok := uuidParam(w, r, "logID")
	if !ok {
		return
	}

	l, err := s.imports.GetImportLog(r.Context(), logID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportLogResponse(l))
}
