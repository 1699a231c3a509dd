package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/eventsync"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
)

// SyncRequest is the body of POST /api/events/{eventID}/sync.
type SyncRequest struct {
	SendEmails bool `json:"send_emails"`
	FullResync bool `json:"full_resync"`
}

// handleSyncPreview previews the next sync of an event. ?full=true ignores
// the watermark and ?ignore_errors=true reports can_import despite row errors.
func (s *Server) handleSyncPreview(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	full, err := queryBool(r, "full")
	if err != nil {
		respondBadRequest(w, "invalid full")
		return
	}

	ignore, err := queryBool(r, "ignore_errors")
	if err != nil {
		respondBadRequest(w, "invalid ignore_errors")
		return
	}

	result, err := s.sync.Preview(r.Context(), eventID, eventsync.Options{FullResync: full, IgnoreErrors: ignore})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSync imports the attendees of an event from the ticketing platform.
// An empty body is accepted and means no emails.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}

	var req SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	result, err := s.sync.Import(r.Context(), eventID, eventsync.Options{
		SendEmails: req.SendEmails,
		FullResync: req.FullResync,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleRemoteEvents lists the ticketing events, for linking.
func (s *Server) handleRemoteEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.sync.RemoteEvents(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if events == nil {
		events = []ticketing.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleRemoteSessions lists the sessions of a ticketing event, for
// mapping them to slots.
func (s *Server) handleRemoteSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sync.RemoteSessions(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []ticketing.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSaveCredentials verifies and stores the ticketing credentials.
func (s *Server) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var creds ticketing.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	if err := s.sync.SaveCredentials(r.Context(), creds); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON decodes a small JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
