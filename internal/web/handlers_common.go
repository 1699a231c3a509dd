package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/source"
)

// uuidParam parses a UUID path parameter. On failure it writes a 400 and
// returns false.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondBadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// boolValue reads a boolean form or query value; absent means false.
func boolValue(r *http.Request, name string) (bool, error) {
	v := r.FormValue(name)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// readUpload reads the multipart "file" field into a file source. The body
// is capped at the configured maximum size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*source.File, bool) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondTooLarge(w)
			return nil, false
		}
		respondBadRequest(w, "invalid multipart form")
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, "no file provided")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		respondBadRequest(w, "failed to read file")
		return nil, false
	}
	if int64(len(data)) > maxSize {
		respondTooLarge(w)
		return nil, false
	}

	src, err := source.NewFile(header.Filename, data, r.FormValue("profile"))
	if err != nil {
		// Unknown profile names are request errors; the rest describe the file.
		if core.MapError(err).Code == "ERR000" {
			respondBadRequest(w, err.Error())
			return nil, false
		}
		respondError(w, r, err)
		return nil, false
	}
	return src, true
}

func respondTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
		Error:   "file too large",
		Message: "File exceeds the maximum size",
		Action:  "Split the file into smaller exports",
		Code:    "SRC005",
	})
}
