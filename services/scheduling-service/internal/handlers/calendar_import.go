package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
)

const maxImportSize = 10 << 20

// ImportCalendar accepts a multipart upload in field "file" or a raw text/calendar body.
func (a *API) ImportCalendar(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !actor.IsAuthenticated() {
		a.writeError(w, r, apperr.Unauthenticated())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	var body io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			a.writeError(w, r, uploadError(err))
			return
		}
		defer file.Close()
		if !strings.EqualFold(filepath.Ext(header.Filename), ".ics") {
			a.writeError(w, r, apperr.Validation("file must have an .ics extension"))
			return
		}
		if header.Size == 0 {
			a.writeError(w, r, apperr.Validation("file is empty"))
			return
		}
		body = file
	} else {
		body = r.Body
	}

	res, err := a.importer.Import(r.Context(), actor, body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("file exceeds %d MB", maxImportSize>>20)
	}
	return apperr.Validation("multipart field \"file\" is required")
}
