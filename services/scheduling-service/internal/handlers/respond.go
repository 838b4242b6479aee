package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Unresolved is only set on no_common_slot.
	Unresolved []string `json:"unresolved_participants,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		a.logger.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: kind.String(), Message: apperr.PublicMessage(err)})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched when
// optional is set.
func decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid json body")
	}
	return nil
}

func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, apperr.Validation("invalid %s, expected RFC 3339", field)
	}
	return t, nil
}

func parseOptionalTime(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := parseTime(field, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
