package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eargollo/dupview/internal/catalog"
	"github.com/eargollo/dupview/internal/review"
)

// ErrorBody is the standard error envelope. Error is always a human-readable
// string; Code is stable and machine-readable.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// okResponse is returned by mutations that have nothing else to report.
type okResponse struct {
	OK bool `json:"ok"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON serialises v as JSON with status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON encode", "error", err)
	}
}

// writeError writes a standard error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: message, Code: code})
}

// writeServiceError maps an error from the review layer onto the HTTP status
// and code clients rely on. Unknown errors become 500 INTERNAL_ERROR.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrFolderUnavailable):
		writeError(w, http.StatusBadRequest, "FOLDER_UNAVAILABLE", err.Error())
	case errors.Is(err, review.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", err.Error())
	case errors.Is(err, review.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
	case errors.Is(err, review.ErrSessionReset):
		writeError(w, http.StatusConflict, "SESSION_RESET", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, review.ErrIO):
		writeError(w, http.StatusInternalServerError, "IO_ERROR", err.Error())
	default:
		slog.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// decodeBody reads a JSON request body into v and validates its struct tags.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// fileIDParam parses the {id} URL parameter as a catalog id.
func fileIDParam(w http.ResponseWriter, r *http.Request) (catalog.ID, bool) {
	id, err := catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid file id")
		return 0, false
	}
	return id, true
}
