package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formforge/formforge/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps store error kinds onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case errs.ErrKindNotFound:
			status = http.StatusNotFound
		case errs.ErrKindDuplicate:
			status = http.StatusConflict
		case errs.ErrKindInvalidInput:
			status = http.StatusBadRequest
		case errs.ErrKindPermissionDenied:
			status = http.StatusForbidden
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}
	return nil
}
