package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFieldErrors sends per-field validation messages so callers can
// surface them next to the offending inputs.
func writeFieldErrors(w http.ResponseWriter, errs domain.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": errs.Fields(),
	})
}
