package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shelfkeeper/shelfkeeper/internal/library"
)

// ErrorResponse wraps an error API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// respondError sends an error JSON response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondManagerError maps a manager error to its HTTP rendition.
func respondManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrBookNotFound),
		errors.Is(err, library.ErrMemberNotFound),
		errors.Is(err, library.ErrLoanNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, library.ErrBookExists),
		errors.Is(err, library.ErrMemberExists),
		errors.Is(err, library.ErrBookOnLoan),
		errors.Is(err, library.ErrMemberHasLoans):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, library.ErrNoCopies):
		respondError(w, http.StatusConflict, "UNAVAILABLE", err.Error())
	case errors.Is(err, library.ErrIDRequired),
		errors.Is(err, library.ErrNegativeQuantity):
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// decodeBody decodes the JSON request body into input, rejecting unknown
// fields. Returns false if an error response was already written.
func decodeBody(w http.ResponseWriter, r *http.Request, input any) bool {
	d := json.NewDecoder(r.Body)
	d.DisallowUnknownFields()
	if err := d.Decode(input); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body")
		return false
	}
	return true
}
