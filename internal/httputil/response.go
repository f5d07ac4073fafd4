package httputil

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/formahub/auth-api/internal/validation"
)

// ErrorResponse is the envelope for every failure path. The message is
// human-readable; the code is stable for clients to branch on.
type ErrorResponse struct {
	Message   string                  `json:"message"`
	Code      string                  `json:"code,omitempty"`
	Errors    []validation.FieldError `json:"errors,omitempty"`
	IsPending bool                    `json:"isPending,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondMessage sends a bare message envelope.
func RespondMessage(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, map[string]string{"message": message}, statusCode)
}

// RespondError sends a JSON error response with a machine-readable code.
func RespondError(w http.ResponseWriter, message, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Message: message, Code: code}, statusCode)
}

// RespondValidationErrors sends a 400 with the full list of failing fields.
func RespondValidationErrors(w http.ResponseWriter, errs []validation.FieldError) {
	RespondJSON(w, ErrorResponse{
		Message: "validation failed",
		Code:    CodeValidationFailed,
		Errors:  errs,
	}, http.StatusBadRequest)
}
