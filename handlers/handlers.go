package handlers

import (
	"encoding/json"
	"net/http"
)

// Common error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, statusCode int, err string, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   err,
		Message: message,
	})
}
