package httpapi

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the standard JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message, "")
}

func internalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message, "")
}
