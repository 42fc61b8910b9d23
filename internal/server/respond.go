package server

import (
	"encoding/json"
	"net/http"
)

type apiResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Error: message})
}
