// Package handler is the RPC service adapter: it binds engine.Engine
// operations to HTTP/JSON endpoints over gorilla/mux, translating
// between wire DTOs and model types and mapping engine errors onto
// the response-code table in ReservationHandler.
package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON is the one place every handler writes a response through.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorBody is the shape of every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}
