// Package api exposes ResumeBot's webhook and inspection endpoints.
//
// This file holds the JSON envelope writer shared by every handler.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// fallbackErrorResponse is marshaled once at startup so the error path never
// depends on runtime encoding succeeding.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse marshals a models response envelope and writes it with
// the given status code. A marshal failure degrades to the canned
// internal-server-error body.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal before touching headers so an encoding error can still change
	// the status code.
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}
