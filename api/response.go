package api

import (
	"encoding/json"
	"net/http"

	"github.com/cmazet/ragchat/internal/log"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON encodes data as the response body. Once the header is sent a
// failed encode cannot change the status, so it is only logged.
func writeJSON(logger log.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding response failed", "error", err)
	}
}

// writeError writes an ErrorResponse with the given status code.
func writeError(logger log.Logger, w http.ResponseWriter, status int, errText, message string) {
	writeJSON(logger, w, status, ErrorResponse{Error: errText, Message: message})
}
