package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// errorBody is the envelope every error response uses:
// {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if JSON encoding fails.
func WriteJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff") // Prevent MIME type sniffing attacks
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Log at debug level - client disconnects are common and expected
		logger.Debug("failed to write response body", "error", err)
	}
}

// WriteError writes a JSON error response in the shared envelope format.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}}, logger)
}
