package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// writeJSON is used for the responses the WebDAV engine does not produce
// itself: health checks and requests refused before reaching it.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func errorBody(r *http.Request, msg string) errResponse {
	return errResponse{Error: msg, RequestID: middleware.GetReqID(r.Context())}
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}
