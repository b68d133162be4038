// Package statusapi serves the recorded update status over HTTP.
package statusapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/udisondev/updstatus/internal/db"
	"github.com/udisondev/updstatus/internal/model"
)

// StatusReader is satisfied by *db.UpdateStatusRepository.
type StatusReader interface {
	GetLast(ctx context.Context, tx db.Tx) (*model.UpdateStatus, error)
}

// Response is the JSON body of GET /status.
type Response struct {
	TransactionID int64 `json:"transaction_id"`
	Updated       bool  `json:"updated"`
	Subtype       int16 `json:"subtype"`
	Height        int32 `json:"height"`
	Timestamp     int32 `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler answers GET /status.
type Handler struct {
	statuses StatusReader
}

// NewHandler creates a new Handler.
func NewHandler(statuses StatusReader) *Handler {
	return &Handler{statuses: statuses}
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /status", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, err := h.statuses.GetLast(r.Context(), nil)
	if err != nil {
		slog.Error("reading update status", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "update status unavailable"})
		return
	}
	if status == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no update status"})
		return
	}

	resp := Response{TransactionID: status.TransactionID(), Updated: status.Updated}
	if t := status.Transaction; t != nil {
		resp.Subtype = t.Subtype
		resp.Height = t.Height
		resp.Timestamp = t.Timestamp
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}
