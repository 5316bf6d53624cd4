// Package reservations exposes the driver-facing reservation lifecycle
// endpoints.
package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/usermihir/Agentic-EV/core/model"
)

// Manager is the subset of the reservation manager the handlers use.
type Manager interface {
	Cancel(ctx context.Context, reservationID string) error
	StartSession(ctx context.Context, connectorID string, actualStartMin float64) (model.Reservation, error)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type cancelRequest struct {
	ReservationID string `json:"reservation_id"`
}

// NewCancelHandler serves POST /api/reservations/cancel.
func NewCancelHandler(mgr Manager, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := mgr.Cancel(r.Context(), req.ReservationID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

type startRequest struct {
	ConnectorID    string  `json:"connector_id"`
	ActualStartMin float64 `json:"actual_start_min"`
}

// NewStartSessionHandler serves POST /api/reservations/start, fulfilling
// the connector's active hold when charging begins.
func NewStartSessionHandler(mgr Manager, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConnectorID == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		res, err := mgr.StartSession(r.Context(), req.ConnectorID, req.ActualStartMin)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
