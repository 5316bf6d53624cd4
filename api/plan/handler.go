// Package plan exposes the driver-facing planning endpoint.
package plan

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/planner"
)

// StationSource lists the candidate stations for a plan request.
type StationSource interface {
	Stations() []model.Station
}

// NewHandler returns an HTTP handler serving POST /api/plan. Requests
// must include an Authorization header with "Bearer <token>" when token
// is non-empty.
func NewHandler(p *planner.Planner, stations StationSource, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		var req planner.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		result, err := p.Plan(r.Context(), req, stations.Stations())
		if err != nil {
			if errors.Is(err, model.ErrValidation) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
