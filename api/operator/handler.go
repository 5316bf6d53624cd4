// Package operator exposes the fleet-operator endpoints: network
// overview, intervention history and manual quarantine control.
package operator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/reservation"
	"github.com/usermihir/Agentic-EV/core/trust"
)

// StationRepo reads stations and their connectors.
type StationRepo interface {
	Stations() []model.Station
	ByStation(stationID string) ([]model.Connector, error)
}

// AccuracySource reports the rolling promised-vs-actual p90.
type AccuracySource interface {
	AccuracyP90() float64
}

// InterventionStore queries the audit trail.
type InterventionStore interface {
	Query(since time.Time, limit int) ([]model.Intervention, error)
}

// Quarantiner toggles a connector's rotation state; implemented by the
// reservation manager.
type Quarantiner interface {
	Quarantine(ctx context.Context, connectorID, action, reason string) (model.Connector, error)
}

// connectorView is one connector row in the overview.
type connectorView struct {
	model.Connector
	Badge   string  `json:"trust_badge"`
	Index   float64 `json:"reliability_index"`
	Anomaly float64 `json:"anomaly_score"`
	Basis   string  `json:"anomaly_basis,omitempty"`
}

// stationView aggregates a station's connectors.
type stationView struct {
	StationID       string          `json:"station_id"`
	Name            string          `json:"name"`
	Free            int             `json:"free"`
	Total           int             `json:"total"`
	EmergencyBuffer int             `json:"emergency_buffer"`
	BufferOK        bool            `json:"buffer_ok"`
	Uptime          float64         `json:"uptime"`
	WorstBadge      string          `json:"worst_badge"`
	AvgIndex        float64         `json:"avg_reliability_index"`
	Connectors      []connectorView `json:"connectors"`
}

// snifferView is one suspicious connector in the overview.
type snifferView struct {
	ConnectorID string  `json:"connector_id"`
	StationID   string  `json:"station_id"`
	Anomaly     float64 `json:"anomaly_score"`
	Basis       string  `json:"basis"`
}

type overview struct {
	Stations    []stationView  `json:"stations"`
	Sniffers    []snifferView  `json:"sniffers"`
	Leaderboard []leaderRow    `json:"trust_leaderboard"`
	AccuracyP90 float64        `json:"promise_accuracy_p90_min"`
}

// leaderRow ranks a station by mean reliability index.
type leaderRow struct {
	StationID string  `json:"station_id"`
	AvgIndex  float64 `json:"avg_reliability_index"`
}

func authorized(r *http.Request, token string) bool {
	return token == "" || r.Header.Get("Authorization") == "Bearer "+token
}

// NewOverviewHandler serves GET /api/operator/overview.
func NewOverviewHandler(repo StationRepo, scorer *trust.Scorer, accuracy AccuracySource, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		out := overview{}
		if accuracy != nil {
			out.AccuracyP90 = accuracy.AccuracyP90()
		}
		for _, st := range repo.Stations() {
			conns, err := repo.ByStation(st.ID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			view := stationView{
				StationID:       st.ID,
				Name:            st.Name,
				Total:           len(conns),
				EmergencyBuffer: st.EmergencyBuffer,
			}
			var badges []trust.Badge
			inRotation := 0
			for _, c := range conns {
				if c.Status == model.StatusAvailable {
					view.Free++
				}
				if c.Status != model.StatusFaulted {
					inRotation++
				}
				score := scorer.ScoreConnector(c)
				badges = append(badges, score.Badge)
				view.AvgIndex += score.Index
				view.Connectors = append(view.Connectors, connectorView{
					Connector: c,
					Badge:     string(score.Badge),
					Index:     score.Index,
					Anomaly:   score.Anomaly,
					Basis:     score.Basis,
				})
				if score.QuarantineCandidate {
					out.Sniffers = append(out.Sniffers, snifferView{
						ConnectorID: c.ID,
						StationID:   st.ID,
						Anomaly:     score.Anomaly,
						Basis:       score.Basis,
					})
				}
			}
			if len(conns) > 0 {
				view.AvgIndex /= float64(len(conns))
				view.Uptime = float64(inRotation) / float64(len(conns))
			}
			view.BufferOK = view.Free >= st.EmergencyBuffer
			view.WorstBadge = string(trust.WorstBadge(badges))
			out.Stations = append(out.Stations, view)
		}
		for _, st := range out.Stations {
			out.Leaderboard = append(out.Leaderboard, leaderRow{StationID: st.StationID, AvgIndex: st.AvgIndex})
		}
		sort.SliceStable(out.Leaderboard, func(i, j int) bool {
			return out.Leaderboard[i].AvgIndex > out.Leaderboard[j].AvgIndex
		})
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewInterventionsHandler serves GET /api/operator/interventions with
// optional since (RFC3339), limit, station_id and action query
// parameters.
func NewInterventionsHandler(store InterventionStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		since := time.Time{}
		if s := r.URL.Query().Get("since"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				since = t
			}
		}
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				limit = n
			}
		}
		station := r.URL.Query().Get("station_id")
		action := r.URL.Query().Get("action")

		// Field filters run over the full window, so the limit still
		// means "N newest matching".
		queryLimit := limit
		if station != "" || action != "" {
			queryLimit = 0
		}
		records, err := store.Query(since, queryLimit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		filtered := make([]model.Intervention, 0, len(records))
		for _, rec := range records {
			if station != "" && rec.StationID != station {
				continue
			}
			if action != "" && rec.Action != action {
				continue
			}
			filtered = append(filtered, rec)
			if limit > 0 && len(filtered) == limit {
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(filtered); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

type quarantineRequest struct {
	ConnectorID string `json:"connector_id"`
	Action      string `json:"action"`
	Reason      string `json:"reason"`
}

// NewQuarantineHandler serves POST /api/operator/quarantine for manual
// QUARANTINE / UNQUARANTINE actions.
func NewQuarantineHandler(mgr Quarantiner, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req quarantineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Action == "" {
			req.Action = reservation.ActionQuarantine
		}
		conn, err := mgr.Quarantine(r.Context(), req.ConnectorID, req.Action, req.Reason)
		if err != nil {
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
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(conn); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
