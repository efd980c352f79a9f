package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"galaxy-trader/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"agents": s.deps.Engine.AgentCount(),
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Engine.Agents())
}

func (s *Server) handlePilots(w http.ResponseWriter, r *http.Request) {
	records := s.deps.Progression.Pilots()
	out := make([]models.PilotSnapshot, 0, len(records))
	for _, rec := range records {
		if snap, ok := s.deps.Progression.Snapshot(rec.PilotID); ok {
			out = append(out, snap)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePilot(w http.ResponseWriter, r *http.Request) {
	pilotID := chi.URLParam(r, "pilotID")
	snap, ok := s.deps.Progression.Snapshot(pilotID)
	if !ok {
		writeError(w, http.StatusNotFound, "pilot not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBlockedZones(w http.ResponseWriter, r *http.Request) {
	blocked := s.deps.Danger.CurrentBlockedSet()
	if blocked == nil {
		blocked = []models.SectorID{}
	}
	writeJSON(w, http.StatusOK, blocked)
}

// threatReportBody is the host-facing payload for injecting a danger report.
type threatReportBody struct {
	Zone     string `json:"zone"`
	Severity int    `json:"severity"`
}

func (s *Server) handleThreatReport(w http.ResponseWriter, r *http.Request) {
	var body threatReportBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.deps.Engine.ReportThreat(models.SectorID(body.Zone), body.Severity, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reported"})
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Ledger.Snapshot(time.Now()))
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Cache.Snapshot())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, []models.TradeReport{})
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		trades []models.TradeReport
		err    error
	)
	if agent := r.URL.Query().Get("agent"); agent != "" {
		trades, err = s.deps.Store.GetTradesByAgent(r.Context(), agent, limit)
	} else {
		trades, err = s.deps.Store.GetTrades(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []models.TradeReport{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"agents":        s.deps.Engine.AgentCount(),
		"reservations":  s.deps.Ledger.LiveCount(time.Now()),
		"cached":        s.deps.Cache.Len(),
		"blocked_zones": len(s.deps.Danger.CurrentBlockedSet()),
	}
	if s.deps.Store != nil {
		if stats, err := s.deps.Store.GetTradeStats(r.Context()); err == nil {
			resp["trades"] = stats.TotalTrades
			resp["completed_trades"] = stats.Completed
			resp["total_profit"] = stats.TotalProfit
			resp["total_xp"] = stats.TotalXP
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
