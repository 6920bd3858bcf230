package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/phenomenon0/daredevil-core/pkg/concierge"
)

// chatRequest is the POST /api/chat body. An empty sessionId opens a new
// session and the reply carries the assigned id.
type chatRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
}

func (d *daemon) server() *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", d.handleChat)
	mux.HandleFunc("GET /api/sessions/{id}", d.handleSession)
	mux.HandleFunc("GET /api/f1/years", d.handleYears)
	mux.HandleFunc("GET /api/f1/events/{year}", d.handleEvents)
	mux.HandleFunc("GET /api/f1/qualifying/{year}/{round}", d.handleQualifying)
	mux.HandleFunc("GET /health", d.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /ws", d.hub.ServeWS)

	return &http.Server{
		Addr:         d.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (d *daemon) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := d.svc.HandleUtterance(r.Context(), req.SessionID, req.UserID, req.Message)
	switch {
	case errors.Is(err, concierge.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, concierge.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		d.log.Error("chat turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, reply)
	}
}

func (d *daemon) handleSession(w http.ResponseWriter, r *http.Request) {
	view, ok := d.svc.SessionView(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (d *daemon) handleYears(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"years": d.f1.AvailableYears()})
}

func (d *daemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	events, err := d.f1.Schedule(r.Context(), year)
	if err != nil {
		d.log.Error("schedule fetch failed", zap.Int("year", year), zap.Error(err))
		writeError(w, http.StatusBadGateway, "sports data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "events": events})
}

func (d *daemon) handleQualifying(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	round, err := strconv.Atoi(r.PathValue("round"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "round must be an integer")
		return
	}
	results, err := d.f1.Qualifying(r.Context(), year, round)
	if err != nil {
		d.log.Error("qualifying fetch failed",
			zap.Int("year", year), zap.Int("round", round), zap.Error(err))
		writeError(w, http.StatusBadGateway, "sports data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "round": round, "results": results})
}

func (d *daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  d.cfg.ServiceName,
		"sessions": d.svc.SessionCount(),
		"streams":  d.hub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
