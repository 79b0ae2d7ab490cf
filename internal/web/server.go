// Package web provides the HTTP status page, exports and operator controls.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/oven-monitor/internal/engine"
	"github.com/sweeney/oven-monitor/internal/history"
	"github.com/sweeney/oven-monitor/internal/status"
	"github.com/sweeney/oven-monitor/internal/telemetry"
)

// Control forwards operator commands to the session. Implementations must
// be safe for concurrent use.
type Control interface {
	ToggleRelay() error
	SetTarget(v float64) error
	SetMode(name string) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	control    Control
}

// New creates a Server that reads state from the tracker and sends commands
// to control. If gatherer is nil, /metrics is not served.
func New(addr string, tracker *status.Tracker, control Control, gatherer prometheus.Gatherer) *Server {
	s := &Server{tracker: tracker, control: control}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/data.csv", s.handleCSV).Methods(http.MethodGet)
	r.HandleFunc("/bands.json", s.handleBands).Methods(http.MethodGet)
	r.HandleFunc("/chart.png", s.handleChart).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// On the root router, a wrong method answers 405; a subrouter would 404.
	r.HandleFunc("/api/relay/toggle", s.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/api/target", s.handleTarget).Methods(http.MethodPost)
	r.HandleFunc("/api/mode", s.handleMode).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handlers.LoggingHandler(log.Writer(), handlers.RecoveryHandler()(r)),
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	v := s.tracker.Snapshot().View
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="data.csv"`)
	if err := history.WriteCSV(w, v.Temperatures, v.Relays); err != nil {
		log.Printf("web: write csv: %v", err)
	}
}

// BandJSON is one relay-on interval in epoch milliseconds.
type BandJSON struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	v := s.tracker.Snapshot().View
	out := make([]BandJSON, len(v.Bands))
	for i, b := range v.Bands {
		out[i] = BandJSON{From: b.From.UnixMilli(), To: b.To.UnixMilli()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	v := s.tracker.Snapshot().View
	png, err := RenderChart(v, chartWidth, chartHeight)
	if errors.Is(err, ErrNotEnoughData) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Printf("web: render chart: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

type targetRequest struct {
	Target *float64 `json:"target"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.control.ToggleRelay(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"target\": <number>}"})
		return
	}
	if err := s.control.SetTarget(*req.Target); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mode == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"mode\": \"off\"|\"auto_switch\"}"})
		return
	}
	if err := s.control.SetMode(req.Mode); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, telemetry.ErrInvalidTarget), errors.Is(err, engine.ErrUnknownMode):
		code = http.StatusBadRequest
	case errors.Is(err, engine.ErrModeUnsupported):
		code = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
