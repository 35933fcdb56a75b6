// Package api serves the read-only movement HTTP API and debug charts.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/publish"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Engine is the read side of motion.Engine used by the handlers.
type Engine interface {
	SessionID() string
	Config() motion.Config
	State() motion.MovementState
	Stats() motion.Stats
	Calibration() motion.CalibrationProfile
	Faults() motion.FaultState
}

// History is the recorded state and fault store. It may be nil when the
// daemon runs without a database.
type History interface {
	States(ctx context.Context, limit int) ([]db.StateRecord, error)
	Faults(ctx context.Context, limit int) ([]db.FaultRecord, error)
}

// SinkStatser reports per-sink delivery counters.
type SinkStatser interface {
	Stats() map[string]publish.SinkStats
}

type Server struct {
	engine   Engine
	history  History
	sinks    SinkStatser
	deviceID string
}

// NewServer creates the API server. history and sinks may be nil.
func NewServer(engine Engine, history History, sinks SinkStatser, deviceID string) *Server {
	return &Server{
		engine:   engine,
		history:  history,
		sinks:    sinks,
		deviceID: deviceID,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/movement", s.showMovement)
	mux.HandleFunc("/api/movement/history", s.listHistory)
	mux.HandleFunc("/api/movement/faults", s.listFaults)
	mux.HandleFunc("/api/movement/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/debug/movement/chart", s.handleConfidenceChart)
	return mux
}
