package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/publish"
	"github.com/banshee-data/motion.report/internal/units"
	"github.com/banshee-data/motion.report/internal/version"
)

type movementResponse struct {
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	motion.MovementState
}

func (s *Server) showMovement(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	httputil.WriteJSONOK(w, movementResponse{
		DeviceID:      s.deviceID,
		SessionID:     s.engine.SessionID(),
		MovementState: s.engine.State(),
	})
}

func (s *Server) historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	if !httputil.RequireGET(w, r) {
		return 0, false
	}
	if s.history == nil {
		httputil.ServiceUnavailable(w, "history is not recorded on this device")
		return 0, false
	}
	limit, err := httputil.QueryInt(r, "limit", db.DefaultHistoryLimit, 1, db.MaxHistoryLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return 0, false
	}
	return limit, true
}

// timezone reads the optional tz query param; timestamps default to UTC.
func timezone(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	loc, err := units.LoadTimezone(r.URL.Query().Get("tz"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	return loc, true
}

// listHistory returns recorded states newest first.
// Query params:
//   - limit (optional; default 100, max 1000)
//   - tz (optional; IANA zone for updated_at, default UTC)
func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyLimit(w, r)
	if !ok {
		return
	}
	loc, ok := timezone(w, r)
	if !ok {
		return
	}
	states, err := s.history.States(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve movement history: %v", err))
		return
	}
	for i := range states {
		states[i].UpdatedAt = states[i].UpdatedAt.In(loc)
	}
	httputil.WriteJSONOK(w, states)
}

type faultsResponse struct {
	Current motion.FaultState `json:"current"`
	Recent  []db.FaultRecord  `json:"recent"`
}

func (s *Server) listFaults(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	resp := faultsResponse{Current: s.engine.Faults(), Recent: []db.FaultRecord{}}
	if s.history != nil {
		limit, err := httputil.QueryInt(r, "limit", db.DefaultHistoryLimit, 1, db.MaxHistoryLimit)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		recent, err := s.history.Faults(r.Context(), limit)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve faults: %v", err))
			return
		}
		resp.Recent = recent
	}
	httputil.WriteJSONOK(w, resp)
}

type statsResponse struct {
	SessionID   string                       `json:"session_id"`
	Engine      motion.Stats                 `json:"engine"`
	Calibration motion.CalibrationProfile    `json:"calibration"`
	Sinks       map[string]publish.SinkStats `json:"sinks,omitempty"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	resp := statsResponse{
		SessionID:   s.engine.SessionID(),
		Engine:      s.engine.Stats(),
		Calibration: s.engine.Calibration(),
	}
	if s.sinks != nil {
		resp.Sinks = s.sinks.Stats()
	}
	httputil.WriteJSONOK(w, resp)
}

// configResponse mirrors the keys accepted by the movement config file.
type configResponse struct {
	SampleSize          int     `json:"sample_size"`
	UpdateInterval      string  `json:"update_interval"`
	UpdateIntervalMs    int64   `json:"update_interval_ms"`
	VehicleThreshold    float64 `json:"vehicle_threshold"`
	WalkingThreshold    float64 `json:"walking_threshold"`
	MinConfidence       float64 `json:"min_confidence"`
	TemporalSmoothing   bool    `json:"temporal_smoothing"`
	AdaptiveThresholds  bool    `json:"adaptive_thresholds"`
	SafeMode            bool    `json:"safe_mode"`
	MaxSampleBufferSize int     `json:"max_sample_buffer_size"`
	UseSimpleMode       bool    `json:"use_simple_mode"`
	ErrorThreshold      uint32  `json:"error_threshold"`
	DeviceID            string  `json:"device_id"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	cfg := s.engine.Config()
	httputil.WriteJSONOK(w, configResponse{
		SampleSize:          cfg.SampleSize,
		UpdateInterval:      cfg.UpdateInterval.String(),
		UpdateIntervalMs:    cfg.UpdateInterval.Milliseconds(),
		VehicleThreshold:    cfg.VehicleThreshold,
		WalkingThreshold:    cfg.WalkingThreshold,
		MinConfidence:       cfg.MinConfidence,
		TemporalSmoothing:   cfg.TemporalSmoothing,
		AdaptiveThresholds:  cfg.AdaptiveThresholds,
		SafeMode:            cfg.SafeMode,
		MaxSampleBufferSize: cfg.MaxSampleBufferSize,
		UseSimpleMode:       cfg.UseSimpleMode,
		ErrorThreshold:      cfg.ErrorThreshold,
		DeviceID:            s.deviceID,
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
		"now":        time.Now().UTC().Format(time.RFC3339),
	})
}
