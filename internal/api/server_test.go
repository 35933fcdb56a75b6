package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/publish"
	"github.com/banshee-data/motion.report/internal/testutil"
)

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeEngine struct {
	state  motion.MovementState
	faults motion.FaultState
}

func (f *fakeEngine) SessionID() string           { return "session-1" }
func (f *fakeEngine) Config() motion.Config       { return motion.DefaultConfig() }
func (f *fakeEngine) State() motion.MovementState { return f.state }
func (f *fakeEngine) Stats() motion.Stats {
	return motion.Stats{Ticks: 3, Published: 2, LastTier: motion.TierEnhanced}
}
func (f *fakeEngine) Calibration() motion.CalibrationProfile {
	return motion.CalibrationProfile{BaselineNoise: 0.1}
}
func (f *fakeEngine) Faults() motion.FaultState { return f.faults }

type fakeSinks map[string]publish.SinkStats

func (f fakeSinks) Stats() map[string]publish.SinkStats { return f }

func walking() motion.MovementState {
	at := testTime
	supported := true
	return motion.MovementState{
		Type:        motion.TypeWalking,
		Confidence:  0.8,
		LastUpdated: &at,
		IsSupported: &supported,
		Details:     &motion.Details{WalkingConfidence: 0.8, VehicleConfidence: 0.1, StationaryConfidence: 0.1},
	}
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := &fakeEngine{state: walking(), faults: motion.FaultState{ErrorCount: 1}}
	return NewServer(engine, store, fakeSinks{"redis": {Published: 2}}, "imu-1"), store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(h, testutil.LocalRequest(http.MethodGet, path, nil))
}

func TestShowMovement(t *testing.T) {
	server, _ := setupTestServer(t)
	w := get(t, server.ServeMux(), "/api/movement")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]interface{}
	testutil.DecodeJSON(t, w, &got)
	assert.Equal(t, "walking", got["type"])
	assert.Equal(t, 0.8, got["confidence"])
	assert.Equal(t, "imu-1", got["device_id"])
	assert.Equal(t, "session-1", got["session_id"])
	assert.Equal(t, true, got["is_supported"])
	assert.Equal(t, "2024-06-01T12:00:00Z", got["last_updated"])
}

func TestShowMovement_MethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)
	w := testutil.Serve(server.ServeMux(), testutil.LocalRequest(http.MethodPost, "/api/movement", nil))
	testutil.AssertStatusCode(t, w, http.StatusMethodNotAllowed)
}

func TestListHistory(t *testing.T) {
	server, store := setupTestServer(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		st := walking()
		at := testTime.Add(time.Duration(i) * time.Second)
		st.LastUpdated = &at
		require.NoError(t, store.RecordState(ctx, "imu-1", "session-1", st))
	}

	w := get(t, server.ServeMux(), "/api/movement/history?limit=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got []db.StateRecord
	testutil.DecodeJSON(t, w, &got)
	require.Len(t, got, 2)
	assert.True(t, got[0].UpdatedAt.After(got[1].UpdatedAt))

	for _, bad := range []string{"0", "-3", "abc", "5000"} {
		w := get(t, server.ServeMux(), "/api/movement/history?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", bad)
	}

	w = get(t, server.ServeMux(), "/api/movement/history?limit=1&tz=Asia/Tokyo")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "2024-06-01T21:00:02+09:00")

	w = get(t, server.ServeMux(), "/api/movement/history?tz=Nowhere/Special")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListHistory_NoDatabase(t *testing.T) {
	server := NewServer(&fakeEngine{state: walking()}, nil, nil, "imu-1")
	w := get(t, server.ServeMux(), "/api/movement/history")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = get(t, server.ServeMux(), "/api/movement/faults")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recent":[]`)
}

func TestListFaults(t *testing.T) {
	server, store := setupTestServer(t)
	require.NoError(t, store.RecordFault(context.Background(), "imu-1", "session-1", motion.FaultEvent{
		Stage: motion.StageFilter, Severity: motion.SeverityMedium, ErrorCount: 1, At: testTime,
	}))

	w := get(t, server.ServeMux(), "/api/movement/faults")
	require.Equal(t, http.StatusOK, w.Code)
	var got faultsResponse
	testutil.DecodeJSON(t, w, &got)
	assert.Equal(t, uint32(1), got.Current.ErrorCount)
	require.Len(t, got.Recent, 1)
	assert.Equal(t, "filter", got.Recent[0].Stage)
	assert.Equal(t, "MEDIUM", got.Recent[0].Severity)
}

func TestShowStats(t *testing.T) {
	server, _ := setupTestServer(t)
	w := get(t, server.ServeMux(), "/api/movement/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var got statsResponse
	testutil.DecodeJSON(t, w, &got)
	assert.Equal(t, uint64(3), got.Engine.Ticks)
	assert.Equal(t, motion.TierEnhanced, got.Engine.LastTier)
	assert.Equal(t, 0.1, got.Calibration.BaselineNoise)
	assert.Equal(t, uint64(2), got.Sinks["redis"].Published)
}

func TestShowConfig(t *testing.T) {
	server, _ := setupTestServer(t)
	w := get(t, server.ServeMux(), "/api/config")
	require.Equal(t, http.StatusOK, w.Code)

	var got configResponse
	testutil.DecodeJSON(t, w, &got)
	assert.Equal(t, configResponse{
		SampleSize:          30,
		UpdateInterval:      "1s",
		UpdateIntervalMs:    1000,
		VehicleThreshold:    1.7,
		WalkingThreshold:    0.55,
		MinConfidence:       0.5,
		TemporalSmoothing:   true,
		AdaptiveThresholds:  true,
		SafeMode:            true,
		MaxSampleBufferSize: 60,
		ErrorThreshold:      3,
		DeviceID:            "imu-1",
	}, got)
}

func TestShowVersion(t *testing.T) {
	server, _ := setupTestServer(t)
	w := get(t, server.ServeMux(), "/api/version")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"dev"`)
}

func TestConfidenceChart(t *testing.T) {
	server, store := setupTestServer(t)
	require.NoError(t, store.RecordState(context.Background(), "imu-1", "session-1", walking()))

	w := get(t, server.ServeMux(), "/debug/movement/chart")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "Movement confidence")
	assert.Contains(t, body, "stationary")
}

func TestConfidenceChart_OrdersOldestFirst(t *testing.T) {
	older := db.StateRecord{Type: motion.TypeStationary, Confidence: 0.6, UpdatedAt: testTime}
	newer := db.StateRecord{Type: motion.TypeWalking, Confidence: 0.9, UpdatedAt: testTime.Add(time.Second)}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	line := confidenceChart([]db.StateRecord{newer, older}, tokyo)
	require.Len(t, line.MultiSeries, 4)
	var buf bytes.Buffer
	require.NoError(t, line.Render(&buf))
	assert.Contains(t, buf.String(), "2024-06-01T21:00:01")
	data := line.MultiSeries[0].Data.([]opts.LineData)
	assert.Equal(t, 0.6, data[0].Value)
	assert.Equal(t, 0.9, data[1].Value)
}

func TestLoggingMiddleware(t *testing.T) {
	lines := testutil.CaptureLogs(t)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := get(t, h, "/api/movement")
	assert.Equal(t, http.StatusTeapot, w.Code)
	require.Len(t, *lines, 1)
	assert.Contains(t, (*lines)[0], "GET")
	assert.Contains(t, (*lines)[0], "/api/movement")
	assert.Contains(t, (*lines)[0], "418")
	assert.Contains(t, statusCodeColor(http.StatusTeapot), "418")
}
