package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/httputil"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleConfidenceChart renders the recorded per-class confidences as an
// HTML line chart, oldest on the left.
// Query params:
//   - limit (optional; default 100) number of recorded states to plot
//   - tz (optional; default UTC) zone for the time axis
func (s *Server) handleConfidenceChart(w http.ResponseWriter, r *http.Request) {
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

	line := confidenceChart(states, loc)
	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// confidenceChart builds the chart from newest-first records, labelling the
// time axis in loc.
func confidenceChart(states []db.StateRecord, loc *time.Location) *charts.Line {
	n := len(states)
	x := make([]string, n)
	published := make([]opts.LineData, n)
	walking := make([]opts.LineData, n)
	vehicle := make([]opts.LineData, n)
	stationary := make([]opts.LineData, n)

	for i, st := range states {
		j := n - 1 - i
		x[j] = st.UpdatedAt.In(loc).Format("15:04:05")
		published[j] = opts.LineData{Value: st.Confidence, Name: string(st.Type)}
		if st.Details != nil {
			walking[j] = opts.LineData{Value: st.Details.WalkingConfidence}
			vehicle[j] = opts.LineData{Value: st.Details.VehicleConfidence}
			stationary[j] = opts.LineData{Value: st.Details.StationaryConfidence}
		} else {
			walking[j] = opts.LineData{Value: 0}
			vehicle[j] = opts.LineData{Value: 0}
			stationary[j] = opts.LineData{Value: 0}
		}
	}

	subtitle := "no states recorded"
	if n > 0 {
		subtitle = fmt.Sprintf("%d states, latest %s", n, states[0].UpdatedAt.In(loc).Format(time.RFC3339))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Movement confidence", Width: "100%", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Movement confidence", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "confidence"}),
	)
	line.SetXAxis(x).
		AddSeries("published", published).
		AddSeries("walking", walking).
		AddSeries("vehicle", vehicle).
		AddSeries("stationary", stationary)
	return line
}
