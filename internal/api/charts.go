package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/httputil"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/units"
)

// lapChart renders a quick HTML speed trace for one lap using go-echarts,
// with the detected segment boundaries drawn as vertical mark lines. This is
// a debugging-only endpoint; the real UI lives elsewhere.
// Query params:
//   - max_points (optional) to reduce payload size
func (s *Server) lapChart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	lapNumber, err := strconv.Atoi(r.PathValue("lap"))
	if err != nil {
		httputil.BadRequest(w, "invalid lap number")
		return
	}

	maxPoints := s.maxChartPoints
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	slices, err := s.signals.LapSignals(sessionID, lapNumber, signals.Request{
		Channels:      []string{string(signals.ChannelSpeed)},
		NormalizeTime: true,
		UseDistance:   true,
		MaxPoints:     maxPoints,
	})
	if err != nil {
		s.writeError(w, err, "error retrieving chart signals")
		return
	}
	if len(slices) == 0 || len(slices[0].Values) == 0 {
		httputil.NotFound(w, "no speed signal available for lap")
		return
	}
	speed := slices[0]

	// X axis is track distance when available, normalized lap time otherwise.
	xValues := speed.Distance
	xName := "Distance (m)"
	if len(xValues) != len(speed.Values) {
		xValues = speed.NormalizedTime
		xName = "Time (s)"
	}

	xAxis := make([]string, len(xValues))
	data := make([]opts.LineData, len(speed.Values))
	for i := range speed.Values {
		xAxis[i] = fmt.Sprintf("%.0f", xValues[i])
		data[i] = opts.LineData{Value: units.ConvertSpeed(speed.Values[i], s.units)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s lap %d", sessionID, lapNumber),
			Theme:     "dark",
			Width:     "1400px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Lap speed trace",
			Subtitle: fmt.Sprintf("session=%s lap=%d points=%d units=%s", sessionID, lapNumber, len(data), s.units),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Speed"}),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	}
	if layout, err := s.segments.GetOrCreateLayout(sessionID, nil, false); err == nil {
		for _, seg := range layout.Segments {
			seriesOpts = append(seriesOpts, charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
				Name:  seg.ID,
				XAxis: fmt.Sprintf("%.0f", seg.StartDist),
			}))
		}
	}

	line.SetXAxis(xAxis).AddSeries("speed", data, seriesOpts...)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
