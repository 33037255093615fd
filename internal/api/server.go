// Package api exposes the HTTP surface: session discovery, raw signal
// retrieval, track layouts, segment metrics, lap comparison, debug charts,
// and health.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/httputil"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segmentcache"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segments"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/units"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server holds the service dependencies behind the HTTP handlers. Speeds are
// stored in m/s and converted to the configured unit on the way out.
type Server struct {
	manager        *telemetry.Manager
	signals        *signals.Service
	segments       *segments.Service
	cache          *segmentcache.Cache
	units          string
	maxChartPoints int
}

// NewServer wires the HTTP surface against the given services.
func NewServer(manager *telemetry.Manager, signalService *signals.Service, segmentService *segments.Service, cache *segmentcache.Cache, units string, maxChartPoints int) *Server {
	return &Server{
		manager:        manager,
		signals:        signalService,
		segments:       segmentService,
		cache:          cache,
		units:          units,
		maxChartPoints: maxChartPoints,
	}
}

// ServeMux registers all routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/sessions", s.listSessions)
	mux.HandleFunc("POST /api/v1/sessions/refresh", s.refreshSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.getSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/laps", s.listLaps)

	mux.HandleFunc("GET /api/v1/signals/sessions/{id}", s.listSignals)
	mux.HandleFunc("GET /api/v1/signals/sessions/{id}/laps/{lap}", s.getLapSignals)
	mux.HandleFunc("POST /api/v1/signals/sessions/{id}/compare", s.compareSignals)

	mux.HandleFunc("GET /api/v1/segments/sessions/{id}/layout", s.getLayout)
	mux.HandleFunc("POST /api/v1/segments/sessions/{id}/layout/regenerate", s.regenerateLayout)
	mux.HandleFunc("GET /api/v1/segments/sessions/{id}/laps/{lap}/segments", s.getLapSegments)
	mux.HandleFunc("POST /api/v1/segments/sessions/{id}/compare", s.compareSegments)

	mux.HandleFunc("GET /api/v1/charts/sessions/{id}/laps/{lap}", s.lapChart)

	mux.HandleFunc("GET /health", s.health)

	return mux
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

// writeError maps the error taxonomy to HTTP statuses: unknown sessions and
// laps are 404, unusable input is 400, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, telemetry.ErrSessionNotFound), errors.Is(err, telemetry.ErrLapNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, segments.ErrInvalidInput):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, fmt.Sprintf("%s: %v", context, err))
	}
}

func (s *Server) convertSpeedPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	converted := units.ConvertSpeed(*v, s.units)
	return &converted
}

// convertMetricsSpeeds applies unit conversion to every speed field of a
// metrics response.
func (s *Server) convertMetricsSpeeds(m segments.LapSegmentMetrics) segments.LapSegmentMetrics {
	for i := range m.Segments {
		seg := &m.Segments[i]
		seg.EntrySpeed = s.convertSpeedPtr(seg.EntrySpeed)
		seg.MidSpeed = s.convertSpeedPtr(seg.MidSpeed)
		seg.ExitSpeed = s.convertSpeedPtr(seg.ExitSpeed)
		seg.MinSpeed = s.convertSpeedPtr(seg.MinSpeed)
		seg.MaxSpeed = s.convertSpeedPtr(seg.MaxSpeed)
		seg.AvgSpeed = s.convertSpeedPtr(seg.AvgSpeed)
	}
	return m
}
