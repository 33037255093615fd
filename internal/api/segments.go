package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/httputil"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segments"
)

func (s *Server) getLayout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	force := r.URL.Query().Get("force_regenerate") == "true"

	layout, err := s.segments.GetOrCreateLayout(sessionID, nil, force)
	if err != nil {
		s.writeError(w, err, "error getting track layout")
		return
	}
	httputil.WriteJSONOK(w, layout)
}

func (s *Server) regenerateLayout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var preferredLap *int
	if v := r.URL.Query().Get("reference_lap"); v != "" {
		lap, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, "invalid reference_lap parameter")
			return
		}
		preferredLap = &lap
	}

	layout, err := s.segments.GetOrCreateLayout(sessionID, preferredLap, true)
	if err != nil {
		s.writeError(w, err, "error regenerating layout")
		return
	}
	httputil.WriteJSONOK(w, layout)
}

func (s *Server) getLapSegments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	lapNumber, err := strconv.Atoi(r.PathValue("lap"))
	if err != nil {
		httputil.BadRequest(w, "invalid lap number")
		return
	}
	force := r.URL.Query().Get("force_recompute") == "true"

	metrics, err := s.segments.LapMetrics(sessionID, lapNumber, force)
	if err != nil {
		s.writeError(w, err, "error calculating lap metrics")
		return
	}
	httputil.WriteJSONOK(w, s.convertMetricsSpeeds(metrics))
}

func (s *Server) compareSegments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req segments.ComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid comparison request body")
		return
	}
	if req.TargetLap == req.ReferenceLap {
		httputil.BadRequest(w, "target and reference lap must differ")
		return
	}

	comparison, err := s.segments.CompareLaps(sessionID, req)
	if err != nil {
		s.writeError(w, err, "error comparing laps")
		return
	}
	httputil.WriteJSONOK(w, comparison)
}
