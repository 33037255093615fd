package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/httputil"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
)

func (s *Server) listSignals(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	metadata, err := s.signals.AvailableSignals(sessionID)
	if err != nil {
		s.writeError(w, err, "error listing signals")
		return
	}
	httputil.WriteJSONOK(w, signals.List{SessionID: sessionID, Signals: metadata, Total: len(metadata)})
}

// parseSignalRequest reads the shared signal query parameters. Absent
// channels default to the five analysis channels.
func parseSignalRequest(r *http.Request) (signals.Request, error) {
	req := signals.Request{NormalizeTime: true}

	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Channels = append(req.Channels, c)
			}
		}
	}
	if len(req.Channels) == 0 {
		for _, c := range signals.AnalysisChannels {
			req.Channels = append(req.Channels, string(c))
		}
	}

	if v := r.URL.Query().Get("normalize_time"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return signals.Request{}, err
		}
		req.NormalizeTime = parsed
	}
	if v := r.URL.Query().Get("use_distance"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return signals.Request{}, err
		}
		req.UseDistance = parsed
	}
	if v := r.URL.Query().Get("max_points"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return signals.Request{}, err
		}
		if parsed < 0 {
			return signals.Request{}, fmt.Errorf("max_points must be non-negative, got %d", parsed)
		}
		req.MaxPoints = parsed
	}
	return req, nil
}

func (s *Server) getLapSignals(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	lapNumber, err := strconv.Atoi(r.PathValue("lap"))
	if err != nil {
		httputil.BadRequest(w, "invalid lap number")
		return
	}

	req, err := parseSignalRequest(r)
	if err != nil {
		httputil.BadRequest(w, "invalid signal query parameters")
		return
	}

	slices, err := s.signals.LapSignals(sessionID, lapNumber, req)
	if err != nil {
		s.writeError(w, err, "error retrieving signals")
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session_id": sessionID,
		"lap_number": lapNumber,
		"signals":    slices,
	})
}

func (s *Server) compareSignals(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req signals.LapComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid comparison request body")
		return
	}
	if len(req.Channels) == 0 {
		httputil.BadRequest(w, "channels list must not be empty")
		return
	}

	comparisons, err := s.signals.CompareLaps(sessionID, req)
	if err != nil {
		s.writeError(w, err, "error comparing laps")
		return
	}
	httputil.WriteJSONOK(w, signals.ComparisonResponse{
		SessionID:    sessionID,
		TargetLap:    req.TargetLap,
		ReferenceLap: req.ReferenceLap,
		Comparisons:  comparisons,
	})
}
