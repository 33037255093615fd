package api

import (
	"net/http"
	"os"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/httputil"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/version"
)

// health reports service status: telemetry directory presence, session
// count, and cache reachability. Always 200 so load balancers see a live
// process; degraded dependencies show up in the body.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	telemetryOK := true
	if _, err := os.Stat(s.manager.Dir()); err != nil {
		telemetryOK = false
	}

	cacheOK := true
	if s.cache == nil || s.cache.Ping() != nil {
		cacheOK = false
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":            "ok",
		"version":           version.Version,
		"telemetry_path_ok": telemetryOK,
		"session_count":     len(s.manager.ListSessions()),
		"cache_ok":          cacheOK,
	})
}
