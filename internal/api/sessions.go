package api

import (
	"net/http"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/httputil"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.ListSessions()
	httputil.WriteJSONOK(w, telemetry.SessionList{Sessions: sessions, Total: len(sessions)})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.manager.SessionDetail(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "error reading session")
		return
	}
	httputil.WriteJSONOK(w, detail)
}

func (s *Server) listLaps(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	laps, err := s.manager.SessionLaps(sessionID)
	if err != nil {
		s.writeError(w, err, "error reading laps")
		return
	}
	httputil.WriteJSONOK(w, telemetry.LapList{SessionID: sessionID, Laps: laps, Total: len(laps)})
}

func (s *Server) refreshSessions(w http.ResponseWriter, r *http.Request) {
	s.manager.Refresh()
	sessions := s.manager.ListSessions()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":        "refreshed",
		"session_count": len(sessions),
	})
}
