package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
)

// Manager discovers session recordings under a telemetry directory and keeps
// an in-memory session list cache. The cache serves stale data until Refresh
// or Invalidate is called explicitly; it is not safe against concurrent
// writers, which is acceptable for a local single-user tool.
type Manager struct {
	dir      string
	sessions map[string]Session // nil until first discovery
}

// NewManager returns a Manager for the given telemetry directory.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the telemetry directory being scanned.
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) discoverFiles() []string {
	if _, err := os.Stat(m.dir); err != nil {
		monitoring.Logf("telemetry path does not exist: %s", m.dir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(m.dir, "*.db"))
	if err != nil {
		monitoring.Logf("error scanning telemetry directory %s: %v", m.dir, err)
		return nil
	}
	sort.Strings(files)
	monitoring.Logf("discovered %d telemetry files in %s", len(files), m.dir)
	return files
}

// ListSessions returns all discovered sessions, reading each recording's
// metadata on the first call and serving the cached list afterwards.
func (m *Manager) ListSessions() []Session {
	if m.sessions == nil {
		m.Refresh()
	}

	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions
}

// Refresh rescans the telemetry directory and rebuilds the session cache.
func (m *Manager) Refresh() {
	sessions := map[string]Session{}
	for _, path := range m.discoverFiles() {
		store := NewSessionStore(path)
		session, err := store.SessionInfo()
		if err != nil {
			monitoring.Logf("error reading session from %s: %v", path, err)
			continue
		}
		sessions[session.ID] = session
	}
	m.sessions = sessions
}

// Invalidate drops the session cache; the next listing rescans the directory.
func (m *Manager) Invalidate() {
	m.sessions = nil
}

// Session returns a session by ID.
func (m *Manager) Session(sessionID string) (Session, error) {
	if m.sessions == nil {
		m.Refresh()
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// Store returns a SessionStore for a session's recording file.
func (m *Manager) Store(sessionID string) (*SessionStore, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return NewSessionStore(session.FilePath), nil
}

// SessionLaps returns all laps of a session.
func (m *Manager) SessionLaps(sessionID string) ([]Lap, error) {
	store, err := m.Store(sessionID)
	if err != nil {
		return nil, err
	}
	laps, err := store.Laps()
	if err != nil {
		return nil, fmt.Errorf("reading laps for session %s: %w", sessionID, err)
	}
	return laps, nil
}

// SessionDetail returns extended session info including channels and events.
func (m *Manager) SessionDetail(sessionID string) (SessionDetail, error) {
	store, err := m.Store(sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	detail, err := store.SessionDetail()
	if err != nil {
		return SessionDetail{}, fmt.Errorf("reading session detail for %s: %w", sessionID, err)
	}
	return detail, nil
}

// FindLap returns the lap with the given number from laps.
func FindLap(laps []Lap, lapNumber int) (Lap, error) {
	for _, lap := range laps {
		if lap.LapNumber == lapNumber {
			return lap, nil
		}
	}
	return Lap{}, fmt.Errorf("%w: %d", ErrLapNotFound, lapNumber)
}
