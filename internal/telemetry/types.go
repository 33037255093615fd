// Package telemetry discovers recorded sessions and extracts lap boundaries
// from the per-session sqlite recording files.
package telemetry

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session ID does not match any
// discovered recording.
var ErrSessionNotFound = errors.New("session not found")

// ErrLapNotFound is returned when a lap number is absent from a session.
var ErrLapNotFound = errors.New("lap not found")

// Lap is a single lap within a recording. Lap 0 is typically the out lap.
type Lap struct {
	LapNumber int      `json:"lap_number"`
	StartTime float64  `json:"start_time"` // session time, seconds
	EndTime   *float64 `json:"end_time"`
	LapTime   *float64 `json:"lap_time"`
	Valid     bool     `json:"valid"`
}

// ChannelInfo describes one recorded telemetry channel.
type ChannelInfo struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
	Unit      string `json:"unit,omitempty"`
}

// EventInfo describes one recorded telemetry event stream.
type EventInfo struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// Session is one telemetry recording, backed by a single sqlite file. The ID
// is the filename without extension.
type Session struct {
	ID            string     `json:"id"`
	FilePath      string     `json:"file_path"`
	RecordingTime *time.Time `json:"recording_time"`
	SessionTime   string     `json:"session_time,omitempty"`
	SessionType   string     `json:"session_type,omitempty"`
	TrackName     string     `json:"track_name,omitempty"`
	TrackVariant  string     `json:"track_layout,omitempty"`
	DriverName    string     `json:"driver_name,omitempty"`
	CarName       string     `json:"car_name,omitempty"`
	CarClass      string     `json:"car_class,omitempty"`
	Weather       string     `json:"weather_conditions,omitempty"`
	LapCount      int        `json:"lap_count"`
}

// SessionDetail extends Session with the recorded channel and event lists.
type SessionDetail struct {
	Session
	Channels []ChannelInfo `json:"channels"`
	Events   []EventInfo   `json:"events"`
}

// SessionList is the response shape for session listings.
type SessionList struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

// LapList is the response shape for lap listings.
type LapList struct {
	SessionID string `json:"session_id"`
	Laps      []Lap  `json:"laps"`
	Total     int    `json:"total"`
}
