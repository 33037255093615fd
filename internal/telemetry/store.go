package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
)

// Lap boundaries are recorded as event channels inside each session file.
const (
	lapChannel     = "Lap"
	lapTimeChannel = "Lap Time"
)

// SessionStore reads a single session recording file. Every operation opens a
// fresh read-only handle and closes it on all exit paths, so stores are cheap
// to construct and safe to share.
type SessionStore struct {
	path string
}

// NewSessionStore returns a store for the given recording file.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Path returns the underlying recording file path.
func (s *SessionStore) Path() string { return s.path }

func (s *SessionStore) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", s.path))
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", s.path, err)
	}
	return db, nil
}

// Metadata returns the key/value metadata table of the recording.
func (s *SessionStore) Metadata() (map[string]string, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("read metadata from %s: %w", s.path, err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Channels returns the recorded channel list.
func (s *SessionStore) Channels() ([]ChannelInfo, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name, frequency, COALESCE(unit, '') FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("read channels from %s: %w", s.path, err)
	}
	defer rows.Close()

	var channels []ChannelInfo
	for rows.Next() {
		var c ChannelInfo
		if err := rows.Scan(&c.Name, &c.Frequency, &c.Unit); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// Events returns the recorded event list.
func (s *SessionStore) Events() ([]EventInfo, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name, COALESCE(unit, '') FROM events ORDER BY name`)
	if err != nil {
		// Older recordings have no events table.
		monitoring.Debugf("no events in %s: %v", s.path, err)
		return nil, nil
	}
	defer rows.Close()

	var events []EventInfo
	for rows.Next() {
		var e EventInfo
		if err := rows.Scan(&e.Name, &e.Unit); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ChannelExists reports whether the named channel is present in the
// recording's channel list.
func (s *SessionStore) ChannelExists(name string) (bool, error) {
	db, err := s.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM channels WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check channel %q in %s: %w", name, s.path, err)
	}
	return count > 0, nil
}

// ChannelUnit returns the unit string for a channel, or empty when unknown.
func (s *SessionStore) ChannelUnit(name string) (string, error) {
	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	var unit sql.NullString
	err = db.QueryRow(`SELECT unit FROM channels WHERE name = ?`, name).Scan(&unit)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return unit.String, nil
}

// Samples returns (timestamp, value) pairs for a channel, optionally bounded
// by a [startTime, endTime) session-time window.
func (s *SessionStore) Samples(channel string, startTime float64, endTime *float64) (timestamps, values []float64, err error) {
	db, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	var rows *sql.Rows
	if endTime != nil {
		rows, err = db.Query(
			`SELECT ts, value FROM samples WHERE channel = ? AND ts >= ? AND ts < ? ORDER BY ts`,
			channel, startTime, *endTime)
	} else {
		rows, err = db.Query(
			`SELECT ts, value FROM samples WHERE channel = ? AND ts >= ? ORDER BY ts`,
			channel, startTime)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read samples for %q from %s: %w", channel, s.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts, v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, nil, err
		}
		timestamps = append(timestamps, ts)
		values = append(values, v)
	}
	return timestamps, values, rows.Err()
}

// SessionInfo assembles the Session record for this recording.
func (s *SessionStore) SessionInfo() (Session, error) {
	meta, err := s.Metadata()
	if err != nil {
		return Session{}, err
	}

	laps, err := s.Laps()
	if err != nil {
		monitoring.Logf("could not count laps in %s: %v", s.path, err)
	}

	id := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	return Session{
		ID:            id,
		FilePath:      s.path,
		RecordingTime: parseRecordingTime(meta["RecordingTime"]),
		SessionTime:   meta["SessionTime"],
		SessionType:   meta["SessionType"],
		TrackName:     meta["TrackName"],
		TrackVariant:  meta["TrackLayout"],
		DriverName:    meta["DriverName"],
		CarName:       meta["CarName"],
		CarClass:      meta["CarClass"],
		Weather:       meta["WeatherConditions"],
		LapCount:      len(laps),
	}, nil
}

// SessionDetail returns the session info plus channel and event lists.
func (s *SessionStore) SessionDetail() (SessionDetail, error) {
	session, err := s.SessionInfo()
	if err != nil {
		return SessionDetail{}, err
	}
	channels, err := s.Channels()
	if err != nil {
		return SessionDetail{}, err
	}
	events, err := s.Events()
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{Session: session, Channels: channels, Events: events}, nil
}

// Laps extracts lap records from the Lap and Lap Time event channels. A lap's
// end time is the next lap's start; its lap time is recorded at the start of
// the following lap. Laps without a positive lap time are marked invalid.
func (s *SessionStore) Laps() ([]Lap, error) {
	startTs, lapNums, err := s.Samples(lapChannel, 0, nil)
	if err != nil {
		return nil, err
	}

	timeTs, timeVals, err := s.Samples(lapTimeChannel, 0, nil)
	if err != nil {
		return nil, err
	}
	lapTimes := make(map[float64]float64, len(timeTs))
	for i, ts := range timeTs {
		if timeVals[i] > 0 {
			lapTimes[ts] = timeVals[i]
		}
	}

	laps := make([]Lap, 0, len(startTs))
	for i, start := range startTs {
		lap := Lap{
			LapNumber: int(lapNums[i]),
			StartTime: start,
		}
		if i+1 < len(startTs) {
			end := startTs[i+1]
			lap.EndTime = &end
			if t, ok := lapTimes[end]; ok {
				lapTime := t
				lap.LapTime = &lapTime
			}
		}
		lap.Valid = lap.LapTime != nil && *lap.LapTime > 0
		laps = append(laps, lap)
	}
	return laps, nil
}

// parseRecordingTime parses metadata timestamps like 2026-02-07T22_56_50Z.
func parseRecordingTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	normalized := strings.ReplaceAll(raw, "_", ":")
	t, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		monitoring.Logf("could not parse recording time %q: %v", raw, err)
		return nil
	}
	return &t
}
