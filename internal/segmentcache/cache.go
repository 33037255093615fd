// Package segmentcache persists detected track layouts and computed lap
// segment metrics in a single sqlite database so repeat requests skip the
// detection and metrics pipelines. Layouts are tier 1, keyed by track and
// layout version; lap metrics are tier 2 and are only valid against the
// layout version they were computed with.
package segmentcache

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segments"
)

// Cache is the two-tier segment cache. All writes are transactional per key:
// a failed save leaves the previous entry intact.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path and brings its
// schema up to date.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// Ping reports whether the cache database is reachable.
func (c *Cache) Ping() error { return c.db.Ping() }

// TrackKey builds the tier-1 cache key for a track layout generation.
// Spaces and slashes are flattened so keys stay filesystem- and URL-safe.
func TrackKey(trackName, trackVariant string, version int) string {
	key := fmt.Sprintf("%s_%s_v%d", trackName, trackVariant, version)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}

// Layout retrieves a cached layout. The second return value reports a hit.
func (c *Cache) Layout(trackName, trackVariant string, version int) (*segments.TrackLayout, bool, error) {
	key := TrackKey(trackName, trackVariant, version)

	layout := segments.TrackLayout{}
	err := c.db.QueryRow(`
		SELECT detection_id, track_name, track_variant, version, track_length,
		       reference_lap_number, reference_session_id
		FROM layouts WHERE track_key = ?`, key).Scan(
		&layout.DetectionID, &layout.TrackName, &layout.TrackVariant, &layout.Version,
		&layout.TrackLength, &layout.ReferenceLapNumber, &layout.ReferenceSessionID,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read layout %s: %w", key, err)
	}

	rows, err := c.db.Query(`
		SELECT segment_id, segment_type, start_dist, end_dist,
		       entry_dist, apex_dist, exit_dist
		FROM layout_segments WHERE track_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read layout segments %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var seg segments.Segment
		var entry, apex, exit sql.NullFloat64
		if err := rows.Scan(&seg.ID, &seg.Type, &seg.StartDist, &seg.EndDist, &entry, &apex, &exit); err != nil {
			return nil, false, fmt.Errorf("failed to scan layout segment: %w", err)
		}
		seg.EntryDist = fromNull(entry)
		seg.ApexDist = fromNull(apex)
		seg.ExitDist = fromNull(exit)
		layout.Segments = append(layout.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	monitoring.Debugf("layout cache hit: %s (%d segments)", key, len(layout.Segments))
	return &layout, true, nil
}

// SaveLayout stores a layout, replacing any existing entry for the same key.
// Delete and insert run in one transaction.
func (c *Cache) SaveLayout(layout segments.TrackLayout) error {
	key := TrackKey(layout.TrackName, layout.TrackVariant, layout.Version)

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin layout save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM layout_segments WHERE track_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear layout segments %s: %w", key, err)
	}
	if _, err := tx.Exec(`DELETE FROM layouts WHERE track_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear layout %s: %w", key, err)
	}

	_, err = tx.Exec(`
		INSERT INTO layouts (track_key, detection_id, track_name, track_variant,
			version, track_length, reference_lap_number, reference_session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, layout.DetectionID, layout.TrackName, layout.TrackVariant, layout.Version,
		layout.TrackLength, layout.ReferenceLapNumber, layout.ReferenceSessionID)
	if err != nil {
		return fmt.Errorf("failed to insert layout %s: %w", key, err)
	}

	for i, seg := range layout.Segments {
		_, err = tx.Exec(`
			INSERT INTO layout_segments (track_key, position, segment_id,
				segment_type, start_dist, end_dist, entry_dist, apex_dist, exit_dist)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, i, seg.ID, string(seg.Type), seg.StartDist, seg.EndDist,
			toNull(seg.EntryDist), toNull(seg.ApexDist), toNull(seg.ExitDist))
		if err != nil {
			return fmt.Errorf("failed to insert layout segment %s/%s: %w", key, seg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layout %s: %w", key, err)
	}
	monitoring.Logf("cached layout %s (%d segments)", key, len(layout.Segments))
	return nil
}

// InvalidateLayout removes a cached layout generation.
func (c *Cache) InvalidateLayout(trackName, trackVariant string, version int) error {
	key := TrackKey(trackName, trackVariant, version)

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM layout_segments WHERE track_key = ?`, key); err != nil {
		return fmt.Errorf("failed to invalidate layout segments %s: %w", key, err)
	}
	if _, err := tx.Exec(`DELETE FROM layouts WHERE track_key = ?`, key); err != nil {
		return fmt.Errorf("failed to invalidate layout %s: %w", key, err)
	}
	return tx.Commit()
}

// LapMetrics retrieves cached metrics for a lap. An entry computed against a
// different layout version is stale: it is deleted and reported as a miss.
func (c *Cache) LapMetrics(sessionID string, lapNumber, layoutVersion int) (*segments.LapSegmentMetrics, bool, error) {
	m := segments.LapSegmentMetrics{SessionID: sessionID, LapNumber: lapNumber}
	var totalTime sql.NullFloat64
	err := c.db.QueryRow(`
		SELECT layout_version, track_length, total_time
		FROM lap_metrics WHERE session_id = ? AND lap_number = ?`,
		sessionID, lapNumber).Scan(&m.LayoutVersion, &m.TrackLength, &totalTime)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read lap metrics %s/%d: %w", sessionID, lapNumber, err)
	}
	m.TotalTime = fromNull(totalTime)

	if m.LayoutVersion != layoutVersion {
		monitoring.Logf("stale metrics for %s lap %d (layout v%d, want v%d), invalidating",
			sessionID, lapNumber, m.LayoutVersion, layoutVersion)
		if err := c.InvalidateLapMetrics(sessionID, lapNumber); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	rows, err := c.db.Query(`
		SELECT segment_id, entry_speed, mid_speed, exit_speed, min_speed,
		       max_speed, avg_speed, segment_time, time_delta_to_reference,
		       braking_distance, max_brake_pressure, throttle_application,
		       steering_smoothness
		FROM lap_segment_metrics
		WHERE session_id = ? AND lap_number = ? ORDER BY position`,
		sessionID, lapNumber)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read segment metrics %s/%d: %w", sessionID, lapNumber, err)
	}
	defer rows.Close()

	for rows.Next() {
		seg := segments.SegmentMetrics{SessionID: sessionID, LapNumber: lapNumber}
		var entry, mid, exit, min, max, avg, delta, braking, brake, throttle, steering sql.NullFloat64
		if err := rows.Scan(&seg.SegmentID, &entry, &mid, &exit, &min, &max, &avg,
			&seg.SegmentTime, &delta, &braking, &brake, &throttle, &steering); err != nil {
			return nil, false, fmt.Errorf("failed to scan segment metrics: %w", err)
		}
		seg.EntrySpeed = fromNull(entry)
		seg.MidSpeed = fromNull(mid)
		seg.ExitSpeed = fromNull(exit)
		seg.MinSpeed = fromNull(min)
		seg.MaxSpeed = fromNull(max)
		seg.AvgSpeed = fromNull(avg)
		seg.TimeDeltaToReference = fromNull(delta)
		seg.BrakingDistance = fromNull(braking)
		seg.MaxBrakePressure = fromNull(brake)
		seg.ThrottleApplication = fromNull(throttle)
		seg.SteeringSmoothness = fromNull(steering)
		m.Segments = append(m.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	monitoring.Debugf("metrics cache hit: %s lap %d", sessionID, lapNumber)
	return &m, true, nil
}

// SaveLapMetrics stores metrics for a lap, replacing any existing entry.
func (c *Cache) SaveLapMetrics(m segments.LapSegmentMetrics) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin metrics save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM lap_segment_metrics WHERE session_id = ? AND lap_number = ?`,
		m.SessionID, m.LapNumber); err != nil {
		return fmt.Errorf("failed to clear segment metrics %s/%d: %w", m.SessionID, m.LapNumber, err)
	}
	if _, err := tx.Exec(`DELETE FROM lap_metrics WHERE session_id = ? AND lap_number = ?`,
		m.SessionID, m.LapNumber); err != nil {
		return fmt.Errorf("failed to clear lap metrics %s/%d: %w", m.SessionID, m.LapNumber, err)
	}

	_, err = tx.Exec(`
		INSERT INTO lap_metrics (session_id, lap_number, layout_version, track_length, total_time)
		VALUES (?, ?, ?, ?, ?)`,
		m.SessionID, m.LapNumber, m.LayoutVersion, m.TrackLength, toNull(m.TotalTime))
	if err != nil {
		return fmt.Errorf("failed to insert lap metrics %s/%d: %w", m.SessionID, m.LapNumber, err)
	}

	for i, seg := range m.Segments {
		_, err = tx.Exec(`
			INSERT INTO lap_segment_metrics (session_id, lap_number, position,
				segment_id, entry_speed, mid_speed, exit_speed, min_speed,
				max_speed, avg_speed, segment_time, time_delta_to_reference,
				braking_distance, max_brake_pressure, throttle_application,
				steering_smoothness)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.SessionID, m.LapNumber, i, seg.SegmentID,
			toNull(seg.EntrySpeed), toNull(seg.MidSpeed), toNull(seg.ExitSpeed),
			toNull(seg.MinSpeed), toNull(seg.MaxSpeed), toNull(seg.AvgSpeed),
			seg.SegmentTime, toNull(seg.TimeDeltaToReference),
			toNull(seg.BrakingDistance), toNull(seg.MaxBrakePressure),
			toNull(seg.ThrottleApplication), toNull(seg.SteeringSmoothness))
		if err != nil {
			return fmt.Errorf("failed to insert segment metrics %s/%d/%s: %w",
				m.SessionID, m.LapNumber, seg.SegmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lap metrics %s/%d: %w", m.SessionID, m.LapNumber, err)
	}
	monitoring.Debugf("cached metrics for %s lap %d (%d segments)", m.SessionID, m.LapNumber, len(m.Segments))
	return nil
}

// InvalidateLapMetrics removes the cached metrics for one lap.
func (c *Cache) InvalidateLapMetrics(sessionID string, lapNumber int) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM lap_segment_metrics WHERE session_id = ? AND lap_number = ?`,
		sessionID, lapNumber); err != nil {
		return fmt.Errorf("failed to invalidate segment metrics %s/%d: %w", sessionID, lapNumber, err)
	}
	if _, err := tx.Exec(`DELETE FROM lap_metrics WHERE session_id = ? AND lap_number = ?`,
		sessionID, lapNumber); err != nil {
		return fmt.Errorf("failed to invalidate lap metrics %s/%d: %w", sessionID, lapNumber, err)
	}
	return tx.Commit()
}

// InvalidateSessionMetrics removes all cached metrics for a session and
// returns how many laps were dropped.
func (c *Cache) InvalidateSessionMetrics(sessionID string) (int, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM lap_segment_metrics WHERE session_id = ?`, sessionID); err != nil {
		return 0, fmt.Errorf("failed to invalidate session segment metrics %s: %w", sessionID, err)
	}
	res, err := tx.Exec(`DELETE FROM lap_metrics WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate session metrics %s: %w", sessionID, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(count), nil
}

func toNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
