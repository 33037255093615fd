// Package testutil builds fixture session recordings and synthetic lap
// signals for tests.
package testutil

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// SessionBuilder writes a fixture session recording with the same schema the
// in-game recorder produces: metadata, channels, and samples tables.
type SessionBuilder struct {
	t    *testing.T
	path string
	db   *sql.DB
}

// NewSessionDB creates an empty fixture recording named <name>.db under dir.
func NewSessionDB(t *testing.T, dir, name string) *SessionBuilder {
	t.Helper()

	path := filepath.Join(dir, name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to create fixture session: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT);
		CREATE TABLE channels (name TEXT PRIMARY KEY, frequency INTEGER, unit TEXT);
		CREATE TABLE samples (channel TEXT, ts DOUBLE, value DOUBLE);
		CREATE INDEX idx_samples_channel_ts ON samples(channel, ts);
	`)
	if err != nil {
		t.Fatalf("failed to create fixture schema: %v", err)
	}

	b := &SessionBuilder{t: t, path: path, db: db}
	t.Cleanup(func() { db.Close() })
	return b
}

// Path returns the fixture file path.
func (b *SessionBuilder) Path() string { return b.path }

// SetMetadata sets one metadata key.
func (b *SessionBuilder) SetMetadata(key, value string) *SessionBuilder {
	b.t.Helper()
	if _, err := b.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value); err != nil {
		b.t.Fatalf("failed to set metadata %s: %v", key, err)
	}
	return b
}

// AddChannel registers a channel.
func (b *SessionBuilder) AddChannel(name string, frequency int, unit string) *SessionBuilder {
	b.t.Helper()
	if _, err := b.db.Exec(`INSERT INTO channels (name, frequency, unit) VALUES (?, ?, ?)`, name, frequency, unit); err != nil {
		b.t.Fatalf("failed to add channel %s: %v", name, err)
	}
	return b
}

// AddSamples inserts (ts, value) pairs for a channel.
func (b *SessionBuilder) AddSamples(channel string, timestamps, values []float64) *SessionBuilder {
	b.t.Helper()
	if len(timestamps) != len(values) {
		b.t.Fatalf("timestamps and values length mismatch: %d vs %d", len(timestamps), len(values))
	}
	tx, err := b.db.Begin()
	if err != nil {
		b.t.Fatalf("failed to begin sample insert: %v", err)
	}
	for i := range timestamps {
		if _, err := tx.Exec(`INSERT INTO samples (channel, ts, value) VALUES (?, ?, ?)`,
			channel, timestamps[i], values[i]); err != nil {
			b.t.Fatalf("failed to insert sample: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		b.t.Fatalf("failed to commit samples: %v", err)
	}
	return b
}

// AddLapMarker records the start of a lap on the Lap channel.
func (b *SessionBuilder) AddLapMarker(lapNumber int, startTs float64) *SessionBuilder {
	return b.AddSamples("Lap", []float64{startTs}, []float64{float64(lapNumber)})
}

// AddLapTime records a completed lap time at the given session timestamp
// (the start of the following lap).
func (b *SessionBuilder) AddLapTime(ts, seconds float64) *SessionBuilder {
	return b.AddSamples("Lap Time", []float64{ts}, []float64{seconds})
}

// SyntheticLap holds one generated lap's worth of aligned channel traces.
type SyntheticLap struct {
	Timestamps []float64
	LapDist    []float64
	Steering   []float64
	Brake      []float64
	Throttle   []float64
	Speed      []float64
}

// GenerateLap produces a plausible lap at 60 Hz: lap distance sweeps 0 to
// trackLength, with numCorners evenly spaced corners. Each corner carries a
// steering pulse, braking before turn-in, and a throttle lift; everywhere
// else is full throttle at higher speed.
func GenerateLap(samples int, trackLength float64, numCorners int) SyntheticLap {
	lap := SyntheticLap{
		Timestamps: make([]float64, samples),
		LapDist:    make([]float64, samples),
		Steering:   make([]float64, samples),
		Brake:      make([]float64, samples),
		Throttle:   make([]float64, samples),
		Speed:      make([]float64, samples),
	}

	for i := 0; i < samples; i++ {
		lap.Timestamps[i] = float64(i) / 60.0
		dist := trackLength * float64(i) / float64(samples)
		lap.LapDist[i] = dist

		lap.Throttle[i] = 1.0
		lap.Speed[i] = 70.0

		for c := 0; c < numCorners; c++ {
			center := trackLength * (float64(c) + 0.5) / float64(numCorners)
			offset := dist - center
			cornerHalf := trackLength / float64(numCorners) * 0.15

			// Inside the corner: steering swings, speed drops, throttle lifts.
			if math.Abs(offset) < cornerHalf {
				lap.Steering[i] = 80.0 * math.Cos(offset/cornerHalf*math.Pi/2)
				lap.Speed[i] = 30.0
				lap.Throttle[i] = 0.2
			}
			// Braking zone just before turn-in.
			if offset >= -cornerHalf*2 && offset < -cornerHalf {
				lap.Brake[i] = 0.8
				lap.Throttle[i] = 0.0
				lap.Speed[i] = 50.0
			}
		}
	}
	return lap
}

// WriteLap inserts all five analysis channels of a synthetic lap, shifting
// its timestamps by startTs.
func (b *SessionBuilder) WriteLap(lap SyntheticLap, startTs float64) *SessionBuilder {
	b.t.Helper()
	ts := make([]float64, len(lap.Timestamps))
	for i, v := range lap.Timestamps {
		ts[i] = v + startTs
	}
	b.AddSamples("Lap Dist", ts, lap.LapDist)
	b.AddSamples("Steering Pos", ts, lap.Steering)
	b.AddSamples("Brake Pos", ts, lap.Brake)
	b.AddSamples("Throttle Pos", ts, lap.Throttle)
	b.AddSamples("Ground Speed", ts, lap.Speed)
	return b
}

// StandardChannels registers the five analysis channels at 60 Hz with their
// usual units.
func (b *SessionBuilder) StandardChannels() *SessionBuilder {
	b.AddChannel("Lap Dist", 60, "m")
	b.AddChannel("Steering Pos", 60, "deg")
	b.AddChannel("Brake Pos", 60, "%")
	b.AddChannel("Throttle Pos", 60, "%")
	b.AddChannel("Ground Speed", 60, "m/s")
	return b
}
