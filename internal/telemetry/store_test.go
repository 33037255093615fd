package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/testutil"
)

func fixtureStore(t *testing.T) *telemetry.SessionStore {
	t.Helper()

	b := testutil.NewSessionDB(t, t.TempDir(), "practice1")
	b.SetMetadata("TrackName", "Sebring")
	b.SetMetadata("TrackLayout", "GP")
	b.SetMetadata("DriverName", "J Doe")
	b.SetMetadata("RecordingTime", "2026-02-07T22_56_50Z")
	b.StandardChannels()

	b.AddSamples("Ground Speed", []float64{0, 1, 2, 3}, []float64{10, 20, 30, 40})

	b.AddLapMarker(0, 0)
	b.AddLapMarker(1, 60)
	b.AddLapMarker(2, 152)
	b.AddLapTime(152, 92.0)

	return telemetry.NewSessionStore(b.Path())
}

func TestSessionStore(t *testing.T) {
	t.Parallel()

	t.Run("metadata roundtrip", func(t *testing.T) {
		t.Parallel()
		store := fixtureStore(t)
		meta, err := store.Metadata()
		require.NoError(t, err)
		assert.Equal(t, "Sebring", meta["TrackName"])
		assert.Equal(t, "GP", meta["TrackLayout"])
	})

	t.Run("channels are listed with units", func(t *testing.T) {
		t.Parallel()
		store := fixtureStore(t)
		channels, err := store.Channels()
		require.NoError(t, err)
		require.Len(t, channels, 5)

		exists, err := store.ChannelExists("Ground Speed")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.ChannelExists("Tire Temp FL")
		require.NoError(t, err)
		assert.False(t, exists)

		unit, err := store.ChannelUnit("Ground Speed")
		require.NoError(t, err)
		assert.Equal(t, "m/s", unit)
	})

	t.Run("samples honor the time window", func(t *testing.T) {
		t.Parallel()
		store := fixtureStore(t)

		end := 3.0
		ts, values, err := store.Samples("Ground Speed", 1, &end)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, ts)
		assert.Equal(t, []float64{20, 30}, values)

		// Open-ended window reads to the end.
		ts, _, err = store.Samples("Ground Speed", 2, nil)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 3}, ts)
	})

	t.Run("laps derive from markers and lap times", func(t *testing.T) {
		t.Parallel()
		store := fixtureStore(t)
		laps, err := store.Laps()
		require.NoError(t, err)
		require.Len(t, laps, 3)

		// Out lap: has an end but no recorded time.
		assert.Equal(t, 0, laps[0].LapNumber)
		assert.False(t, laps[0].Valid)
		require.NotNil(t, laps[0].EndTime)
		assert.Equal(t, 60.0, *laps[0].EndTime)

		// Completed lap with a time recorded at the next lap's start.
		assert.Equal(t, 1, laps[1].LapNumber)
		assert.True(t, laps[1].Valid)
		require.NotNil(t, laps[1].LapTime)
		assert.Equal(t, 92.0, *laps[1].LapTime)

		// In-progress lap: no end, invalid.
		assert.Equal(t, 2, laps[2].LapNumber)
		assert.Nil(t, laps[2].EndTime)
		assert.False(t, laps[2].Valid)
	})

	t.Run("session info assembles metadata and laps", func(t *testing.T) {
		t.Parallel()
		store := fixtureStore(t)
		session, err := store.SessionInfo()
		require.NoError(t, err)

		assert.Equal(t, "practice1", session.ID)
		assert.Equal(t, "Sebring", session.TrackName)
		assert.Equal(t, "GP", session.TrackVariant)
		assert.Equal(t, "J Doe", session.DriverName)
		assert.Equal(t, 3, session.LapCount)

		require.NotNil(t, session.RecordingTime)
		assert.Equal(t, 2026, session.RecordingTime.Year())
	})

	t.Run("session detail includes channels", func(t *testing.T) {
		t.Parallel()
		store := fixtureStore(t)
		detail, err := store.SessionDetail()
		require.NoError(t, err)
		assert.Len(t, detail.Channels, 5)
	})
}

func TestFindLap(t *testing.T) {
	t.Parallel()

	laps := []telemetry.Lap{{LapNumber: 1}, {LapNumber: 2}}

	lap, err := telemetry.FindLap(laps, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, lap.LapNumber)

	_, err = telemetry.FindLap(laps, 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, telemetry.ErrLapNotFound)
}
