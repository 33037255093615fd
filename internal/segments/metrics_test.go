package segments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(segs ...Segment) TrackLayout {
	return TrackLayout{
		TrackName:   "Sebring",
		Version:     1,
		TrackLength: 998,
		Segments:    segs,
	}
}

func TestCalculateLapMetrics(t *testing.T) {
	t.Parallel()
	c := NewCalculator()

	t.Run("missing lap dist is invalid input", func(t *testing.T) {
		t.Parallel()
		_, err := c.CalculateLapMetrics("s1", 1, testLayout(), SignalSet{}, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("basic segment metrics", func(t *testing.T) {
		t.Parallel()
		lapDist, _, brake, throttle, speed := buildLap(500)
		for i := 105; i < 110; i++ {
			brake[i] = 0.5
		}
		for i := 100; i < 130; i++ {
			throttle[i] = 0.2
		}

		set := SignalSet{
			LapDist:  makeSlice(lapDist),
			Brake:    makeSlice(brake),
			Throttle: makeSlice(throttle),
			Speed:    makeSlice(speed),
		}
		layout := testLayout(Segment{ID: "T1", Type: SegmentCorner, StartDist: 200, EndDist: 282})

		metrics, err := c.CalculateLapMetrics("s1", 2, layout, set, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "s1", metrics.SessionID)
		assert.Equal(t, 2, metrics.LapNumber)
		assert.Equal(t, 1, metrics.LayoutVersion)
		require.Len(t, metrics.Segments, 1)

		seg := metrics.Segments[0]
		assert.Equal(t, "T1", seg.SegmentID)
		assert.Equal(t, 2, seg.LapNumber)
		assert.Equal(t, "s1", seg.SessionID)

		// Samples 100..140 fall inside the segment: 41 samples at 60 Hz.
		assert.InDelta(t, 41.0/60.0, seg.SegmentTime, 1e-9)

		require.NotNil(t, seg.EntrySpeed)
		assert.Equal(t, 60.0, *seg.EntrySpeed)
		require.NotNil(t, seg.MinSpeed)
		assert.Equal(t, 60.0, *seg.MinSpeed)
		require.NotNil(t, seg.AvgSpeed)
		assert.Equal(t, 60.0, *seg.AvgSpeed)

		// First braking sample inside the segment is at 210m.
		require.NotNil(t, seg.BrakingDistance)
		assert.InDelta(t, 200.0-210.0, *seg.BrakingDistance, 1e-9)
		require.NotNil(t, seg.MaxBrakePressure)
		assert.Equal(t, 0.5, *seg.MaxBrakePressure)

		// Full throttle returns at 260m, 22m before the segment end.
		require.NotNil(t, seg.ThrottleApplication)
		assert.InDelta(t, 260.0-282.0, *seg.ThrottleApplication, 1e-9)

		// No steering signal was provided.
		assert.Nil(t, seg.SteeringSmoothness)

		// No lap time given: total is the segment-time sum.
		require.NotNil(t, metrics.TotalTime)
		assert.InDelta(t, seg.SegmentTime, *metrics.TotalTime, 1e-9)
	})

	t.Run("segment wrapping the start finish line", func(t *testing.T) {
		t.Parallel()
		lapDist, _, _, _, speed := buildLap(500)
		set := SignalSet{LapDist: makeSlice(lapDist), Speed: makeSlice(speed)}
		layout := testLayout(Segment{ID: "S1", Type: SegmentStraight, StartDist: 900, EndDist: 100})

		metrics, err := c.CalculateLapMetrics("s1", 1, layout, set, nil, nil)
		require.NoError(t, err)
		require.Len(t, metrics.Segments, 1)

		// 900m maps to sample 450, 100m to sample 50: the segment covers the
		// tail of the lap plus the head.
		seg := metrics.Segments[0]
		assert.InDelta(t, 100.0/60.0, seg.SegmentTime, 1e-9)
	})

	t.Run("steering smoothness is the rate deviation", func(t *testing.T) {
		t.Parallel()
		lapDist, steering, _, _, _ := buildLap(500)
		// Constant rate has zero deviation.
		for i := range steering {
			steering[i] = float64(i)
		}
		set := SignalSet{LapDist: makeSlice(lapDist), Steering: makeSlice(steering)}
		layout := testLayout(Segment{ID: "T1", Type: SegmentCorner, StartDist: 200, EndDist: 282})

		metrics, err := c.CalculateLapMetrics("s1", 1, layout, set, nil, nil)
		require.NoError(t, err)
		require.NotNil(t, metrics.Segments[0].SteeringSmoothness)
		assert.InDelta(t, 0.0, *metrics.Segments[0].SteeringSmoothness, 1e-9)
	})

	t.Run("lap time overrides summed total", func(t *testing.T) {
		t.Parallel()
		lapDist, _, _, _, _ := buildLap(500)
		set := SignalSet{LapDist: makeSlice(lapDist)}
		layout := testLayout(Segment{ID: "S1", Type: SegmentStraight, StartDist: 0, EndDist: 998})

		lapTime := 93.5
		metrics, err := c.CalculateLapMetrics("s1", 1, layout, set, &lapTime, nil)
		require.NoError(t, err)
		require.NotNil(t, metrics.TotalTime)
		assert.Equal(t, 93.5, *metrics.TotalTime)
	})

	t.Run("reference metrics fill time deltas", func(t *testing.T) {
		t.Parallel()
		lapDist, _, _, _, _ := buildLap(500)
		set := SignalSet{LapDist: makeSlice(lapDist)}
		layout := testLayout(
			Segment{ID: "S1", Type: SegmentStraight, StartDist: 0, EndDist: 500},
			Segment{ID: "T1", Type: SegmentCorner, StartDist: 500, EndDist: 998},
		)

		reference := &LapSegmentMetrics{Segments: []SegmentMetrics{
			{SegmentID: "S1", SegmentTime: 2.0},
			{SegmentID: "T1", SegmentTime: 0}, // zero reference time stays nil
		}}

		metrics, err := c.CalculateLapMetrics("s1", 1, layout, set, nil, reference)
		require.NoError(t, err)
		require.Len(t, metrics.Segments, 2)

		require.NotNil(t, metrics.Segments[0].TimeDeltaToReference)
		assert.InDelta(t, metrics.Segments[0].SegmentTime-2.0, *metrics.Segments[0].TimeDeltaToReference, 1e-9)
		assert.Nil(t, metrics.Segments[1].TimeDeltaToReference)
	})

	t.Run("absent optional signals leave nil fields", func(t *testing.T) {
		t.Parallel()
		lapDist, _, _, _, _ := buildLap(500)
		set := SignalSet{LapDist: makeSlice(lapDist)}
		layout := testLayout(Segment{ID: "S1", Type: SegmentStraight, StartDist: 0, EndDist: 998})

		metrics, err := c.CalculateLapMetrics("s1", 1, layout, set, nil, nil)
		require.NoError(t, err)
		seg := metrics.Segments[0]
		assert.Nil(t, seg.EntrySpeed)
		assert.Nil(t, seg.MinSpeed)
		assert.Nil(t, seg.BrakingDistance)
		assert.Nil(t, seg.MaxBrakePressure)
		assert.Nil(t, seg.ThrottleApplication)
		assert.Nil(t, seg.SteeringSmoothness)
	})
}

func TestValuesAt(t *testing.T) {
	t.Parallel()

	t.Run("nil slice yields nothing", func(t *testing.T) {
		t.Parallel()
		idx, vals := valuesAt(nil, []int{0, 1})
		assert.Nil(t, idx)
		assert.Nil(t, vals)
	})

	t.Run("out of range indices are skipped", func(t *testing.T) {
		t.Parallel()
		idx, vals := valuesAt(makeSlice([]float64{1, 2, 3}), []int{1, 2, 7})
		assert.Equal(t, []int{1, 2}, idx)
		assert.Equal(t, []float64{2, 3}, vals)
	})
}
