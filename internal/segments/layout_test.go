package segments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
)

func makeSlice(values []float64) *signals.Slice {
	return &signals.Slice{Values: values}
}

// buildLap produces n samples of lap distance at 2m per sample plus flat
// companion channels the tests mutate as needed.
func buildLap(n int) (lapDist, steering, brake, throttle, speed []float64) {
	lapDist = make([]float64, n)
	steering = make([]float64, n)
	brake = make([]float64, n)
	throttle = make([]float64, n)
	speed = make([]float64, n)
	for i := 0; i < n; i++ {
		lapDist[i] = float64(i) * 2
		throttle[i] = 1.0
		speed[i] = 60.0
	}
	return
}

// addTriangleCorner writes a triangular steering pulse on [start, end): the
// absolute steering rate stays constant so the corner reads as one
// contiguous zone with its apex at the midpoint.
func addTriangleCorner(steering []float64, start, end int) {
	mid := (start + end) / 2
	for i := start; i < end; i++ {
		if i <= mid {
			steering[i] = 10 * float64(i-start+1)
		} else {
			steering[i] = 10 * float64(end-i)
		}
	}
}

func TestDetectLayout(t *testing.T) {
	t.Parallel()
	d := NewDetector(DefaultDetectorParams())

	t.Run("missing lap dist is invalid input", func(t *testing.T) {
		t.Parallel()
		_, err := d.DetectLayout("Sebring", "", SignalSet{}, 1, "s1")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("no steering yields a single full-track straight", func(t *testing.T) {
		t.Parallel()
		lapDist, _, _, _, _ := buildLap(500)
		layout, err := d.DetectLayout("Sebring", "", SignalSet{LapDist: makeSlice(lapDist)}, 1, "s1")
		require.NoError(t, err)
		require.Len(t, layout.Segments, 1)
		seg := layout.Segments[0]
		assert.Equal(t, "S1", seg.ID)
		assert.Equal(t, SegmentStraight, seg.Type)
		assert.Equal(t, 0.0, seg.StartDist)
		assert.Equal(t, layout.TrackLength, seg.EndDist)
	})

	t.Run("single corner with surrounding straights", func(t *testing.T) {
		t.Parallel()
		lapDist, steering, brake, throttle, _ := buildLap(500)
		addTriangleCorner(steering, 100, 140)
		for i := 94; i < 100; i++ {
			brake[i] = 0.8
		}
		for i := 100; i < 130; i++ {
			throttle[i] = 0.2
		}

		set := SignalSet{
			LapDist:  makeSlice(lapDist),
			Steering: makeSlice(steering),
			Brake:    makeSlice(brake),
			Throttle: makeSlice(throttle),
		}
		layout, err := d.DetectLayout("Sebring", "GP", set, 3, "s1")
		require.NoError(t, err)

		assert.Equal(t, "Sebring", layout.TrackName)
		assert.Equal(t, "GP", layout.TrackVariant)
		assert.Equal(t, 1, layout.Version)
		assert.Equal(t, 3, layout.ReferenceLapNumber)
		assert.Equal(t, "s1", layout.ReferenceSessionID)
		assert.NotEmpty(t, layout.DetectionID)

		require.Len(t, layout.Segments, 3)
		assert.Equal(t, SegmentStraight, layout.Segments[0].Type)
		assert.Equal(t, SegmentCorner, layout.Segments[1].Type)
		assert.Equal(t, SegmentStraight, layout.Segments[2].Type)
		assert.Equal(t, "T1", layout.Segments[1].ID)

		corner := layout.Segments[1]
		require.NotNil(t, corner.ApexDist)
		require.NotNil(t, corner.EntryDist)
		require.NotNil(t, corner.ExitDist)
		// Apex at the triangle peak, entry at the last braking sample before
		// turn-in, exit at the first full-throttle sample.
		assert.InDelta(t, 240.0, *corner.ApexDist, 4)
		assert.InDelta(t, 198.0, *corner.EntryDist, 4)
		assert.InDelta(t, 260.0, *corner.ExitDist, 4)

		// Straights cover the rest of the lap in order.
		assert.Equal(t, 0.0, layout.Segments[0].StartDist)
		assert.Equal(t, corner.StartDist, layout.Segments[0].EndDist)
		assert.Equal(t, corner.EndDist, layout.Segments[2].StartDist)
		assert.Equal(t, layout.TrackLength, layout.Segments[2].EndDist)
	})

	t.Run("corner below minimum span is dropped", func(t *testing.T) {
		t.Parallel()
		lapDist, steering, _, _, _ := buildLap(500)
		// 4 samples = 8m of corner, below the 10m minimum.
		addTriangleCorner(steering, 100, 104)

		set := SignalSet{LapDist: makeSlice(lapDist), Steering: makeSlice(steering)}
		layout, err := d.DetectLayout("Sebring", "", set, 1, "s1")
		require.NoError(t, err)
		for _, seg := range layout.Segments {
			assert.Equal(t, SegmentStraight, seg.Type)
		}
	})

	t.Run("adjacent corners merge into a complex", func(t *testing.T) {
		t.Parallel()
		lapDist, steering, _, _, _ := buildLap(500)
		addTriangleCorner(steering, 100, 140)
		// 10 samples = 20m gap, below the 30m complex threshold.
		addTriangleCorner(steering, 150, 190)

		set := SignalSet{LapDist: makeSlice(lapDist), Steering: makeSlice(steering)}
		layout, err := d.DetectLayout("Sebring", "", set, 1, "s1")
		require.NoError(t, err)

		var complexes []Segment
		for _, seg := range layout.Segments {
			if seg.Type == SegmentComplex {
				complexes = append(complexes, seg)
			}
		}
		require.Len(t, complexes, 1)
		assert.Equal(t, "C1", complexes[0].ID)
		assert.Nil(t, complexes[0].ApexDist)
	})

	t.Run("distant corners stay separate", func(t *testing.T) {
		t.Parallel()
		lapDist, steering, _, _, _ := buildLap(500)
		addTriangleCorner(steering, 100, 140)
		addTriangleCorner(steering, 250, 290)

		set := SignalSet{LapDist: makeSlice(lapDist), Steering: makeSlice(steering)}
		layout, err := d.DetectLayout("Sebring", "", set, 1, "s1")
		require.NoError(t, err)

		var corners []Segment
		for _, seg := range layout.Segments {
			if seg.Type == SegmentCorner {
				corners = append(corners, seg)
			}
		}
		require.Len(t, corners, 2)
		assert.Equal(t, "T1", corners[0].ID)
		assert.Equal(t, "T2", corners[1].ID)
	})

	t.Run("corner open at the last sample closes at track length", func(t *testing.T) {
		t.Parallel()
		lapDist, steering, _, _, _ := buildLap(500)
		// Ramp that never comes back down.
		for i := 480; i < 500; i++ {
			steering[i] = 10 * float64(i-479)
		}

		set := SignalSet{LapDist: makeSlice(lapDist), Steering: makeSlice(steering)}
		layout, err := d.DetectLayout("Sebring", "", set, 1, "s1")
		require.NoError(t, err)

		var corner *Segment
		for i := range layout.Segments {
			if layout.Segments[i].Type == SegmentCorner {
				corner = &layout.Segments[i]
			}
		}
		require.NotNil(t, corner)
		assert.Equal(t, layout.TrackLength, corner.EndDist)
	})

	t.Run("steering trace longer than lap dist degrades gracefully", func(t *testing.T) {
		t.Parallel()
		// Channels record at independent frequencies, so the steering trace
		// can outrun Lap Dist. The zone here opens past the last distance
		// sample and never closes.
		lapDist, _, _, _, _ := buildLap(10)
		steering := make([]float64, 100)
		for i := 50; i < 100; i++ {
			steering[i] = 10 * float64(i-49)
		}

		set := SignalSet{LapDist: makeSlice(lapDist), Steering: makeSlice(steering)}
		layout, err := d.DetectLayout("Sebring", "", set, 1, "s1")
		require.NoError(t, err)
		require.NotEmpty(t, layout.Segments)

		var corner *Segment
		for i := range layout.Segments {
			if layout.Segments[i].Type == SegmentCorner {
				corner = &layout.Segments[i]
			}
		}
		require.NotNil(t, corner)
		assert.Equal(t, 0.0, corner.StartDist)
		assert.Equal(t, layout.TrackLength, corner.EndDist)
	})
}

func TestSteeringCurvature(t *testing.T) {
	t.Parallel()
	rates := steeringCurvature([]float64{0, 10, 10, -10})
	assert.Equal(t, []float64{0, 10, 0, 20}, rates)
}

func TestAssignSegmentIDs(t *testing.T) {
	t.Parallel()
	segs := []Segment{
		{Type: SegmentStraight},
		{Type: SegmentCorner},
		{Type: SegmentComplex},
		{Type: SegmentCorner},
		{Type: SegmentStraight},
	}
	assignSegmentIDs(segs)
	assert.Equal(t, "S1", segs[0].ID)
	assert.Equal(t, "T1", segs[1].ID)
	assert.Equal(t, "C1", segs[2].ID)
	assert.Equal(t, "T2", segs[3].ID)
	assert.Equal(t, "S2", segs[4].ID)
}
