package segments

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()

	t.Run("empty input produces empty result", func(t *testing.T) {
		t.Parallel()
		result := n.Normalize(nil, 0)
		assert.Empty(t, result.Normalized)
		assert.Empty(t, result.WrapPoints)
		assert.Equal(t, 0.0, result.TrackLength)
	})

	t.Run("single sample uses offset and value as length", func(t *testing.T) {
		t.Parallel()
		result := n.Normalize([]float64{123.4}, 10)
		assert.Equal(t, []float64{10.0}, result.Normalized)
		assert.Equal(t, 123.4, result.TrackLength)
	})

	t.Run("monotonic input passes through", func(t *testing.T) {
		t.Parallel()
		input := []float64{0, 100, 200, 300}
		result := n.Normalize(input, 0)
		if diff := cmp.Diff(input, result.Normalized); diff != "" {
			t.Errorf("normalized mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 300.0, result.TrackLength)
		assert.Empty(t, result.WrapPoints)
	})

	t.Run("wrap at start finish accumulates offset", func(t *testing.T) {
		t.Parallel()
		result := n.Normalize([]float64{3900, 3950, 4000, 5, 50}, 0)
		require.Len(t, result.WrapPoints, 1)
		assert.Equal(t, 3, result.WrapPoints[0])
		assert.Equal(t, 4000.0, result.TrackLength)
		assert.Equal(t, 4005.0, result.Normalized[3])
		assert.Equal(t, 4050.0, result.Normalized[4])
	})

	t.Run("negative artifact interpolates between neighbors", func(t *testing.T) {
		t.Parallel()
		result := n.Normalize([]float64{100, -5, 120}, 0)
		require.Len(t, result.Normalized, 3)
		assert.Equal(t, 100.0, result.Normalized[0])
		assert.Equal(t, 110.0, result.Normalized[1])
		assert.Equal(t, 120.0, result.Normalized[2])
		assert.Empty(t, result.WrapPoints)
	})

	t.Run("trailing negative artifact holds previous value", func(t *testing.T) {
		t.Parallel()
		result := n.Normalize([]float64{100, 110, -3}, 0)
		require.Len(t, result.Normalized, 3)
		assert.Equal(t, 110.0, result.Normalized[2])
	})

	t.Run("small backwards step holds previous value", func(t *testing.T) {
		t.Parallel()
		// A 20m backwards step is above the artifact threshold but below the
		// wrap threshold.
		result := n.Normalize([]float64{100, 120, 100, 130}, 0)
		require.Len(t, result.Normalized, 4)
		assert.Equal(t, 120.0, result.Normalized[2])
		assert.Equal(t, 130.0, result.Normalized[3])
		assert.Empty(t, result.WrapPoints)
	})

	t.Run("lap start offset shifts the whole lap", func(t *testing.T) {
		t.Parallel()
		result := n.Normalize([]float64{0, 100, 200}, 4000)
		assert.Equal(t, []float64{4000.0, 4100.0, 4200.0}, result.Normalized)
	})
}

func TestEstimateTrackLength(t *testing.T) {
	t.Parallel()

	t.Run("running max stops at first wrap", func(t *testing.T) {
		t.Parallel()
		// Values after the wrap never raise the estimate.
		got := estimateTrackLength([]float64{1000, 2000, 3000, 10, 5000})
		assert.Equal(t, 3000.0, got)
	})

	t.Run("negative samples are ignored", func(t *testing.T) {
		t.Parallel()
		got := estimateTrackLength([]float64{-5, 100, -3, 200})
		assert.Equal(t, 200.0, got)
	})

	t.Run("all negative yields zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, estimateTrackLength([]float64{-1, -2}))
	})
}

func TestMapToTrackPosition(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()
	nd := NormalizedDistance{Normalized: []float64{0, 100, 200, 300}}

	t.Run("nearest sample wins", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1, n.MapToTrackPosition(nd, 120))
		assert.Equal(t, 2, n.MapToTrackPosition(nd, 160))
	})

	t.Run("ties keep the earliest index", func(t *testing.T) {
		t.Parallel()
		// 150 is equidistant from 100 and 200.
		assert.Equal(t, 1, n.MapToTrackPosition(nd, 150))
	})

	t.Run("empty distances map to zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, n.MapToTrackPosition(NormalizedDistance{}, 50))
	})
}

func TestDistanceAtIndex(t *testing.T) {
	t.Parallel()
	n := NewNormalizer()
	nd := NormalizedDistance{Normalized: []float64{0, 100}}

	d, ok := n.DistanceAtIndex(nd, 1)
	require.True(t, ok)
	assert.Equal(t, 100.0, d)

	_, ok = n.DistanceAtIndex(nd, 2)
	assert.False(t, ok)
	_, ok = n.DistanceAtIndex(nd, -1)
	assert.False(t, ok)
}
