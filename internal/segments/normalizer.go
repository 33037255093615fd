package segments

import (
	"math"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
)

// Thresholds for Lap Dist cleanup. The raw signal wraps to ~0 at the
// start/finish line and occasionally carries negative sensor artifacts.
const (
	// WrapThreshold is the minimum sudden drop (meters) treated as a
	// start/finish wrap rather than noise.
	WrapThreshold = 50.0
	// NegativeJumpThreshold is the drop (meters) above which a non-wrap
	// backwards step is treated as a sensor artifact.
	NegativeJumpThreshold = 10.0
)

// Normalizer converts raw Lap Dist signals into monotonic track coordinates.
type Normalizer struct{}

// NewNormalizer returns a Normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize converts Lap Dist values to monotonic 0..track_length
// coordinates. It detects the track length from the running maximum before
// the first wrap, accumulates an offset at each wrap to keep the output
// non-decreasing, and repairs negative samples by interpolation. The result
// is always best-effort; malformed input never produces an error.
//
// lapStartOffset seeds the accumulated offset for multi-lap continuity.
func (n *Normalizer) Normalize(lapDistances []float64, lapStartOffset float64) NormalizedDistance {
	if len(lapDistances) == 0 {
		return NormalizedDistance{
			Original:    []float64{},
			Normalized:  []float64{},
			TrackLength: 0,
			WrapPoints:  []int{},
		}
	}

	if len(lapDistances) < 2 {
		return NormalizedDistance{
			Original:    append([]float64(nil), lapDistances...),
			Normalized:  []float64{lapStartOffset},
			TrackLength: lapDistances[0],
			WrapPoints:  []int{},
		}
	}

	trackLength := estimateTrackLength(lapDistances)

	normalized := make([]float64, 0, len(lapDistances))
	wrapPoints := []int{}
	accumulatedOffset := lapStartOffset

	for i, dist := range lapDistances {
		// Negative samples are sensor artifacts.
		if dist < 0 {
			if i == 0 {
				normalized = append(normalized, accumulatedOffset)
			} else {
				prevValid := normalized[len(normalized)-1]
				if nextValid, ok := nextValidSample(lapDistances, i); ok {
					normalized = append(normalized, prevValid+(nextValid-prevValid)*0.5)
				} else {
					normalized = append(normalized, prevValid)
				}
			}
			continue
		}

		if i > 0 && lapDistances[i-1] >= 0 {
			prevDist := lapDistances[i-1]
			drop := prevDist - dist

			if drop > WrapThreshold {
				wrapPoints = append(wrapPoints, i)
				accumulatedOffset += trackLength
				monitoring.Debugf("wrap at index %d: %.1f -> %.1f", i, prevDist, dist)
			} else if dist < prevDist-NegativeJumpThreshold {
				// Backwards step too small to be a wrap: hold the
				// previous normalized value.
				if len(normalized) > 0 {
					normalized = append(normalized, normalized[len(normalized)-1])
					continue
				}
			}
		}

		normalized = append(normalized, dist+accumulatedOffset)
	}

	return NormalizedDistance{
		Original:    append([]float64(nil), lapDistances...),
		Normalized:  normalized,
		TrackLength: trackLength,
		WrapPoints:  wrapPoints,
	}
}

// estimateTrackLength scans non-negative samples in order and returns the
// running maximum up to the first drop exceeding WrapThreshold.
func estimateTrackLength(lapDistances []float64) float64 {
	valid := make([]float64, 0, len(lapDistances))
	for _, d := range lapDistances {
		if d >= 0 {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		return 0
	}

	maxVal := valid[0]
	for i := 1; i < len(valid); i++ {
		if valid[i] < valid[i-1]-WrapThreshold {
			break
		}
		if valid[i] > maxVal {
			maxVal = valid[i]
		}
	}
	return maxVal
}

// nextValidSample returns the first non-negative raw value after startIdx.
func nextValidSample(lapDistances []float64, startIdx int) (float64, bool) {
	for i := startIdx + 1; i < len(lapDistances); i++ {
		if lapDistances[i] >= 0 {
			return lapDistances[i], true
		}
	}
	return 0, false
}

// MapToTrackPosition returns the index of the sample closest to targetDist.
// Ties keep the earliest index.
func (n *Normalizer) MapToTrackPosition(nd NormalizedDistance, targetDist float64) int {
	if len(nd.Normalized) == 0 {
		return 0
	}

	bestIdx := 0
	bestDiff := math.Abs(nd.Normalized[0] - targetDist)
	for i, dist := range nd.Normalized {
		if diff := math.Abs(dist - targetDist); diff < bestDiff {
			bestDiff = diff
			bestIdx = i
		}
	}
	return bestIdx
}

// DistanceAtIndex returns the normalized distance at idx, or false when idx
// is out of range.
func (n *Normalizer) DistanceAtIndex(nd NormalizedDistance, idx int) (float64, bool) {
	if idx < 0 || idx >= len(nd.Normalized) {
		return 0, false
	}
	return nd.Normalized[idx], true
}
