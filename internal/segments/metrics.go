package segments

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
)

// sampleRateHz is the assumed fixed source rate used for segment-time
// estimation. Recordings are sampled close to 60 Hz; segment time is
// approximated from the in-segment sample count rather than timestamp
// deltas.
const sampleRateHz = 60.0

// Calculator derives per-segment metrics for one lap against a layout.
type Calculator struct {
	normalizer *Normalizer
}

// NewCalculator returns a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{normalizer: NewNormalizer()}
}

// CalculateLapMetrics computes metrics for every segment of the layout from
// one lap's signals. Lap Dist is mandatory and is normalized once per call.
// When referenceMetrics is non-nil, per-segment time deltas are filled in by
// segment ID.
func (c *Calculator) CalculateLapMetrics(
	sessionID string,
	lapNumber int,
	layout TrackLayout,
	set SignalSet,
	lapTime *float64,
	referenceMetrics *LapSegmentMetrics,
) (LapSegmentMetrics, error) {
	if set.LapDist == nil || len(set.LapDist.Values) == 0 {
		return LapSegmentMetrics{}, fmt.Errorf("%w: Lap Dist signal required for metrics calculation", ErrInvalidInput)
	}

	normalized := c.normalizer.Normalize(set.LapDist.Values, 0)

	segmentMetrics := make([]SegmentMetrics, 0, len(layout.Segments))
	totalSegmentTime := 0.0
	for _, segment := range layout.Segments {
		m := c.segmentMetrics(sessionID, lapNumber, segment, normalized, set)
		segmentMetrics = append(segmentMetrics, m)
		totalSegmentTime += m.SegmentTime
	}

	if referenceMetrics != nil {
		applyTimeDeltas(segmentMetrics, referenceMetrics)
	}

	totalTime := totalSegmentTime
	if lapTime != nil {
		totalTime = *lapTime
	}

	return LapSegmentMetrics{
		SessionID:     sessionID,
		LapNumber:     lapNumber,
		LayoutVersion: layout.Version,
		TrackLength:   layout.TrackLength,
		TotalTime:     &totalTime,
		Segments:      segmentMetrics,
	}, nil
}

// segmentMetrics computes the metrics row for a single segment. A segment
// resolving to no samples produces an all-nil row rather than an error.
func (c *Calculator) segmentMetrics(sessionID string, lapNumber int, segment Segment, normalized NormalizedDistance, set SignalSet) SegmentMetrics {
	startIdx := c.normalizer.MapToTrackPosition(normalized, segment.StartDist)
	endIdx := c.normalizer.MapToTrackPosition(normalized, segment.EndDist)

	// start >= end means the segment wraps past the start/finish line.
	var indices []int
	if startIdx >= endIdx {
		for i := startIdx; i < len(normalized.Normalized); i++ {
			indices = append(indices, i)
		}
		for i := 0; i < endIdx; i++ {
			indices = append(indices, i)
		}
	} else {
		for i := startIdx; i < endIdx; i++ {
			indices = append(indices, i)
		}
	}

	metrics := SegmentMetrics{
		SegmentID: segment.ID,
		LapNumber: lapNumber,
		SessionID: sessionID,
	}
	if len(indices) == 0 {
		return metrics
	}

	_, speedValues := valuesAt(set.Speed, indices)
	brakeIdx, brakeValues := valuesAt(set.Brake, indices)
	throttleIdx, throttleValues := valuesAt(set.Throttle, indices)
	_, steeringValues := valuesAt(set.Steering, indices)

	metrics.EntrySpeed = c.speedAtDistance(set, normalized, segment.StartDist)
	metrics.MidSpeed = c.speedAtDistance(set, normalized, (segment.StartDist+segment.EndDist)/2)
	metrics.ExitSpeed = c.speedAtDistance(set, normalized, segment.EndDist)
	metrics.MinSpeed = minOf(speedValues)
	metrics.MaxSpeed = maxOf(speedValues)
	metrics.AvgSpeed = avgOf(speedValues)

	metrics.SegmentTime = segmentTime(normalized, indices)

	metrics.BrakingDistance = brakingDistance(brakeIdx, brakeValues, normalized, segment.StartDist)
	metrics.MaxBrakePressure = maxOf(brakeValues)
	metrics.ThrottleApplication = throttleApplication(throttleIdx, throttleValues, normalized, segment.EndDist)
	metrics.SteeringSmoothness = steeringSmoothness(steeringValues)

	return metrics
}

// valuesAt extracts the in-segment samples of a signal, keeping the index of
// each retained value so distances can be recovered later. Out-of-range
// indices are skipped.
func valuesAt(slice *signals.Slice, indices []int) ([]int, []float64) {
	if slice == nil || len(slice.Values) == 0 {
		return nil, nil
	}
	keptIdx := make([]int, 0, len(indices))
	kept := make([]float64, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(slice.Values) {
			keptIdx = append(keptIdx, idx)
			kept = append(kept, slice.Values[idx])
		}
	}
	return keptIdx, kept
}

func (c *Calculator) speedAtDistance(set SignalSet, normalized NormalizedDistance, targetDist float64) *float64 {
	if set.Speed == nil || len(set.Speed.Values) == 0 {
		return nil
	}
	idx := c.normalizer.MapToTrackPosition(normalized, targetDist)
	if idx >= 0 && idx < len(set.Speed.Values) {
		return ptr(set.Speed.Values[idx])
	}
	return nil
}

// segmentTime approximates the time spent in a segment from the sample count
// at the assumed fixed sampling rate.
func segmentTime(normalized NormalizedDistance, indices []int) float64 {
	if len(indices) < 2 {
		return 0
	}
	first, last := indices[0], indices[len(indices)-1]
	if first >= len(normalized.Normalized) || last >= len(normalized.Normalized) {
		return 0
	}
	return float64(len(indices)) / sampleRateHz
}

// brakingDistance is the signed distance from the segment start back to the
// first in-segment sample above the brake threshold; nil when the driver
// never brakes in the segment.
func brakingDistance(indices []int, brakeValues []float64, normalized NormalizedDistance, entryDist float64) *float64 {
	const brakeThreshold = 0.1
	for i, brake := range brakeValues {
		if brake > brakeThreshold {
			idx := indices[i]
			if idx < len(normalized.Normalized) {
				return ptr(entryDist - normalized.Normalized[idx])
			}
		}
	}
	return nil
}

// throttleApplication is the signed distance from the segment end to the
// first in-segment sample at or above full throttle; nil when full throttle
// is never reached.
func throttleApplication(indices []int, throttleValues []float64, normalized NormalizedDistance, exitDist float64) *float64 {
	const throttleFull = 0.95
	for i, throttle := range throttleValues {
		if throttle >= throttleFull {
			idx := indices[i]
			if idx < len(normalized.Normalized) {
				return ptr(normalized.Normalized[idx] - exitDist)
			}
		}
	}
	return nil
}

// steeringSmoothness is the population standard deviation of the absolute
// steering rate inside the segment; lower is smoother. Needs at least two
// samples.
func steeringSmoothness(steeringValues []float64) *float64 {
	if len(steeringValues) < 2 {
		return nil
	}
	rates := make([]float64, 0, len(steeringValues)-1)
	for i := 1; i < len(steeringValues); i++ {
		rates = append(rates, math.Abs(steeringValues[i]-steeringValues[i-1]))
	}
	return ptr(stat.PopStdDev(rates, nil))
}

// applyTimeDeltas fills TimeDeltaToReference by segment ID. Segments absent
// from the reference, or whose reference time is zero, stay nil.
func applyTimeDeltas(metrics []SegmentMetrics, reference *LapSegmentMetrics) {
	refByID := make(map[string]SegmentMetrics, len(reference.Segments))
	for _, seg := range reference.Segments {
		refByID[seg.SegmentID] = seg
	}

	for i := range metrics {
		if ref, ok := refByID[metrics[i].SegmentID]; ok && ref.SegmentTime > 0 {
			metrics[i].TimeDeltaToReference = ptr(metrics[i].SegmentTime - ref.SegmentTime)
		}
	}
}

func minOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return &m
}

func maxOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return &m
}

func avgOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return ptr(stat.Mean(values, nil))
}
