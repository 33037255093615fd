package segments

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
)

// DetectorParams are the tunable thresholds of the layout detector. The zero
// value is not usable; start from DefaultDetectorParams.
type DetectorParams struct {
	// CurvatureThreshold is the steering-rate level above which a sample is
	// considered inside a corner.
	CurvatureThreshold float64
	// MinCornerSpan is the minimum track-distance span (meters) for a closed
	// corner zone to be kept.
	MinCornerSpan float64
	// ComplexDistanceThreshold is the maximum gap (meters) between adjacent
	// corners that still merges them into a complex.
	ComplexDistanceThreshold float64
	// StraightMinLength is the minimum gap (meters) that becomes a straight.
	StraightMinLength float64
	// BrakeThreshold is the brake pressure that counts as braking.
	BrakeThreshold float64
	// ThrottleFull is the throttle position considered full throttle.
	ThrottleFull float64
	// EntryBrakeWindow is how many samples before turn-in to search for the
	// braking point.
	EntryBrakeWindow int
	// ExitThrottleWindow is how many samples past the corner end to search
	// for full throttle.
	ExitThrottleWindow int
}

// DefaultDetectorParams returns the stock detection thresholds.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		CurvatureThreshold:       0.003,
		MinCornerSpan:            10.0,
		ComplexDistanceThreshold: 30.0,
		StraightMinLength:        20.0,
		BrakeThreshold:           0.1,
		ThrottleFull:             0.95,
		EntryBrakeWindow:         50,
		ExitThrottleWindow:       30,
	}
}

// Detector derives a track's segment layout from one lap's signals.
type Detector struct {
	params     DetectorParams
	normalizer *Normalizer
}

// NewDetector returns a Detector with the given thresholds.
func NewDetector(params DetectorParams) *Detector {
	return &Detector{params: params, normalizer: NewNormalizer()}
}

// cornerZone is a contiguous run of above-threshold curvature.
type cornerZone struct {
	startIdx  int
	endIdx    int
	startDist float64
	endDist   float64
}

// DetectLayout detects corners, straights, and complexes from the reference
// lap's signals. Lap Dist is mandatory; all other channels degrade
// gracefully when absent. Version is fixed at 1; bumps happen only through
// explicit cache invalidation.
func (d *Detector) DetectLayout(trackName, trackVariant string, set SignalSet, lapNumber int, sessionID string) (TrackLayout, error) {
	if set.LapDist == nil || len(set.LapDist.Values) == 0 {
		return TrackLayout{}, fmt.Errorf("%w: Lap Dist signal is required for layout detection", ErrInvalidInput)
	}

	normalized := d.normalizer.Normalize(set.LapDist.Values, 0)
	trackLength := normalized.TrackLength

	monitoring.Logf("detecting layout for %s, length: %.1fm", trackName, trackLength)

	// No steering signal means no curvature: the whole track reads as one
	// straight.
	var curvature []float64
	if set.Steering == nil || len(set.Steering.Values) == 0 {
		monitoring.Logf("no steering signal available, using placeholder layout")
		curvature = make([]float64, len(set.LapDist.Values))
	} else {
		curvature = steeringCurvature(set.Steering.Values)
	}

	zones := d.detectCornerZones(curvature, normalized)
	monitoring.Logf("detected %d corner zones", len(zones))

	corners := make([]Segment, 0, len(zones))
	for _, zone := range zones {
		corners = append(corners, d.enhanceCorner(zone, normalized, set))
	}

	merged := d.mergeAdjacentCorners(corners, trackLength)
	allSegments := d.fillStraights(merged, trackLength)

	sort.SliceStable(allSegments, func(i, j int) bool {
		return allSegments[i].StartDist < allSegments[j].StartDist
	})
	assignSegmentIDs(allSegments)

	monitoring.Logf("final layout: %d segments", len(allSegments))

	return TrackLayout{
		DetectionID:        uuid.New().String(),
		TrackName:          trackName,
		TrackVariant:       trackVariant,
		Version:            1,
		TrackLength:        trackLength,
		Segments:           allSegments,
		ReferenceLapNumber: lapNumber,
		ReferenceSessionID: sessionID,
	}, nil
}

// steeringCurvature is the per-sample absolute steering rate, used as a
// curvature proxy. The first sample has no predecessor and reads 0.
func steeringCurvature(values []float64) []float64 {
	rates := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		rates[i] = math.Abs(values[i] - values[i-1])
	}
	return rates
}

// detectCornerZones scans curvature for contiguous above-threshold runs. A
// closed run is kept only when its track-distance span exceeds MinCornerSpan;
// a run still open at the last sample closes at track length.
func (d *Detector) detectCornerZones(curvature []float64, normalized NormalizedDistance) []cornerZone {
	var zones []cornerZone
	inCorner := false
	startIdx := 0
	startDist := 0.0

	for i, curv := range curvature {
		if curv > d.params.CurvatureThreshold && !inCorner {
			inCorner = true
			startIdx = i
			if startIdx < len(normalized.Normalized) {
				startDist = normalized.Normalized[startIdx]
			}
		} else if curv <= d.params.CurvatureThreshold && inCorner {
			inCorner = false
			endIdx := i

			endDist := startDist
			span := 0.0
			if endIdx < len(normalized.Normalized) {
				endDist = normalized.Normalized[endIdx]
				span = endDist - startDist
			}

			if span > d.params.MinCornerSpan {
				zones = append(zones, cornerZone{
					startIdx:  startIdx,
					endIdx:    endIdx,
					startDist: startDist,
					endDist:   endDist,
				})
			}
		}
	}

	if inCorner {
		zones = append(zones, cornerZone{
			startIdx:  startIdx,
			endIdx:    len(curvature) - 1,
			startDist: startDist,
			endDist:   normalized.TrackLength,
		})
	}

	return zones
}

// enhanceCorner locates the apex (maximum absolute steering), the entry
// (braking point shortly before turn-in), and the exit (full throttle after
// the apex) for a corner zone.
func (d *Detector) enhanceCorner(zone cornerZone, normalized NormalizedDistance, set SignalSet) Segment {
	var apexDist, entryDist, exitDist *float64

	if set.Steering != nil && len(set.Steering.Values) > 0 {
		apexIdx := zone.startIdx
		maxSteering := 0.0
		limit := zone.endIdx + 1
		if limit > len(set.Steering.Values) {
			limit = len(set.Steering.Values)
		}
		for i := zone.startIdx; i < limit; i++ {
			if math.Abs(set.Steering.Values[i]) > maxSteering {
				maxSteering = math.Abs(set.Steering.Values[i])
				apexIdx = i
			}
		}
		if apexIdx < len(normalized.Normalized) {
			apexDist = ptr(normalized.Normalized[apexIdx])
		}
	}

	if set.Brake != nil && len(set.Brake.Values) > 0 {
		searchStart := zone.startIdx - d.params.EntryBrakeWindow
		if searchStart < 0 {
			searchStart = 0
		}
		for i := zone.startIdx; i > searchStart; i-- {
			if i < len(set.Brake.Values) && set.Brake.Values[i] > d.params.BrakeThreshold {
				if i < len(normalized.Normalized) {
					entryDist = ptr(normalized.Normalized[i])
				}
				break
			}
		}
	}

	if set.Throttle != nil && len(set.Throttle.Values) > 0 && apexDist != nil {
		searchEnd := zone.endIdx + d.params.ExitThrottleWindow
		if searchEnd > len(set.Throttle.Values) {
			searchEnd = len(set.Throttle.Values)
		}
		for i := zone.startIdx; i < searchEnd; i++ {
			if set.Throttle.Values[i] >= d.params.ThrottleFull {
				if i < len(normalized.Normalized) {
					exitDist = ptr(normalized.Normalized[i])
				}
				break
			}
		}
	}

	return Segment{
		Type:      SegmentCorner,
		StartDist: zone.startDist,
		EndDist:   zone.endDist,
		EntryDist: entryDist,
		ApexDist:  apexDist,
		ExitDist:  exitDist,
	}
}

// mergeAdjacentCorners joins consecutive corners closer than the complex
// threshold into a single complex. Merging is a greedy single left-to-right
// pass; a freshly merged complex is not re-checked against its next
// neighbor. A complex keeps the first corner's entry and the last corner's
// exit but loses the individual apex.
func (d *Detector) mergeAdjacentCorners(corners []Segment, trackLength float64) []Segment {
	if len(corners) < 2 {
		return corners
	}

	merged := make([]Segment, 0, len(corners))
	i := 0
	for i < len(corners) {
		current := corners[i]

		if i+1 < len(corners) {
			next := corners[i+1]
			gap := next.StartDist - current.EndDist
			if gap < 0 {
				gap += trackLength
			}

			if gap < d.params.ComplexDistanceThreshold {
				merged = append(merged, Segment{
					Type:      SegmentComplex,
					StartDist: current.StartDist,
					EndDist:   next.EndDist,
					EntryDist: current.EntryDist,
					ApexDist:  nil, // multiple apexes
					ExitDist:  next.ExitDist,
				})
				i += 2
				continue
			}
		}

		merged = append(merged, current)
		i++
	}
	return merged
}

// fillStraights inserts straight segments into gaps longer than
// StraightMinLength: before the first corner, between corners, and on the
// wrap from the last corner back past the start/finish line.
func (d *Detector) fillStraights(segs []Segment, trackLength float64) []Segment {
	if len(segs) == 0 {
		return []Segment{{
			ID:        "S1",
			Type:      SegmentStraight,
			StartDist: 0,
			EndDist:   trackLength,
		}}
	}

	sorted := append([]Segment(nil), segs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartDist < sorted[j].StartDist })

	var all []Segment

	if first := sorted[0].StartDist; first > d.params.StraightMinLength {
		all = append(all, Segment{
			Type:      SegmentStraight,
			StartDist: 0,
			EndDist:   first,
		})
	}

	for i, seg := range sorted {
		all = append(all, seg)

		if i+1 < len(sorted) {
			gap := sorted[i+1].StartDist - seg.EndDist
			if gap > d.params.StraightMinLength {
				all = append(all, Segment{
					Type:      SegmentStraight,
					StartDist: seg.EndDist,
					EndDist:   sorted[i+1].StartDist,
				})
			}
		}
	}

	// The gap from the last corner back to the first one crosses S/F; this
	// is usually the main straight.
	lastEnd := sorted[len(sorted)-1].EndDist
	totalGap := (trackLength - lastEnd) + sorted[0].StartDist
	if totalGap > d.params.StraightMinLength {
		all = append(all, Segment{
			Type:      SegmentStraight,
			StartDist: lastEnd,
			EndDist:   trackLength, // wraps to the first corner
		})
	}

	return all
}

// assignSegmentIDs numbers segments per type in sorted order: T1.. for
// corners, S1.. for straights, C1.. for complexes.
func assignSegmentIDs(segs []Segment) {
	cornerNum, straightNum, complexNum := 1, 1, 1
	for i := range segs {
		switch segs[i].Type {
		case SegmentCorner:
			segs[i].ID = fmt.Sprintf("T%d", cornerNum)
			cornerNum++
		case SegmentStraight:
			segs[i].ID = fmt.Sprintf("S%d", straightNum)
			straightNum++
		case SegmentComplex:
			segs[i].ID = fmt.Sprintf("C%d", complexNum)
			complexNum++
		}
	}
}
