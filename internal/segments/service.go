package segments

import (
	"fmt"
	"sort"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
)

// layoutVersion is the current layout generation. Detection always writes
// this version; bumping it invalidates every cached layout and all dependent
// lap metrics.
const layoutVersion = 1

// LayoutCache persists layouts and lap metrics across requests. Implemented
// by segmentcache.Cache; a nil-safe no-op is not provided, callers always
// pass a real cache.
type LayoutCache interface {
	Layout(trackName, trackVariant string, version int) (*TrackLayout, bool, error)
	SaveLayout(layout TrackLayout) error
	LapMetrics(sessionID string, lapNumber, layoutVersion int) (*LapSegmentMetrics, bool, error)
	SaveLapMetrics(metrics LapSegmentMetrics) error
}

// Service orchestrates the segment pipeline: layout get-or-detect, per-lap
// metrics with caching, and lap-to-lap comparison.
type Service struct {
	manager  *telemetry.Manager
	signals  *signals.Service
	cache    LayoutCache
	detector *Detector
	calc     *Calculator
	selector *Selector
}

// NewService wires the segment pipeline against a session manager, a signal
// service, and a cache.
func NewService(manager *telemetry.Manager, signalService *signals.Service, cache LayoutCache, params DetectorParams) *Service {
	return &Service{
		manager:  manager,
		signals:  signalService,
		cache:    cache,
		detector: NewDetector(params),
		calc:     NewCalculator(),
		selector: NewSelector(),
	}
}

// lapSignalSet fetches the full-resolution analysis channels for one lap.
func (s *Service) lapSignalSet(sessionID string, lapNumber int) (SignalSet, error) {
	channels := make([]string, len(signals.AnalysisChannels))
	for i, c := range signals.AnalysisChannels {
		channels[i] = string(c)
	}
	slices, err := s.signals.LapSignals(sessionID, lapNumber, signals.Request{
		Channels:      channels,
		NormalizeTime: true,
	})
	if err != nil {
		return SignalSet{}, err
	}
	return ResolveSignalSet(slices), nil
}

// GetOrCreateLayout returns the cached layout for the session's track, or
// detects a new one from the best reference lap. A preferred lap only
// matters when detection actually runs; forceRegenerate always re-detects
// and overwrites the cache entry at the same version.
func (s *Service) GetOrCreateLayout(sessionID string, preferredLap *int, forceRegenerate bool) (TrackLayout, error) {
	session, err := s.manager.Session(sessionID)
	if err != nil {
		return TrackLayout{}, err
	}

	trackName := session.TrackName
	if trackName == "" {
		trackName = "Unknown"
	}
	trackVariant := session.TrackVariant

	if !forceRegenerate {
		cached, ok, err := s.cache.Layout(trackName, trackVariant, layoutVersion)
		if err != nil {
			return TrackLayout{}, err
		}
		if ok {
			monitoring.Logf("using cached layout for %s", trackName)
			return *cached, nil
		}
	}

	monitoring.Logf("detecting new layout for %s", trackName)

	laps, err := s.manager.SessionLaps(sessionID)
	if err != nil {
		return TrackLayout{}, err
	}
	if len(laps) == 0 {
		return TrackLayout{}, fmt.Errorf("%w: no laps found in session %s", ErrInvalidInput, sessionID)
	}

	// Steering/brake from the first lap inform reference selection; both are
	// optional and failures are absorbed.
	selectionSet, err := s.lapSignalSet(sessionID, laps[0].LapNumber)
	if err != nil {
		monitoring.Logf("could not fetch selection signals: %v", err)
		selectionSet = SignalSet{}
	}

	refLap, ok := s.selector.SelectReferenceLap(laps, selectionSet.Steering, selectionSet.Brake, preferredLap)
	if !ok {
		return TrackLayout{}, fmt.Errorf("%w: could not select reference lap for %s", ErrInvalidInput, sessionID)
	}
	monitoring.Logf("using reference lap %d for layout detection", refLap)

	set, err := s.lapSignalSet(sessionID, refLap)
	if err != nil {
		return TrackLayout{}, err
	}

	layout, err := s.detector.DetectLayout(trackName, trackVariant, set, refLap, sessionID)
	if err != nil {
		return TrackLayout{}, err
	}

	if err := s.cache.SaveLayout(layout); err != nil {
		monitoring.Logf("failed to cache layout for %s: %v", trackName, err)
	}
	return layout, nil
}

// LapMetrics returns the segment metrics for one lap, from cache when
// possible. The reference lap's metrics are computed first (without deltas
// against itself) so every other lap carries per-segment time deltas.
func (s *Service) LapMetrics(sessionID string, lapNumber int, forceRecompute bool) (LapSegmentMetrics, error) {
	layout, err := s.GetOrCreateLayout(sessionID, nil, false)
	if err != nil {
		return LapSegmentMetrics{}, err
	}

	if !forceRecompute {
		cached, ok, err := s.cache.LapMetrics(sessionID, lapNumber, layout.Version)
		if err != nil {
			return LapSegmentMetrics{}, err
		}
		if ok {
			monitoring.Debugf("using cached metrics for %s lap %d", sessionID, lapNumber)
			return *cached, nil
		}
	}

	monitoring.Logf("calculating metrics for %s lap %d", sessionID, lapNumber)

	set, err := s.lapSignalSet(sessionID, lapNumber)
	if err != nil {
		return LapSegmentMetrics{}, err
	}

	laps, err := s.manager.SessionLaps(sessionID)
	if err != nil {
		return LapSegmentMetrics{}, err
	}
	lap, err := telemetry.FindLap(laps, lapNumber)
	if err != nil {
		return LapSegmentMetrics{}, err
	}

	// The reference lap itself carries no deltas; recursion bottoms out there.
	var referenceMetrics *LapSegmentMetrics
	if lapNumber != layout.ReferenceLapNumber {
		ref, err := s.LapMetrics(sessionID, layout.ReferenceLapNumber, false)
		if err != nil {
			monitoring.Logf("could not get reference metrics: %v", err)
		} else {
			referenceMetrics = &ref
		}
	}

	metrics, err := s.calc.CalculateLapMetrics(sessionID, lapNumber, layout, set, lap.LapTime, referenceMetrics)
	if err != nil {
		return LapSegmentMetrics{}, err
	}

	if err := s.cache.SaveLapMetrics(metrics); err != nil {
		monitoring.Logf("failed to cache metrics for %s lap %d: %v", sessionID, lapNumber, err)
	}
	return metrics, nil
}

// CompareLaps compares two laps segment by segment and surfaces the biggest
// time losses and gains. Deltas read target minus reference: positive means
// the target lap was slower.
func (s *Service) CompareLaps(sessionID string, req ComparisonRequest) (ComparisonResponse, error) {
	layout, err := s.GetOrCreateLayout(sessionID, nil, false)
	if err != nil {
		return ComparisonResponse{}, err
	}

	target, err := s.LapMetrics(sessionID, req.TargetLap, false)
	if err != nil {
		return ComparisonResponse{}, err
	}
	reference, err := s.LapMetrics(sessionID, req.ReferenceLap, false)
	if err != nil {
		return ComparisonResponse{}, err
	}

	targetByID := metricsByID(target.Segments)
	refByID := metricsByID(reference.Segments)

	segmentIDs := req.SegmentIDs
	if len(segmentIDs) == 0 {
		segmentIDs = make([]string, len(layout.Segments))
		for i, seg := range layout.Segments {
			segmentIDs[i] = seg.ID
		}
	}

	type segmentDelta struct {
		segmentID string
		delta     float64
	}

	var comparisons []Comparison
	var deltas []segmentDelta

	for _, segID := range segmentIDs {
		targetSeg, okT := targetByID[segID]
		refSeg, okR := refByID[segID]
		if !okT || !okR {
			continue
		}

		timeDelta := targetSeg.SegmentTime - refSeg.SegmentTime
		deltas = append(deltas, segmentDelta{segID, timeDelta})

		var minSpeedDelta *float64
		if targetSeg.MinSpeed != nil && refSeg.MinSpeed != nil {
			minSpeedDelta = ptr(*targetSeg.MinSpeed - *refSeg.MinSpeed)
		}

		var keyDiffs []string
		if timeDelta > 0.5 {
			keyDiffs = append(keyDiffs, fmt.Sprintf("%.2fs slower", timeDelta))
		} else if timeDelta < -0.5 {
			keyDiffs = append(keyDiffs, fmt.Sprintf("%.2fs faster", -timeDelta))
		}
		if minSpeedDelta != nil && (*minSpeedDelta > 5 || *minSpeedDelta < -5) {
			if *minSpeedDelta > 0 {
				keyDiffs = append(keyDiffs, fmt.Sprintf("%.1f km/h faster min", *minSpeedDelta))
			} else {
				keyDiffs = append(keyDiffs, fmt.Sprintf("%.1f km/h slower min", -*minSpeedDelta))
			}
		}

		comparisons = append(comparisons, Comparison{
			SegmentID:         segID,
			TargetLap:         req.TargetLap,
			ReferenceLap:      req.ReferenceLap,
			TargetTime:        targetSeg.SegmentTime,
			ReferenceTime:     refSeg.SegmentTime,
			TimeDelta:         timeDelta,
			TargetMinSpeed:    targetSeg.MinSpeed,
			ReferenceMinSpeed: refSeg.MinSpeed,
			MinSpeedDelta:     minSpeedDelta,
			KeyDifferences:    keyDiffs,
		})
	}

	// Biggest losses from the head of the descending sort, biggest gains from
	// the tail.
	sort.SliceStable(deltas, func(i, j int) bool { return deltas[i].delta > deltas[j].delta })

	var losses []string
	for _, d := range deltas {
		if len(losses) == 3 {
			break
		}
		if d.delta > 0 {
			losses = append(losses, d.segmentID)
		}
	}

	var gains []string
	start := len(deltas) - 3
	if start < 0 {
		start = 0
	}
	for _, d := range deltas[start:] {
		if d.delta < 0 {
			gains = append(gains, d.segmentID)
		}
	}

	totalDelta := 0.0
	for _, d := range deltas {
		totalDelta += d.delta
	}

	return ComparisonResponse{
		SessionID:      sessionID,
		TargetLap:      req.TargetLap,
		ReferenceLap:   req.ReferenceLap,
		TrackLength:    layout.TrackLength,
		TotalTimeDelta: totalDelta,
		Comparisons:    comparisons,
		LargestLosses:  losses,
		LargestGains:   gains,
	}, nil
}

// SegmentsForLap returns the layout's segment definitions without metrics.
func (s *Service) SegmentsForLap(sessionID string, lapNumber int) ([]Segment, error) {
	layout, err := s.GetOrCreateLayout(sessionID, nil, false)
	if err != nil {
		return nil, err
	}
	return layout.Segments, nil
}

func metricsByID(segs []SegmentMetrics) map[string]SegmentMetrics {
	byID := make(map[string]SegmentMetrics, len(segs))
	for _, seg := range segs {
		byID[seg.SegmentID] = seg
	}
	return byID
}
