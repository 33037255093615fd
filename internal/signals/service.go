package signals

import (
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
)

// Service retrieves signal slices and compares laps. Absent channels are
// skipped with a warning rather than failing the whole request.
type Service struct {
	manager *telemetry.Manager
}

// NewService returns a signal Service backed by the given session manager.
func NewService(manager *telemetry.Manager) *Service {
	return &Service{manager: manager}
}

// Request selects which channels to fetch for a lap and how.
type Request struct {
	Channels      []string
	NormalizeTime bool
	UseDistance   bool
	MaxPoints     int // 0 = no downsampling
}

// AvailableSignals lists the channels recorded in a session.
func (s *Service) AvailableSignals(sessionID string) ([]Metadata, error) {
	store, err := s.manager.Store(sessionID)
	if err != nil {
		return nil, err
	}
	channels, err := store.Channels()
	if err != nil {
		return nil, err
	}

	metadata := make([]Metadata, 0, len(channels))
	for _, c := range channels {
		metadata = append(metadata, Metadata{Name: c.Name, Frequency: c.Frequency, Unit: c.Unit})
	}
	return metadata, nil
}

// LapSignals retrieves the requested channels for one lap. Channels missing
// from the recording are skipped.
func (s *Service) LapSignals(sessionID string, lapNumber int, req Request) ([]Slice, error) {
	store, err := s.manager.Store(sessionID)
	if err != nil {
		return nil, err
	}
	laps, err := store.Laps()
	if err != nil {
		return nil, err
	}
	lap, err := telemetry.FindLap(laps, lapNumber)
	if err != nil {
		return nil, err
	}

	slices := make([]Slice, 0, len(req.Channels))
	for _, channel := range req.Channels {
		exists, err := store.ChannelExists(channel)
		if err != nil {
			return nil, err
		}
		if !exists {
			monitoring.Logf("channel %q not found in session %s", channel, sessionID)
			continue
		}

		slice, err := s.sliceLap(store, sessionID, channel, lap, req)
		if err != nil {
			monitoring.Logf("error retrieving signal %q for lap %d: %v", channel, lapNumber, err)
			continue
		}
		slices = append(slices, slice)
	}
	return slices, nil
}

func (s *Service) sliceLap(store *telemetry.SessionStore, sessionID, channel string, lap telemetry.Lap, req Request) (Slice, error) {
	timestamps, values, err := store.Samples(channel, lap.StartTime, lap.EndTime)
	if err != nil {
		return Slice{}, err
	}
	timestamps, values = downsample(timestamps, values, req.MaxPoints)

	unit, err := store.ChannelUnit(channel)
	if err != nil {
		return Slice{}, err
	}

	var distance []float64
	if req.UseDistance && channel != string(ChannelLapDist) {
		distTs, distVals, err := store.Samples(string(ChannelLapDist), lap.StartTime, lap.EndTime)
		if err == nil {
			_, distance = downsample(distTs, distVals, req.MaxPoints)
		}
	}

	normalizedTime := timestamps
	if req.NormalizeTime && len(timestamps) > 0 {
		start := timestamps[0]
		normalizedTime = make([]float64, len(timestamps))
		for i, t := range timestamps {
			normalizedTime[i] = t - start
		}
	}

	samplingRate := 0
	if len(timestamps) > 1 {
		duration := timestamps[len(timestamps)-1] - timestamps[0]
		if duration > 0 {
			samplingRate = int(float64(len(timestamps)) / duration)
		}
	}

	return Slice{
		Channel:        channel,
		LapNumber:      lap.LapNumber,
		SessionID:      sessionID,
		Timestamps:     timestamps,
		NormalizedTime: normalizedTime,
		Values:         values,
		Distance:       distance,
		Unit:           unit,
		SamplingRate:   samplingRate,
	}, nil
}

// CompareLaps fetches the requested channels for two laps of the same
// session, aligned for plotting.
func (s *Service) CompareLaps(sessionID string, req LapComparisonRequest) ([]LapComparison, error) {
	store, err := s.manager.Store(sessionID)
	if err != nil {
		return nil, err
	}
	laps, err := store.Laps()
	if err != nil {
		return nil, err
	}
	targetLap, err := telemetry.FindLap(laps, req.TargetLap)
	if err != nil {
		return nil, err
	}
	referenceLap, err := telemetry.FindLap(laps, req.ReferenceLap)
	if err != nil {
		return nil, err
	}

	sliceReq := Request{
		NormalizeTime: req.NormalizeTime,
		UseDistance:   req.UseDistance,
		MaxPoints:     req.MaxPoints,
	}

	comparisons := make([]LapComparison, 0, len(req.Channels))
	for _, channel := range req.Channels {
		exists, err := store.ChannelExists(channel)
		if err != nil {
			return nil, err
		}
		if !exists {
			monitoring.Logf("channel %q not found in session %s", channel, sessionID)
			continue
		}

		target, err := s.sliceLap(store, sessionID, channel, targetLap, sliceReq)
		if err != nil {
			monitoring.Logf("error comparing channel %q for lap %d: %v", channel, req.TargetLap, err)
			continue
		}
		reference, err := s.sliceLap(store, sessionID, channel, referenceLap, sliceReq)
		if err != nil {
			monitoring.Logf("error comparing channel %q for lap %d: %v", channel, req.ReferenceLap, err)
			continue
		}

		targetTimes := target.Timestamps
		referenceTimes := reference.Timestamps
		if req.NormalizeTime {
			targetTimes = target.NormalizedTime
			referenceTimes = reference.NormalizedTime
		}

		var normalizedX []float64
		if req.UseDistance && len(target.Distance) > 0 {
			normalizedX = target.Distance
		} else if req.NormalizeTime {
			normalizedX = targetTimes
		}

		comparisons = append(comparisons, LapComparison{
			Channel:             channel,
			Unit:                target.Unit,
			TargetLap:           req.TargetLap,
			TargetTimestamps:    targetTimes,
			TargetValues:        target.Values,
			TargetDistance:      target.Distance,
			ReferenceLap:        req.ReferenceLap,
			ReferenceTimestamps: referenceTimes,
			ReferenceValues:     reference.Values,
			ReferenceDistance:   reference.Distance,
			NormalizedX:         normalizedX,
		})
	}
	return comparisons, nil
}

// downsample reduces a sample series to at most maxPoints by stride
// selection, always keeping the first sample. maxPoints <= 0 disables it.
func downsample(timestamps, values []float64, maxPoints int) ([]float64, []float64) {
	if maxPoints <= 0 || len(values) <= maxPoints {
		return timestamps, values
	}

	stride := (len(values) + maxPoints - 1) / maxPoints
	outTs := make([]float64, 0, maxPoints)
	outVals := make([]float64, 0, maxPoints)
	for i := 0; i < len(values); i += stride {
		outTs = append(outTs, timestamps[i])
		outVals = append(outVals, values[i])
	}
	return outTs, outVals
}
