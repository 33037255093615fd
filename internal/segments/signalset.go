package segments

import (
	"errors"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
)

// ErrInvalidInput marks requests the pipeline cannot work with: a missing
// Lap Dist signal or a session with no usable laps. Surfaced as a client
// error at the HTTP boundary.
var ErrInvalidInput = errors.New("invalid input")

// SignalSet is the closed set of channels the pipeline consumes, resolved
// once at the entry point of layout or metrics computation. Any field may be
// nil; only LapDist is mandatory downstream.
type SignalSet struct {
	Steering *signals.Slice
	Brake    *signals.Slice
	Throttle *signals.Slice
	Speed    *signals.Slice
	LapDist  *signals.Slice
}

// ResolveSignalSet picks the known analysis channels out of a slice list.
func ResolveSignalSet(slices []signals.Slice) SignalSet {
	var set SignalSet
	for i := range slices {
		s := &slices[i]
		switch signals.Channel(s.Channel) {
		case signals.ChannelSteering:
			set.Steering = s
		case signals.ChannelBrake:
			set.Brake = s
		case signals.ChannelThrottle:
			set.Throttle = s
		case signals.ChannelSpeed:
			set.Speed = s
		case signals.ChannelLapDist:
			set.LapDist = s
		}
	}
	return set
}
