package segments

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
)

// Reference-lap scoring thresholds.
const (
	// maxSteeringRate above which a lap is assumed to contain a spin.
	maxSteeringRate = 500.0
	// steeringConsistencyThreshold is the mean steering rate below which a
	// lap earns the full smoothness bonus.
	steeringConsistencyThreshold = 200.0
	// refBrakeThreshold is the brake pressure that opens a braking zone.
	refBrakeThreshold = 0.1
	// minScoringSamples is the minimum signal length for steering/brake
	// analysis to contribute to the score.
	minScoringSamples = 100
)

// Selector scores laps and picks the one used as the canonical
// layout-detection source.
type Selector struct{}

// NewSelector returns a Selector.
func NewSelector() *Selector { return &Selector{} }

// SelectReferenceLap picks the best reference lap. A preferred lap wins
// outright when it exists and is valid; otherwise candidates are scored on
// lap time, validity, steering cleanliness, and braking consistency. Returns
// false when no valid lap with a positive time exists.
func (s *Selector) SelectReferenceLap(laps []telemetry.Lap, steering, brake *signals.Slice, preferredLap *int) (int, bool) {
	if len(laps) == 0 {
		monitoring.Logf("no laps available for reference selection")
		return 0, false
	}

	if preferredLap != nil {
		for _, lap := range laps {
			if lap.LapNumber == *preferredLap && lap.Valid {
				monitoring.Logf("using user-preferred reference lap: %d", *preferredLap)
				return *preferredLap, true
			}
		}
		monitoring.Logf("preferred lap %d not found or invalid", *preferredLap)
	}

	var candidates []telemetry.Lap
	for _, lap := range laps {
		if lap.Valid && lap.LapTime != nil && *lap.LapTime > 0 {
			candidates = append(candidates, lap)
		}
	}
	if len(candidates) == 0 {
		monitoring.Logf("no valid laps with lap times found")
		return 0, false
	}

	bestTime := *candidates[0].LapTime
	for _, lap := range candidates[1:] {
		if *lap.LapTime < bestTime {
			bestTime = *lap.LapTime
		}
	}

	bestLap := 0
	bestScore := math.Inf(-1)
	for _, lap := range candidates {
		score := s.lapScore(lap, bestTime, steering, brake)
		monitoring.Debugf("lap %d: score %.1f, time %.3fs", lap.LapNumber, score, *lap.LapTime)
		// Strict comparison keeps the earliest lap on ties.
		if score > bestScore {
			bestScore = score
			bestLap = lap.LapNumber
		}
	}

	monitoring.Logf("selected reference lap %d with score %.1f", bestLap, bestScore)
	return bestLap, true
}

func (s *Selector) lapScore(lap telemetry.Lap, bestTime float64, steering, brake *signals.Slice) float64 {
	score := 100.0 * (bestTime / *lap.LapTime)
	if lap.Valid {
		score += 50.0
	}
	if steering != nil && len(steering.Values) >= minScoringSamples {
		score += steeringBonus(steering.Values)
	}
	if brake != nil && len(brake.Values) >= minScoringSamples {
		score += brakeBonus(brake.Values)
	}
	return score
}

// steeringBonus rewards smooth steering: 30 for consistently low rates, 15
// otherwise, 0 when any rate spike suggests a spin.
func steeringBonus(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	rates := make([]float64, 0, len(values)-1)
	maxRate := 0.0
	for i := 1; i < len(values); i++ {
		rate := math.Abs(values[i] - values[i-1])
		rates = append(rates, rate)
		if rate > maxRate {
			maxRate = rate
		}
	}

	if maxRate > maxSteeringRate {
		return 0
	}
	if stat.Mean(rates, nil) < steeringConsistencyThreshold {
		return 30
	}
	return 15
}

// brakeBonus rewards a plausible number of braking zones: 6-20 zones is the
// normal range for a lap, more than 30 suggests brake riding.
func brakeBonus(values []float64) float64 {
	if len(values) < minScoringSamples {
		return 0
	}

	zones := 0
	inBraking := false
	for _, v := range values {
		if v > refBrakeThreshold && !inBraking {
			zones++
			inBraking = true
		} else if v <= refBrakeThreshold {
			inBraking = false
		}
	}

	switch {
	case zones >= 6 && zones <= 20:
		return 20
	case zones > 30:
		return 0
	default:
		return 10
	}
}

// IsLapClean reports whether a lap looks usable: valid, timed, and free of
// steering-rate spikes.
func (s *Selector) IsLapClean(lap telemetry.Lap, steering *signals.Slice) bool {
	if !lap.Valid || lap.LapTime == nil {
		return false
	}

	if steering != nil && len(steering.Values) >= 2 {
		for i := 1; i < len(steering.Values); i++ {
			if math.Abs(steering.Values[i]-steering.Values[i-1]) > maxSteeringRate {
				return false
			}
		}
	}
	return true
}
