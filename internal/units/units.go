// Package units provides shared constants and validation for speed units
package units

// Unit constants
const (
	MS   = "ms"
	MPS  = "mps"
	KMH  = "kmh"
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MS, MPS, KMH, KMPH, KPH, MPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "ms, mps, kmh, kmph, kph, mph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Recordings and the segment cache store speeds in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694 // m/s to mph
	case KMH, KMPH, KPH:
		return speedMPS * 3.6 // m/s to km/h
	case MS, MPS:
		return speedMPS // no conversion needed
	default:
		return speedMPS // default to m/s if unknown unit
	}
}
