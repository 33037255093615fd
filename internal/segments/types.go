// Package segments implements the track-layout detection and segment-metrics
// pipeline: normalizing raw Lap Dist signals into a monotonic track
// coordinate, detecting corners/straights/complexes from steering curvature,
// and deriving per-lap per-segment performance metrics against a reference lap.
package segments

// SegmentType classifies a track subdivision.
type SegmentType string

const (
	SegmentCorner   SegmentType = "corner"
	SegmentStraight SegmentType = "straight"
	SegmentComplex  SegmentType = "complex"
)

// NormalizedDistance holds a Lap Dist signal converted to monotonic
// 0..track_length coordinates, plus the wrap metadata produced on the way.
type NormalizedDistance struct {
	Original    []float64 `json:"original_distances"`
	Normalized  []float64 `json:"normalized_distances"`
	TrackLength float64   `json:"track_length"`
	WrapPoints  []int     `json:"wrap_points"`
}

// Segment is a subdivision of a lap: a corner, a straight, or a complex of
// merged corners. Distances are meters from the start/finish line. EndDist may
// be numerically below StartDist only when the segment wraps past S/F.
type Segment struct {
	ID        string      `json:"segment_id"`
	Type      SegmentType `json:"segment_type"`
	StartDist float64     `json:"start_dist"`
	EndDist   float64     `json:"end_dist"`
	EntryDist *float64    `json:"entry_dist"` // braking/turn-in point
	ApexDist  *float64    `json:"apex_dist"`
	ExitDist  *float64    `json:"exit_dist"` // full-throttle point
}

// TrackLayout is one generation of a track's segment definitions, detected
// from a single reference lap. Version is the cache-invalidation key for all
// dependent lap metrics.
type TrackLayout struct {
	DetectionID        string    `json:"detection_id"`
	TrackName          string    `json:"track_name"`
	TrackVariant       string    `json:"track_layout,omitempty"`
	Version            int       `json:"version"`
	TrackLength        float64   `json:"track_length"`
	Segments           []Segment `json:"segments"`
	ReferenceLapNumber int       `json:"reference_lap_number"`
	ReferenceSessionID string    `json:"reference_session_id"`
}

// SegmentMetrics holds the derived metrics for one segment of one lap.
// Optional fields stay nil when the underlying signal was absent or the
// segment resolved to no samples.
type SegmentMetrics struct {
	SegmentID  string `json:"segment_id"`
	LapNumber  int    `json:"lap_number"`
	SessionID  string `json:"session_id"`

	EntrySpeed *float64 `json:"entry_speed"`
	MidSpeed   *float64 `json:"mid_speed"`
	ExitSpeed  *float64 `json:"exit_speed"`
	MinSpeed   *float64 `json:"min_speed"`
	MaxSpeed   *float64 `json:"max_speed"`
	AvgSpeed   *float64 `json:"avg_speed"`

	SegmentTime          float64  `json:"segment_time"`
	TimeDeltaToReference *float64 `json:"time_delta_to_reference"`

	BrakingDistance     *float64 `json:"braking_distance"`
	MaxBrakePressure    *float64 `json:"max_brake_pressure"`
	ThrottleApplication *float64 `json:"throttle_application"`
	SteeringSmoothness  *float64 `json:"steering_smoothness"`
}

// LapSegmentMetrics aggregates all segment metrics for a single lap of a
// session. LayoutVersion records the layout generation the metrics were
// computed against.
type LapSegmentMetrics struct {
	SessionID     string           `json:"session_id"`
	LapNumber     int              `json:"lap_number"`
	LayoutVersion int              `json:"layout_version"`
	TrackLength   float64          `json:"track_length"`
	TotalTime     *float64         `json:"total_time"`
	Segments      []SegmentMetrics `json:"segments"`
}

// ComparisonRequest asks for a per-segment comparison of two laps. A nil
// SegmentIDs compares every segment in the layout.
type ComparisonRequest struct {
	TargetLap    int      `json:"target_lap"`
	ReferenceLap int      `json:"reference_lap"`
	SegmentIDs   []string `json:"segment_ids,omitempty"`
}

// Comparison is one segment compared between two laps.
type Comparison struct {
	SegmentID    string `json:"segment_id"`
	TargetLap    int    `json:"target_lap"`
	ReferenceLap int    `json:"reference_lap"`

	TargetTime    float64 `json:"target_time"`
	ReferenceTime float64 `json:"reference_time"`
	TimeDelta     float64 `json:"time_delta"` // positive = target slower

	TargetMinSpeed    *float64 `json:"target_min_speed"`
	ReferenceMinSpeed *float64 `json:"reference_min_speed"`
	MinSpeedDelta     *float64 `json:"min_speed_delta"`

	KeyDifferences []string `json:"key_differences"`
}

// ComparisonResponse is the assembled result of comparing two laps, with the
// biggest time-loss and time-gain segments surfaced.
type ComparisonResponse struct {
	SessionID       string       `json:"session_id"`
	TargetLap       int          `json:"target_lap"`
	ReferenceLap    int          `json:"reference_lap"`
	TrackLength     float64      `json:"track_length"`
	TotalTimeDelta  float64      `json:"total_time_delta"`
	Comparisons     []Comparison `json:"comparisons"`
	LargestLosses   []string     `json:"largest_time_loss_segments"`
	LargestGains    []string     `json:"largest_time_gain_segments"`
}

func ptr(v float64) *float64 { return &v }
