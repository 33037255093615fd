package signals

// Metadata describes a telemetry channel available in a session.
type Metadata struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
	Unit      string `json:"unit,omitempty"`
}

// Slice is a window of one channel's samples covering a single lap.
type Slice struct {
	Channel   string `json:"channel"`
	LapNumber int    `json:"lap_number"`
	SessionID string `json:"session_id"`

	Timestamps     []float64 `json:"timestamps"`      // session time, seconds
	NormalizedTime []float64 `json:"normalized_time"` // 0 = lap start
	Values         []float64 `json:"values"`

	Distance []float64 `json:"distance,omitempty"` // meters, when requested

	Unit         string `json:"unit,omitempty"`
	SamplingRate int    `json:"sampling_rate"`
}

// List is the response shape for listing available signals.
type List struct {
	SessionID string     `json:"session_id"`
	Signals   []Metadata `json:"signals"`
	Total     int        `json:"total"`
}

// LapComparisonRequest asks for the same channels across two laps.
type LapComparisonRequest struct {
	TargetLap     int      `json:"target_lap"`
	ReferenceLap  int      `json:"reference_lap"`
	Channels      []string `json:"channels"`
	NormalizeTime bool     `json:"normalize_time"`
	UseDistance   bool     `json:"use_distance"`
	MaxPoints     int      `json:"max_points,omitempty"`
}

// LapComparison carries one channel's data for both laps.
type LapComparison struct {
	Channel string `json:"channel"`
	Unit    string `json:"unit,omitempty"`

	TargetLap        int       `json:"target_lap"`
	TargetTimestamps []float64 `json:"target_timestamps"`
	TargetValues     []float64 `json:"target_values"`
	TargetDistance   []float64 `json:"target_distance,omitempty"`

	ReferenceLap        int       `json:"reference_lap"`
	ReferenceTimestamps []float64 `json:"reference_timestamps"`
	ReferenceValues     []float64 `json:"reference_values"`
	ReferenceDistance   []float64 `json:"reference_distance,omitempty"`

	NormalizedX []float64 `json:"normalized_x"` // time or distance axis
}

// ComparisonResponse is the response shape for lap signal comparison.
type ComparisonResponse struct {
	SessionID    string          `json:"session_id"`
	TargetLap    int             `json:"target_lap"`
	ReferenceLap int             `json:"reference_lap"`
	Comparisons  []LapComparison `json:"comparisons"`
}
