// Package signals retrieves per-lap telemetry signal slices from session
// recordings, with optional downsampling and lap-to-lap comparison.
package signals

// Channel identifies one of the telemetry channels the analysis pipeline
// understands. The string value is the channel name as recorded.
type Channel string

const (
	ChannelSteering Channel = "Steering Pos"
	ChannelBrake    Channel = "Brake Pos"
	ChannelThrottle Channel = "Throttle Pos"
	ChannelSpeed    Channel = "Ground Speed"
	ChannelLapDist  Channel = "Lap Dist"
)

// AnalysisChannels are the channels fetched for layout detection and segment
// metrics computation.
var AnalysisChannels = []Channel{
	ChannelSteering,
	ChannelBrake,
	ChannelThrottle,
	ChannelSpeed,
	ChannelLapDist,
}
