package tscale

// Snapshot is a point-in-time copy of the engine's bookkeeping counters,
// for hosts that don't run a Prometheus registry. FramesProduced,
// Iterations, Starved, MutedFrames and Evictions mirror the same running
// totals exposed through internal/enginemetrics when a metrics Set is
// attached via WithMetrics; Latency mirrors the most recently reported
// GetLatency value.
type Snapshot struct {
	Channels          int
	SampleRate        int
	InputFrames       int
	OutputTime        float64
	NumCompleteFrames int
	OutputStarted     bool
	Final             bool
	MutedPartialFrame float64

	FramesProduced int
	Iterations     int
	Starved        int
	MutedFrames    int
	Evictions      int
	Latency        float64
}

// Stats returns a Snapshot of the engine's current state.
func (e *Engine) Stats() Snapshot {
	return Snapshot{
		Channels:          e.channels,
		SampleRate:        e.sampleRate,
		InputFrames:       e.input.Frames(),
		OutputTime:        e.outputTime,
		NumCompleteFrames: e.numCompleteFrames,
		OutputStarted:     e.outputStarted,
		Final:             e.final,
		MutedPartialFrame: e.mutedPartialFrame,

		FramesProduced: e.framesProducedTotal,
		Iterations:     e.iterationsTotal,
		Starved:        e.starvedTotal,
		MutedFrames:    e.mutedFramesTotal,
		Evictions:      e.evictionsTotal,
		Latency:        e.lastLatency,
	}
}
