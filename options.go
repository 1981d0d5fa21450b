package tscale

// Options configures a time-scale Engine. All tunables live here; there is
// no hidden global state.
type Options struct {
	// MinPlaybackRate and MaxPlaybackRate bound the rates the engine will
	// actually time-stretch. Outside this band the engine enters the
	// muted band and emits silence instead.
	MinPlaybackRate float64
	MaxPlaybackRate float64

	// OLAWindowSizeMs is the Hann analysis/synthesis window length.
	OLAWindowSizeMs float64
	// WSOLASearchIntervalMs sizes the similarity search neighborhood.
	WSOLASearchIntervalMs float64
}

// DefaultOptions returns the documented factory defaults. It is a pure
// function: no package-level state is read or mutated.
func DefaultOptions() Options {
	return Options{
		MinPlaybackRate:       0.25,
		MaxPlaybackRate:       4.0,
		OLAWindowSizeMs:       20.0,
		WSOLASearchIntervalMs: 30.0,
	}
}
