package tscale

import "errors"

// Sentinel errors. ErrInvalidChannels and ErrInvalidSampleRate are the
// construction errors returned by New; there is no partial instance exposed
// on either: New returns (nil, err). ErrClosed is not returned by any
// method: calls on a closed Engine return zero values instead.
var (
	ErrInvalidChannels   = errors.New("tscale: channels must be in [1, MaxChannels]")
	ErrInvalidSampleRate = errors.New("tscale: sample rate must be positive")
	ErrClosed            = errors.New("tscale: engine is closed")
)
