package tscale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func genSine(n int, freq, sampleRate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func TestNewRejectsInvalidChannels(t *testing.T) {
	opts := DefaultOptions()
	_, err := New(opts, 0, 48000)
	require.ErrorIs(t, err, ErrInvalidChannels)

	_, err = New(opts, MaxChannels+1, 48000)
	require.ErrorIs(t, err, ErrInvalidChannels)
}

func TestNewRejectsInvalidSampleRate(t *testing.T) {
	opts := DefaultOptions()
	_, err := New(opts, 1, 0)
	require.ErrorIs(t, err, ErrInvalidSampleRate)

	_, err = New(opts, 1, -1)
	require.ErrorIs(t, err, ErrInvalidSampleRate)
}

func TestNewDerivesEvenWindowAndHalfHop(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	require.Equal(t, 0, e.core.OLAWindowSize%2)
	require.Equal(t, e.core.OLAWindowSize/2, e.core.OLAHopSize)
}

func TestCloseIsIdempotentIncludingNil(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	var nilEngine *Engine
	require.NoError(t, nilEngine.Close())
}

func TestClosedEngineRejectsIO(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	n := e.FillInputBuffer([][]float32{genSine(100, 440, 48000)}, 100, 1.0)
	require.Equal(t, 0, n)
	require.False(t, e.FramesAvailable(1.0))

	dest := [][]float32{make([]float32, 64)}
	require.Equal(t, 0, e.FillBuffer(dest, 1.0))
}

func TestResetClearsStateToFreshEquivalent(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)

	in := [][]float32{genSine(8000, 440, 48000)}
	e.FillInputBuffer(in, 8000, 1.0)
	dest := [][]float32{make([]float32, 512)}
	e.FillBuffer(dest, 1.0)

	e.Reset()
	s := e.Stats()
	require.Equal(t, 0, s.InputFrames)
	require.Equal(t, 0, s.NumCompleteFrames)
	require.False(t, s.OutputStarted)
	require.False(t, s.Final)
	require.Zero(t, s.OutputTime)
	require.Zero(t, s.MutedPartialFrame)

	// Reset twice in a row must be stable, not just once.
	e.Reset()
	require.Equal(t, 0, e.Stats().InputFrames)
}

func TestFillInputBufferAppliesBackpressure(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)

	threshold := e.backpressureThreshold(1.0)
	big := genSine(threshold+1000, 440, 48000)

	n := e.FillInputBuffer([][]float32{big}, threshold+1000, 1.0)
	require.Greater(t, n, 0)
	require.LessOrEqual(t, e.Stats().InputFrames, threshold+1000)

	// A second call, now that the buffer is already at/over threshold,
	// must refuse outright rather than partially accept.
	more := genSine(10, 440, 48000)
	n2 := e.FillInputBuffer([][]float32{more}, 10, 1.0)
	require.Equal(t, 0, n2)
}

func TestFramesAvailableFalseWhenStarvedOnFreshEngine(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	require.False(t, e.FramesAvailable(1.0))
}

func TestFramesAvailableTrueInMutedBandRegardlessOfInput(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	require.True(t, e.FramesAvailable(e.opts.MaxPlaybackRate*2))
	require.True(t, e.FramesAvailable(e.opts.MinPlaybackRate/2))
}

func TestMutedBandProducesExactSilence(t *testing.T) {
	e, err := New(DefaultOptions(), 2, 48000)
	require.NoError(t, err)

	in := [][]float32{genSine(4000, 440, 48000), genSine(4000, 440, 48000)}
	e.FillInputBuffer(in, 4000, 1.0)

	dest := [][]float32{make([]float32, 256), make([]float32, 256)}
	rate := e.opts.MaxPlaybackRate * 10
	n := e.FillBuffer(dest, rate)
	require.Equal(t, 256, n)
	for ch := range dest {
		for _, v := range dest[ch] {
			require.Equal(t, float32(0), v)
		}
	}
}

func TestMutedBandNeverStarves(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	// No input at all: muted playback must still fill the destination.
	dest := [][]float32{make([]float32, 128)}
	n := e.FillBuffer(dest, e.opts.MinPlaybackRate/4)
	require.Equal(t, 128, n)
}

func TestFillBufferNeverExceedsRequested(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	in := [][]float32{genSine(20000, 440, 48000)}
	e.FillInputBuffer(in, 20000, 1.0)

	dest := [][]float32{make([]float32, 333)}
	n := e.FillBuffer(dest, 1.0)
	require.LessOrEqual(t, n, 333)
	require.GreaterOrEqual(t, n, 0)
}

func TestSetFinalFlushesWithoutFreshInput(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	e.SetFinal()
	require.True(t, e.Stats().Final)

	dest := [][]float32{make([]float32, 64)}
	total := 0
	for i := 0; i < 500; i++ {
		n := e.FillBuffer(dest, 1.0)
		total += n
		if n == 0 {
			break
		}
	}
	require.Greater(t, total, 0)
}

func TestSetFinalIsIdempotent(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	e.SetFinal()
	budget := e.inputBufferFinalFrames
	e.SetFinal()
	require.Equal(t, budget, e.inputBufferFinalFrames)
}

func TestEvictionKeepsInputBufferBoundedAndTimeMonotonic(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)

	in := [][]float32{genSine(200000, 440, 48000)}
	e.FillInputBuffer(in, 200000, 1.0)

	dest := [][]float32{make([]float32, 1000)}
	prevOutputTime := e.outputTime
	evicted := 0
	for i := 0; i < 150; i++ {
		before := e.input.Frames()
		e.FillBuffer(dest, 1.0)
		evicted += before - e.input.Frames()
		require.Equal(t, e.core.OLAWindowSize, e.core.OLAHopSize*2)
		// Eviction lowers outputTime by the evicted frame count, so time is
		// checked as a position from the start of the stream.
		pos := e.outputTime + float64(evicted)
		require.GreaterOrEqual(t, pos, prevOutputTime)
		prevOutputTime = pos
	}
	// Eviction must release consumed frames from the head of the input
	// buffer even though 200000 frames were queued up front; it starts once
	// the next search block lies past half the buffered frames.
	require.Less(t, e.input.Frames(), 200000)
}

func TestGetLatencyOnFreshEngineEqualsBufferedFrames(t *testing.T) {
	e, err := New(DefaultOptions(), 1, 48000)
	require.NoError(t, err)
	in := [][]float32{genSine(500, 440, 48000)}
	e.FillInputBuffer(in, 500, 1.0)
	require.InDelta(t, 500, e.GetLatency(1.0), 1e-9)
}

func TestStatsReflectsConstructionParameters(t *testing.T) {
	e, err := New(DefaultOptions(), 2, 44100)
	require.NoError(t, err)
	s := e.Stats()
	require.Equal(t, 2, s.Channels)
	require.Equal(t, 44100, s.SampleRate)
}
