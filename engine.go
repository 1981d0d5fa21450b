// Package tscale implements a streaming, pitch-preserving Waveform
// Similarity Overlap-Add (WSOLA) time-scale modification engine. It
// changes the playback speed of a planar float32 PCM stream by an
// arbitrary, time-varying rational factor without altering pitch; it does
// not resample, decode, or otherwise touch the host media pipeline around
// it (those are external collaborators, per the engine's own scope).
package tscale

import (
	"log/slog"
	"math"

	"github.com/google/uuid"

	"tscale/internal/enginemetrics"
	"tscale/internal/planar"
	"tscale/internal/wsolacore"
)

// MaxChannels is the largest channel count an Engine will accept.
const MaxChannels = 8

// Engine is a single-threaded, synchronous time-scale processor. No method
// is safe to call concurrently with another on the same instance; distinct
// instances share no state and may be driven from separate goroutines
// without synchronization.
type Engine struct {
	id     uuid.UUID
	logger *slog.Logger
	stats  *enginemetrics.Set

	channels   int
	sampleRate int
	opts       Options

	core   *wsolacore.Core
	input  *planar.Buffer
	output *planar.Buffer

	outputTime        float64
	searchBlockIndex  int
	targetBlockIndex  int
	numCompleteFrames int
	outputStarted     bool

	inputBufferFinalFrames  int
	inputBufferAddedSilence int
	final                   bool

	mutedPartialFrame float64

	iterationsTotal     int
	framesProducedTotal int
	starvedTotal        int
	mutedFramesTotal    int
	evictionsTotal      int
	lastLatency         float64

	closed bool
}

// Option is a functional option for New, a nil-guard-then-default style
// rather than a second config struct.
type Option func(*Engine)

// WithLogger attaches a structured logger. A nil Engine logger falls back
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a Prometheus metrics set. Passing none leaves
// instrumentation disabled; every metrics touchpoint in this file is
// nil-checked.
func WithMetrics(stats *enginemetrics.Set) Option {
	return func(e *Engine) { e.stats = stats }
}

// New creates an Engine for a fixed (channels, sampleRate) pair and the
// given Options. It fails when channels is outside [1, MaxChannels] or
// sampleRate <= 0; Go has no allocation-failure return path, so a
// construction-time OOM case is not modeled here (make/append panic on
// OOM, the same as any other Go allocation).
func New(opts Options, channels, sampleRate int, optFns ...Option) (*Engine, error) {
	if channels < 1 || channels > MaxChannels {
		return nil, ErrInvalidChannels
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	olaWindowSize := roundEven(opts.OLAWindowSizeMs * float64(sampleRate) / 1000)
	olaHopSize := olaWindowSize / 2
	numCandidateBlocks := roundToInt(opts.WSOLASearchIntervalMs * float64(sampleRate) / 1000)
	searchBlockCenterOffset := numCandidateBlocks/2 + (olaWindowSize/2 - 1)
	searchBlockSize := numCandidateBlocks + olaWindowSize - 1

	e := &Engine{
		id:         uuid.New(),
		logger:     slog.Default(),
		channels:   channels,
		sampleRate: sampleRate,
		opts:       opts,
		core:       wsolacore.New(channels, olaWindowSize, olaHopSize, numCandidateBlocks, searchBlockCenterOffset, searchBlockSize),
		input:      planar.New(channels),
		output:     planar.New(channels),
	}
	for _, fn := range optFns {
		fn(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("engine_id", e.id.String())
	e.logger.Debug("tscale engine created",
		"channels", channels,
		"sample_rate", sampleRate,
		"ola_window_size", olaWindowSize,
		"ola_hop_size", olaHopSize,
		"num_candidate_blocks", numCandidateBlocks,
		"search_block_size", searchBlockSize,
	)
	return e, nil
}

// roundEven rounds v to the nearest integer and forces the result even,
// since the OLA window must split evenly into two half-windows.
func roundEven(v float64) int {
	n := roundToInt(v)
	if n%2 != 0 {
		n++
	}
	return n
}

func roundToInt(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Close releases the engine. It is idempotent, including on a nil
// receiver.
func (e *Engine) Close() error {
	if e == nil || e.closed {
		return nil
	}
	e.closed = true
	return nil
}

// Reset clears all buffers and indices, returning the engine to the state
// of a freshly constructed instance with the same Options.
func (e *Engine) Reset() {
	e.input.Reset()
	e.output.Reset()
	e.outputTime = 0
	e.searchBlockIndex = 0
	e.targetBlockIndex = 0
	e.numCompleteFrames = 0
	e.outputStarted = false
	e.inputBufferFinalFrames = 0
	e.inputBufferAddedSilence = 0
	e.final = false
	e.mutedPartialFrame = 0
	e.iterationsTotal = 0
	e.framesProducedTotal = 0
	e.starvedTotal = 0
	e.mutedFramesTotal = 0
	e.evictionsTotal = 0
	e.lastLatency = 0
}

// muted reports whether rate falls outside the configured playback band.
func (e *Engine) muted(rate float64) bool {
	return rate < e.opts.MinPlaybackRate || rate > e.opts.MaxPlaybackRate
}

// backpressureThreshold returns the input-buffer length, in frames, above
// which FillInputBuffer refuses more input. It scales with rate because a
// faster playback rate consumes buffered input faster per unit of output
// time, so the same wall-clock headroom needs a larger frame count.
func (e *Engine) backpressureThreshold(rate float64) int {
	scale := rate
	if scale < 1 {
		scale = 1
	}
	return int(float64(4*e.core.SearchBlockSize) * scale)
}

// FillInputBuffer appends frame_count frames of planar input and returns
// how many were accepted. It returns 0 outright (rather than partially
// accepting) once the input buffer already holds enough to sustain several
// hops.
func (e *Engine) FillInputBuffer(planes [][]float32, frameCount int, rate float64) int {
	if e == nil || e.closed || frameCount <= 0 {
		return 0
	}
	if e.input.Frames() >= e.backpressureThreshold(rate) {
		return 0
	}
	return e.input.Append(planes, frameCount)
}

// SetFinal marks the stream as finite, sizing the trailing silence needed
// to flush the remaining content: enough to cover one more OLA window plus
// one full search block.
func (e *Engine) SetFinal() {
	if e.final {
		return
	}
	e.final = true
	e.inputBufferFinalFrames = e.core.OLAWindowSize + e.core.SearchBlockSize
	e.inputBufferAddedSilence = 0
}

// remainingFinalSilence is how much of the EOS padding budget has not yet
// been consumed.
func (e *Engine) remainingFinalSilence() int {
	r := e.inputBufferFinalFrames - e.inputBufferAddedSilence
	if r < 0 {
		return 0
	}
	return r
}

// canIterate reports whether the search block required by the next
// iteration is fully covered by real input, or by real input plus
// remaining EOS padding.
func (e *Engine) canIterate() bool {
	sbi := int(math.Floor(e.outputTime)) - e.core.SearchBlockCenterOffset
	end := sbi + e.core.SearchBlockSize
	have := e.input.Frames()
	if end <= have {
		return true
	}
	return e.remainingFinalSilence() >= end-have
}

// FramesAvailable reports whether an iteration could complete, or the
// muted band applies, without more input.
func (e *Engine) FramesAvailable(rate float64) bool {
	if e == nil || e.closed {
		return false
	}
	if e.muted(rate) {
		return true
	}
	if e.numCompleteFrames > 0 {
		return true
	}
	return e.canIterate()
}

// GetLatency returns the frames of input buffered but not yet emitted, at
// the current bookkeeping state. The formula does not depend on rate; the
// parameter exists to match the documented public signature.
func (e *Engine) GetLatency(rate float64) float64 {
	_ = rate
	return float64(e.input.Frames()) - (e.outputTime - float64(e.targetBlockIndex)) + float64(e.numCompleteFrames)
}

// runIteration produces one hop of output, advancing output_time and the
// input/target/search indices, and evicting input once the safety margin
// is exceeded.
func (e *Engine) runIteration(rate float64) {
	c := e.core

	sbi := int(math.Floor(e.outputTime)) - c.SearchBlockCenterOffset
	end := sbi + c.SearchBlockSize
	if have := e.input.Frames(); end > have {
		consumed := end - have
		if r := e.remainingFinalSilence(); consumed > r {
			consumed = r
		}
		e.inputBufferAddedSilence += consumed
	}
	c.FillSearch(e.input, sbi)

	var tbi int
	if !e.outputStarted {
		tbi = int(math.Floor(e.outputTime)) - c.OLAWindowSize/2
		c.FillTargetFromInput(e.input, tbi)
	} else {
		tbi = sbi + c.SearchBlockCenterOffset
		c.FillTargetFromOutputTail(e.output, e.numCompleteFrames)
	}

	kStar := c.Search(e.outputTime, sbi)
	c.ExtractOptimal(kStar)
	c.Blend()
	c.OverlapAdd(e.output, e.numCompleteFrames)

	e.numCompleteFrames += c.OLAHopSize
	e.outputStarted = true
	e.outputTime += float64(c.OLAHopSize) * rate
	e.searchBlockIndex = int(math.Floor(e.outputTime)) - c.SearchBlockCenterOffset
	e.targetBlockIndex = tbi

	e.iterationsTotal++
	if e.stats != nil {
		e.stats.IterationsTotal.Inc()
	}

	nextSbi := int(math.Floor(e.outputTime)) - c.SearchBlockCenterOffset
	margin := e.input.Frames() / 2
	if nextSbi > margin {
		k := nextSbi
		if avail := e.input.Frames(); k > avail {
			k = avail
		}
		if k > 0 {
			e.input.Evict(k)
			e.outputTime -= float64(k)
			e.searchBlockIndex -= k
			e.targetBlockIndex -= k
			e.evictionsTotal++
			if e.stats != nil {
				e.stats.EvictionsTotal.Inc()
			}
		}
	}
}

// FillBuffer drains up to len(dest[0]) produced frames into dest, running
// WSOLA iterations as needed, and returns how many frames were actually
// produced. It returns fewer than requested, possibly zero, when the
// engine is starved; that is not an error condition.
func (e *Engine) FillBuffer(dest [][]float32, rate float64) int {
	if e == nil || e.closed || len(dest) == 0 {
		return 0
	}
	destFrames := len(dest[0])
	if destFrames <= 0 {
		return 0
	}

	if e.muted(rate) {
		for c := range dest {
			for i := range dest[c] {
				dest[c][i] = 0
			}
		}
		e.mutedPartialFrame += float64(destFrames) * rate
		discard := int(e.mutedPartialFrame)
		e.mutedPartialFrame -= float64(discard)
		if discard > 0 {
			if discard > e.input.Frames() {
				discard = e.input.Frames()
			}
			e.input.Evict(discard)
		}
		e.mutedFramesTotal += destFrames
		e.lastLatency = e.GetLatency(rate)
		if e.stats != nil {
			e.stats.MutedFramesTotal.Add(float64(destFrames))
			e.stats.Latency.Set(e.lastLatency)
		}
		return destFrames
	}

	produced := 0
	for produced < destFrames {
		if e.numCompleteFrames == 0 {
			if !e.canIterate() {
				break
			}
			e.runIteration(rate)
		}
		n := destFrames - produced
		if n > e.numCompleteFrames {
			n = e.numCompleteFrames
		}
		e.output.DrainInto(dest, produced, n)
		e.numCompleteFrames -= n
		produced += n
	}

	e.framesProducedTotal += produced
	if produced < destFrames {
		e.starvedTotal++
	}
	e.lastLatency = e.GetLatency(rate)
	if e.stats != nil {
		e.stats.FramesProducedTotal.Add(float64(produced))
		if produced < destFrames {
			e.stats.StarvedTotal.Inc()
		}
		e.stats.Latency.Set(e.lastLatency)
	}
	return produced
}
