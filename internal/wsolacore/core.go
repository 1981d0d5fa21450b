package wsolacore

import "tscale/internal/planar"

// Core owns the window tables and the per-hop scratch blocks described in
// the target, search and optimal blocks, plus the windows used to
// score and blend them. It has no notion of output time, input eviction or
// muting; the engine drives it one hop at a time.
type Core struct {
	Channels int

	OLAWindowSize           int
	OLAHopSize              int
	NumCandidateBlocks      int
	SearchBlockCenterOffset int
	SearchBlockSize         int

	OLAWindow        []float32
	TransitionWindow []float32

	TargetBlock  [][]float32 // channels x OLAWindowSize
	SearchBlock  [][]float32 // channels x SearchBlockSize
	OptimalBlock [][]float32 // channels x OLAWindowSize

	// EnergyCandidateBlocks is scratch for the per-channel, per-offset
	// energy values computed during the incremental similarity scan
	// scan.
	EnergyCandidateBlocks [][]float32 // channels x NumCandidateBlocks
}

// New builds a Core for the given channel count and derived sizes. The
// caller (the engine) is responsible for computing
// olaWindowSize/hopSize/numCandidateBlocks/searchBlockCenterOffset/
// searchBlockSize from the configured Options.
func New(channels, olaWindowSize, olaHopSize, numCandidateBlocks, searchBlockCenterOffset, searchBlockSize int) *Core {
	c := &Core{
		Channels:                channels,
		OLAWindowSize:           olaWindowSize,
		OLAHopSize:              olaHopSize,
		NumCandidateBlocks:      numCandidateBlocks,
		SearchBlockCenterOffset: searchBlockCenterOffset,
		SearchBlockSize:         searchBlockSize,
		OLAWindow:               hannWindow(olaWindowSize),
		TransitionWindow:        transitionWindow(olaWindowSize),
	}
	c.TargetBlock = allocPlanes(channels, olaWindowSize)
	c.SearchBlock = allocPlanes(channels, searchBlockSize)
	c.OptimalBlock = allocPlanes(channels, olaWindowSize)
	c.EnergyCandidateBlocks = allocPlanes(channels, max(1, numCandidateBlocks))
	return c
}

func allocPlanes(channels, length int) [][]float32 {
	p := make([][]float32, channels)
	for c := range p {
		p[c] = make([]float32, length)
	}
	return p
}

// FillSearch extracts the search block from the input buffer at
// searchBlockIndex.
func (c *Core) FillSearch(input *planar.Buffer, searchBlockIndex int) {
	input.PeekZero(c.SearchBlock, searchBlockIndex, c.SearchBlockSize)
}

// FillTargetFromInput extracts the target block directly from the input
// buffer, for the first iteration before any output exists yet.
func (c *Core) FillTargetFromInput(input *planar.Buffer, targetBlockIndex int) {
	input.PeekZero(c.TargetBlock, targetBlockIndex, c.OLAWindowSize)
}

// FillTargetFromOutputTail extracts the target block as the natural
// continuation of prior output, on every iteration after the first:
// the last OLAWindowSize frames of the output buffer ending at
// outPos+OLAHopSize, i.e. starting at outPos-OLAHopSize. PeekZero
// zero-fills the part of that range before the buffer start whenever
// outPos < OLAHopSize; the engine always calls this with outPos == 0, after
// every complete frame has been drained, so the first half is zeros.
func (c *Core) FillTargetFromOutputTail(output *planar.Buffer, outPos int) {
	start := outPos + c.OLAHopSize - c.OLAWindowSize
	output.PeekZero(c.TargetBlock, start, c.OLAWindowSize)
}

// ExtractOptimal copies the chosen offset window out of the search block.
func (c *Core) ExtractOptimal(offset int) {
	for ch := 0; ch < c.Channels; ch++ {
		copy(c.OptimalBlock[ch], c.SearchBlock[ch][offset:offset+c.OLAWindowSize])
	}
}

// Blend cross-fades TargetBlock into OptimalBlock in place using
// TransitionWindow.
func (c *Core) Blend() {
	n := c.OLAWindowSize
	t := c.TransitionWindow
	for ch := 0; ch < c.Channels; ch++ {
		target := c.TargetBlock[ch]
		optimal := c.OptimalBlock[ch]
		for i := 0; i < n; i++ {
			optimal[i] = t[i]*target[i] + t[i+n]*optimal[i]
		}
	}
}

// OverlapAdd accumulates the blended OptimalBlock into the output buffer at
// pos, windowed by OLAWindow.
func (c *Core) OverlapAdd(output *planar.Buffer, pos int) {
	output.AddWindowed(pos, c.OptimalBlock, c.OLAWindow)
}
