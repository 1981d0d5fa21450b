// Package planar implements a growable, multi-channel buffer of planar
// float32 frames (one contiguous slice per channel). It backs both the
// WSOLA engine's pending-input queue and its overlap-add output queue: both
// are, at bottom, a planar frame buffer that grows at the tail and is
// evicted from the head.
package planar

// Buffer is an owned, per-channel planar frame buffer. A frame is one
// sample per channel at one time index; Buffer's channels are independent
// slices of equal length, index 0 of every channel being the same frame.
//
// Eviction is implemented by copy-and-truncate (the "memmove" approach)
// rather than a true ring, so backing arrays are reused across evictions
// instead of leaking with every append.
type Buffer struct {
	channels int
	planes   [][]float32
}

// New returns an empty Buffer for the given channel count.
func New(channels int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	planes := make([][]float32, channels)
	for c := range planes {
		planes[c] = make([]float32, 0, 4096)
	}
	return &Buffer{channels: channels, planes: planes}
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return b.channels }

// Frames returns the current logical length in frames.
func (b *Buffer) Frames() int {
	if len(b.planes) == 0 {
		return 0
	}
	return len(b.planes[0])
}

// Planes returns the live per-channel slices. The returned slices are only
// valid until the next mutating call (Append, Evict, Grow, AddWindowed,
// Reset) may reallocate or shift them.
func (b *Buffer) Planes() [][]float32 { return b.planes }

// Reset truncates the buffer to zero frames without releasing capacity.
func (b *Buffer) Reset() {
	for c := range b.planes {
		b.planes[c] = b.planes[c][:0]
	}
}

// Append copies n frames from src onto the tail of the buffer, growing
// backing storage as needed (amortized O(1), like append's own policy).
// src[c] must have at least n elements for every channel c < Channels().
func (b *Buffer) Append(src [][]float32, n int) int {
	if n <= 0 {
		return 0
	}
	for c := 0; c < b.channels; c++ {
		if c < len(src) {
			b.planes[c] = append(b.planes[c], src[c][:n]...)
		} else {
			b.planes[c] = append(b.planes[c], make([]float32, n)...)
		}
	}
	return n
}

// Grow extends the buffer with zero frames until Frames() >= toLen. It is a
// no-op if the buffer is already at least that long.
func (b *Buffer) Grow(toLen int) {
	cur := b.Frames()
	if toLen <= cur {
		return
	}
	pad := toLen - cur
	for c := 0; c < b.channels; c++ {
		b.planes[c] = append(b.planes[c], make([]float32, pad)...)
	}
}

// Evict removes k frames from the head, shifting the remainder down. k <= 0
// is a no-op; k beyond Frames() is clamped.
func (b *Buffer) Evict(k int) {
	if k <= 0 {
		return
	}
	n := b.Frames()
	if k > n {
		k = n
	}
	if k == 0 {
		return
	}
	for c := 0; c < b.channels; c++ {
		plane := b.planes[c]
		copy(plane, plane[k:])
		b.planes[c] = plane[:n-k]
	}
}

// DrainInto copies the first n frames into dst (each dst[c] must have room
// for n samples starting at dstOffset) and evicts them from the buffer in
// the same call.
func (b *Buffer) DrainInto(dst [][]float32, dstOffset, n int) {
	if n <= 0 {
		return
	}
	for c := 0; c < b.channels && c < len(dst); c++ {
		copy(dst[c][dstOffset:dstOffset+n], b.planes[c][:n])
	}
	b.Evict(n)
}

// PeekZero extracts length frames starting at (possibly negative or
// out-of-range) start into dst, zero-filling positions outside
// [0, Frames()). dst[c] must have at least length elements.
func (b *Buffer) PeekZero(dst [][]float32, start, length int) {
	n := b.Frames()
	for c := 0; c < b.channels; c++ {
		out := dst[c]
		plane := b.planes[c]
		for i := 0; i < length; i++ {
			idx := start + i
			if idx < 0 || idx >= n {
				out[i] = 0
				continue
			}
			out[i] = plane[idx]
		}
	}
}

// PeekInterp is the fractional-index counterpart of PeekZero: each output
// sample linearly interpolates between the floor and ceil source frames,
// which are themselves zero outside [0, Frames()).
func (b *Buffer) PeekInterp(dst [][]float32, startFrac float64, length int) {
	n := b.Frames()
	sampleAt := func(plane []float32, idx int) float32 {
		if idx < 0 || idx >= n {
			return 0
		}
		return plane[idx]
	}
	for c := 0; c < b.channels; c++ {
		out := dst[c]
		plane := b.planes[c]
		for i := 0; i < length; i++ {
			pos := startFrac + float64(i)
			lo := int(pos)
			if pos < 0 {
				lo = lo - 1
			}
			frac := float32(pos - float64(lo))
			a := sampleAt(plane, lo)
			bb := sampleAt(plane, lo+1)
			out[i] = a + frac*(bb-a)
		}
	}
}

// AddWindowed overlap-adds block (channels x len(window)) into the buffer
// starting at offset, growing the buffer first if offset+len(window)
// exceeds the current length. Every new frame created by growth starts at
// zero, so the add is a plain += in the already-covered region and a
// first-write in the newly grown tail.
func (b *Buffer) AddWindowed(offset int, block [][]float32, window []float32) {
	n := len(window)
	b.Grow(offset + n)
	for c := 0; c < b.channels && c < len(block); c++ {
		plane := b.planes[c]
		src := block[c]
		for i := 0; i < n; i++ {
			plane[offset+i] += window[i] * src[i]
		}
	}
}
