// Package wsolacore implements the numeric heart of the time-scale engine:
// the OLA/transition window tables, the energy-normalized similarity
// search, and the per-hop block bookkeeping (target/search/optimal blocks,
// blending, overlap-add). It is deliberately unaware of playback rate,
// muting, or backpressure policy — those live in the engine package that
// wraps this core.
package wsolacore

import (
	"gonum.org/v1/gonum/dsp/window"
)

// hannWindow returns the length-n Hann window used for overlap-add,
// computed once at Core construction and never mutated afterward. It is
// generated in float64 via gonum's dsp/window (the rest of this package's
// hot paths stay float32; DESIGN.md explains why the per-sample inner
// loop of Core.Search is not built on gonum/floats) and frozen into float32.
//
// gonum's window.Hann produces the symmetric (n-1 denominator) window used
// for analysis/FFT work; at 50% overlap that form's shifted sum is only
// approximately 1 (the classic WOLA ripple). Exact overlap-add
// reconstruction demands an exact sum, which only the periodic (n denominator)
// form gives. We get that exactly from the same gonum call by computing
// the symmetric window one sample longer and dropping the last sample —
// the standard symmetric-to-periodic trick (what e.g. scipy's
// fftbins=True does), so the table is still gonum-derived.
func hannWindow(n int) []float32 {
	if n <= 1 {
		w := make([]float32, n)
		for i := range w {
			w[i] = 1
		}
		return w
	}
	seq := make([]float64, n+1)
	for i := range seq {
		seq[i] = 1
	}
	seq = window.Hann(seq)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(seq[i])
	}
	return out
}

// transitionWindow returns the 2N-length linear cross-fade table used to
// blend target_block into optimal_block: rising 0->1 over the first N
// samples, falling 1->0 over the second N.
func transitionWindow(n int) []float32 {
	t := make([]float32, 2*n)
	if n <= 1 {
		for i := range t {
			t[i] = 1
		}
		return t
	}
	denom := float32(n - 1)
	for i := 0; i < n; i++ {
		t[i] = float32(i) / denom
	}
	for i := n; i < 2*n; i++ {
		t[i] = 2 - float32(i)/denom
		if t[i] < 0 {
			t[i] = 0
		}
		if t[i] > 1 {
			t[i] = 1
		}
	}
	return t
}
