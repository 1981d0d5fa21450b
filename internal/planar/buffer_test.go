package planar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mono(vals ...float32) [][]float32 {
	return [][]float32{vals}
}

func TestAppendAndEvict(t *testing.T) {
	b := New(1)
	n := b.Append(mono(1, 2, 3, 4), 4)
	require.Equal(t, 4, n)
	require.Equal(t, 4, b.Frames())

	b.Evict(2)
	require.Equal(t, 2, b.Frames())
	require.Equal(t, []float32{3, 4}, b.Planes()[0])

	b.Evict(100) // clamps, no panic
	require.Equal(t, 0, b.Frames())
}

func TestEvictNoopOnNonPositive(t *testing.T) {
	b := New(1)
	b.Append(mono(1, 2, 3), 3)
	b.Evict(0)
	require.Equal(t, 3, b.Frames())
	b.Evict(-5)
	require.Equal(t, 3, b.Frames())
}

func TestPeekZeroPadsOutOfRange(t *testing.T) {
	b := New(1)
	b.Append(mono(10, 20, 30), 3)

	dst := mono(0, 0, 0, 0, 0)
	b.PeekZero(dst, -1, 5)
	require.Equal(t, []float32{0, 10, 20, 30, 0}, dst[0])
}

func TestPeekInterpLinear(t *testing.T) {
	b := New(1)
	b.Append(mono(0, 10, 20), 3)

	dst := mono(0, 0, 0)
	b.PeekInterp(dst, 0.5, 3)
	require.InDeltaSlice(t, []float64{5, 15, 10}, toFloat64(dst[0]), 1e-6)
}

func toFloat64(s []float32) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

func TestAddWindowedGrowsAndAccumulates(t *testing.T) {
	b := New(1)
	window := []float32{1, 1}
	b.AddWindowed(0, mono(2, 3), window)
	require.Equal(t, []float32{2, 3}, b.Planes()[0])

	b.AddWindowed(1, mono(10, 10), window)
	require.Equal(t, []float32{2, 13, 10}, b.Planes()[0])
}

func TestDrainInto(t *testing.T) {
	b := New(2)
	b.Append([][]float32{{1, 2, 3}, {4, 5, 6}}, 3)
	dst := [][]float32{make([]float32, 2), make([]float32, 2)}
	b.DrainInto(dst, 0, 2)
	require.Equal(t, []float32{1, 2}, dst[0])
	require.Equal(t, []float32{4, 5}, dst[1])
	require.Equal(t, 1, b.Frames())
}

func TestGrowZeroFills(t *testing.T) {
	b := New(1)
	b.Append(mono(1, 2), 2)
	b.Grow(5)
	require.Equal(t, []float32{1, 2, 0, 0, 0}, b.Planes()[0])
	b.Grow(1) // no-op, already longer
	require.Equal(t, 5, b.Frames())
}

func TestReset(t *testing.T) {
	b := New(1)
	b.Append(mono(1, 2, 3), 3)
	b.Reset()
	require.Equal(t, 0, b.Frames())
}
