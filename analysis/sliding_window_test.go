package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSlidingWindowEmpty(t *testing.T) {
	w := NewSlidingWindowRatio(10)
	_, ok := w.Ratio()
	assert.False(t, ok)
	assert.Equal(t, 0, w.Count())
	assert.Equal(t, 0, w.PositiveCount())
}

func TestSlidingWindowSinglePositive(t *testing.T) {
	w := NewSlidingWindowRatio(10)
	w.Push(true)
	ratio, ok := w.Ratio()
	require.True(t, ok)
	assert.Equal(t, 1.0, ratio)
	assert.Equal(t, 1, w.Count())
	assert.Equal(t, 1, w.PositiveCount())
}

func TestSlidingWindowEviction(t *testing.T) {
	w := NewSlidingWindowRatio(4)
	w.Push(true)
	w.Push(false)
	w.Push(true)
	w.Push(false)
	ratio, _ := w.Ratio()
	assert.Equal(t, 0.5, ratio)

	w.Push(true) // evicts the first true: [false,true,false,true]
	assert.Equal(t, 4, w.Count())
	assert.Equal(t, 2, w.PositiveCount())

	w.Push(true) // evicts false: [true,false,true,true]
	assert.Equal(t, 3, w.PositiveCount())
	ratio, _ = w.Ratio()
	assert.Equal(t, 0.75, ratio)
}

func TestSlidingWindowAllEvictedToZero(t *testing.T) {
	w := NewSlidingWindowRatio(3)
	w.Push(true)
	w.Push(true)
	w.Push(true)
	ratio, _ := w.Ratio()
	assert.Equal(t, 1.0, ratio)

	w.Push(false)
	w.Push(false)
	w.Push(false)
	ratio, _ = w.Ratio()
	assert.Equal(t, 0.0, ratio)
	assert.Equal(t, 0, w.PositiveCount())
}

func TestSlidingWindowZeroSizePanics(t *testing.T) {
	assert.Panics(t, func() { NewSlidingWindowRatio(0) })
}

func TestSlidingWindowInvariantProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(1, 32).Draw(rt, "size")
		w := NewSlidingWindowRatio(size)
		pushes := rapid.SliceOfN(rapid.Bool(), 0, 200).Draw(rt, "pushes")

		for _, v := range pushes {
			w.Push(v)
			require.True(rt, w.PositiveCount() >= 0)
			require.True(rt, w.PositiveCount() <= w.Count())
			require.True(rt, w.Count() <= w.WindowSize())
		}

		if len(pushes) > 0 {
			tailStart := 0
			if len(pushes) > size {
				tailStart = len(pushes) - size
			}
			want := 0
			for _, v := range pushes[tailStart:] {
				if v {
					want++
				}
			}
			require.Equal(rt, want, w.PositiveCount())
		}
	})
}
