package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBitReaderWriterRoundTrip(t *testing.T) {
	w := newBitWriter()
	w.WriteBool(true)
	w.WriteUint(5, 3)
	w.WriteUint(0b1010110, 7)
	w.WriteBool(false)

	r := newBitReader(w.Bytes())
	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	v, err := r.ReadUint(3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)

	v, err = r.ReadUint(7)
	require.NoError(t, err)
	assert.EqualValues(t, 0b1010110, v)

	b, err = r.ReadBool()
	require.NoError(t, err)
	assert.False(t, b)
}

func TestBitReaderUnderrunReturnsError(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	_, err := r.ReadUint(8)
	require.NoError(t, err)
	_, err = r.ReadBit()
	require.Error(t, err)
}

func TestBitReaderWriterProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		widths := rapid.SliceOfN(rapid.IntRange(1, 16), 1, 20).Draw(rt, "widths")
		values := make([]uint64, len(widths))
		w := newBitWriter()
		for i, width := range widths {
			max := uint64(1)<<uint(width) - 1
			v := rapid.Uint64Range(0, max).Draw(rt, "value")
			values[i] = v
			w.WriteUint(v, width)
		}

		r := newBitReader(w.Bytes())
		for i, width := range widths {
			got, err := r.ReadUint(width)
			require.NoError(rt, err)
			assert.Equal(rt, values[i], got)
		}
	})
}
