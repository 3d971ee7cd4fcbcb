package simrand

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SameSeedSameSequence(t *testing.T) {
	a, b := New(7), New(7)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "draw %d", i)
	}
	assert.NotEqual(t, New(7).Float64(), New(8).Float64(), "different seeds should diverge")
}

func TestHelpers_Ranges(t *testing.T) {
	src := New(1)
	for i := 0; i < 1000; i++ {
		v := Symmetric(src)
		require.True(t, v >= -1 && v < 1, "Symmetric out of range: %v", v)
		v = Between(src, 2, 5)
		require.True(t, v >= 2 && v < 5, "Between out of range: %v", v)
		n := IntBetween(src, 3, 6)
		require.True(t, n >= 3 && n <= 6, "IntBetween out of range: %v", n)
	}
	assert.Equal(t, 4, IntBetween(src, 4, 2), "inverted range yields lo")
}

func TestChance_Extremes(t *testing.T) {
	src := New(3)
	for i := 0; i < 100; i++ {
		require.False(t, Chance(src, 0), "p=0 must never fire")
		require.True(t, Chance(src, 1), "p=1 must always fire")
	}
}

func TestFixed(t *testing.T) {
	f := &Fixed{Values: []float64{0, 0.5, 0.999}}
	assert.Equal(t, 0, f.IntN(10))
	assert.Equal(t, 5, f.IntN(10))
	assert.Equal(t, 9, f.IntN(10))
	assert.Equal(t, 0.0, f.Float64(), "cycles back to the first value")
	assert.Equal(t, 0.0, (&Fixed{}).Float64(), "empty Fixed yields 0")
}

func TestNewReader_Deterministic(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	_, err := io.ReadFull(NewReader(New(11)), a)
	require.NoError(t, err)
	_, err = io.ReadFull(NewReader(New(11)), b)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c := make([]byte, 32)
	_, err = io.ReadFull(NewReader(New(12)), c)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestNewReader_UsesFullByteRange(t *testing.T) {
	buf := make([]byte, 2)
	n, err := NewReader(&Fixed{Values: []float64{0, 0.999}}).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0, 255}, buf)
}
