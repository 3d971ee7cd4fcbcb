// Package simrand holds the injectable random source shared by the price
// process, event scheduler and synthetic order book. Passing a seeded
// source makes a whole session replayable.
package simrand

import (
	"io"
	"math/rand/v2"
)

// Source is the subset of *rand.Rand the simulation needs.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// New returns a PCG-backed source. The same seed always yields the same
// sequence.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Symmetric returns a uniform sample in [-1, 1).
func Symmetric(src Source) float64 {
	return src.Float64()*2 - 1
}

// Between returns a uniform sample in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// IntBetween returns a uniform integer in [lo, hi]. If hi < lo it returns lo.
func IntBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// NewReader returns an io.Reader that fills buffers with bytes drawn from
// src. It never fails. Identifiers generated from it replay with the seed.
func NewReader(src Source) io.Reader {
	return reader{src: src}
}

type reader struct{ src Source }

func (r reader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.src.IntN(256))
	}
	return len(p), nil
}

// Fixed replays a fixed list of Float64 values, cycling when exhausted.
// IntN maps the next value onto [0, n). Tests use it to pin random draws.
type Fixed struct {
	Values []float64
	pos    int
}

// Float64 returns the next pinned value.
func (f *Fixed) Float64() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	v := f.Values[f.pos%len(f.Values)]
	f.pos++
	return v
}

// IntN returns the next pinned value scaled onto [0, n).
func (f *Fixed) IntN(n int) int {
	i := int(f.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
