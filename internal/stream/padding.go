package stream

import (
	"math/rand/v2"
	"time"
)

const (
	padMin = 33
	padMax = 126 // exclusive
)

// Padder produces random printable filler. It is not safe for concurrent use;
// the Scheduler only calls it from its drain goroutine.
type Padder struct {
	rnd *rand.Rand
}

// NewPadder uses src for randomness, or a time-seeded PCG when src is nil.
func NewPadder(src rand.Source) *Padder {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	return &Padder{rnd: rand.New(src)}
}

// Fill returns n filler bytes in the printable range 33-125.
func (p *Padder) Fill(n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(padMin + p.rnd.IntN(padMax-padMin))
	}
	return out
}
