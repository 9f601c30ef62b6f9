package ring

import "bytes"

// Accumulator is a fixed-capacity staging buffer. It never grows: appends
// past the capacity are truncated and the caller is told how much was kept.
type Accumulator struct {
	buf []byte
	n   int
}

// NewAccumulator allocates an accumulator holding at most size bytes.
func NewAccumulator(size int) *Accumulator {
	return &Accumulator{buf: make([]byte, size)}
}

// Append copies as much of p as fits and returns the number of bytes kept.
func (a *Accumulator) Append(p []byte) int {
	n := copy(a.buf[a.n:], p)
	a.n += n
	return n
}

// Fill drains src directly into the free space and returns the count.
func (a *Accumulator) Fill(src interface{ Drain([]byte) int }) int {
	n := src.Drain(a.buf[a.n:])
	a.n += n
	return n
}

// Bytes returns the staged bytes. The slice aliases the accumulator and is
// only valid until the next mutating call.
func (a *Accumulator) Bytes() []byte { return a.buf[:a.n] }

func (a *Accumulator) Len() int  { return a.n }
func (a *Accumulator) Cap() int  { return len(a.buf) }
func (a *Accumulator) Free() int { return len(a.buf) - a.n }

// Index reports the offset of the first occurrence of sep at or after
// from, or -1.
func (a *Accumulator) Index(sep []byte, from int) int {
	if from >= a.n {
		return -1
	}
	i := bytes.Index(a.buf[from:a.n], sep)
	if i < 0 {
		return -1
	}
	return from + i
}

// Discard drops the first n staged bytes, shifting the rest to the front.
func (a *Accumulator) Discard(n int) {
	if n >= a.n {
		a.n = 0
		return
	}
	if n <= 0 {
		return
	}
	copy(a.buf, a.buf[n:a.n])
	a.n -= n
}

// Cut removes the staged bytes in [from, to), closing the gap.
func (a *Accumulator) Cut(from, to int) {
	from = max(from, 0)
	to = min(to, a.n)
	if from >= to {
		return
	}
	copy(a.buf[from:], a.buf[to:a.n])
	a.n -= to - from
}

// Reset empties the accumulator.
func (a *Accumulator) Reset() { a.n = 0 }
