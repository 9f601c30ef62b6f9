// Package ring implements the receive side of the serial link: a
// single-producer, single-consumer byte ring fed by a reader goroutine, and
// the fixed-capacity accumulator used to stage command replies and inbound
// frames.
package ring

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"i4.energy/across/wifigw/metrics"
)

// ErrSize is returned by New when the requested capacity is not a power of
// two or is smaller than two bytes.
var ErrSize = errors.New("ring: size must be a power of two >= 2")

// Ring is a single-producer, single-consumer byte ring.
//
// The write position is advanced only by the producer (Write, Pump) and the
// read position only by the consumer (Drain). Both are monotonic counters;
// the buffer index is the position masked by the capacity, so wraparound
// is handled by unsigned overflow.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer position
	wr   atomic.Uint32 // producer position

	overruns atomic.Uint64
	readable chan struct{}
}

// New allocates a ring of the given capacity.
func New(size int) (*Ring, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, ErrSize
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
	}, nil
}

// Cap returns the capacity of the ring in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// Available returns the number of bytes written but not yet drained.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Overruns returns the number of bytes the producer had to drop because
// the consumer did not drain in time.
func (r *Ring) Overruns() uint64 { return r.overruns.Load() }

// Readable returns a channel that holds a pending signal whenever bytes
// were written since the consumer last received from it. Waiters must
// still call Drain; the channel is only a wake-up hint and may fire with
// nothing left to read.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Write stores as much of p as fits and returns the stored count. Bytes that
// do not fit are dropped and counted as overruns.
func (r *Ring) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	before := wr - rd
	space := int(uint32(len(r.buf)) - before)
	n := len(p)
	if n > space {
		r.overruns.Add(uint64(n - space))
		metrics.DroppedBytes.WithLabelValues("ring").Add(float64(n - space))
		n = space
	}
	if n == 0 {
		return 0
	}

	idx := wr & r.mask
	first := len(r.buf) - int(idx)
	if first > n {
		first = n
	}
	copy(r.buf[idx:], p[:first])
	if first < n {
		copy(r.buf, p[first:n])
	}
	r.wr.Store(wr + uint32(n))

	// every store signals; the one-slot channel merges repeats
	select {
	case r.readable <- struct{}{}:
	default:
	}
	return n
}

// Drain copies the bytes written since the last Drain into dst, at most
// len(dst) of them, and advances the read position by the copied count.
// It returns 0 when nothing is available; it never blocks.
func (r *Ring) Drain(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	n := int(wr - rd)
	if n == 0 {
		return 0
	}
	if n > len(dst) {
		n = len(dst)
	}

	idx := rd & r.mask
	first := len(r.buf) - int(idx)
	if first > n {
		first = n
	}
	copy(dst, r.buf[idx:int(idx)+first])
	if first < n {
		copy(dst[first:n], r.buf[:n-first])
	}
	r.rd.Store(rd + uint32(n))
	return n
}

// Pump is the producer loop: it reads from src into the ring until src
// returns an error or ctx is cancelled. io.EOF is reported as a nil error.
func (r *Ring) Pump(ctx context.Context, src io.Reader) error {
	chunk := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(chunk)
		if n > 0 {
			r.Write(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
