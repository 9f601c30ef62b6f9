package ipd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"i4.energy/across/wifigw/metrics"
	"i4.energy/across/wifigw/ring"
)

const (
	DefaultStagingSize    = 1024
	DefaultBacklogSize    = 1024
	DefaultDiscardTimeout = 2 * time.Second

	drainChunk = 256
)

// Stats are cumulative demultiplexer counters.
type Stats struct {
	Frames    uint64
	Truncated uint64
	Resyncs   uint64
	Malformed uint64
	Discarded uint64
}

// Option configures a Demux.
type Option func(*Demux)

// WithStagingSize sets the staging buffer capacity. Frames longer than this
// (header included) are delivered truncated.
func WithStagingSize(n int) Option {
	return func(d *Demux) {
		if n > len(marker) {
			d.stagingSize = n
		}
	}
}

// WithBacklogSize sets how many spilled bytes are held between calls to
// Process.
func WithBacklogSize(n int) Option {
	return func(d *Demux) {
		if n > 0 {
			d.backlogSize = n
		}
	}
}

// WithDiscardTimeout bounds how long the tail of a truncated frame is
// waited for. Once it expires the countdown is abandoned and scanning
// resumes on whatever arrives next.
func WithDiscardTimeout(t time.Duration) Option {
	return func(d *Demux) {
		if t > 0 {
			d.discardTimeout = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Demux) {
		if l != nil {
			d.logger = l
		}
	}
}

// Demux finds +IPD frames in the bytes drained from a Source and hands them
// to a Handler. It is driven by Process from a single goroutine; Write may
// be called from within the handler (the command matcher spills into it
// while a response is being sent).
type Demux struct {
	src     Source
	handler Handler
	logger  *slog.Logger

	stagingSize    int
	backlogSize    int
	discardTimeout time.Duration

	staging *ring.Accumulator
	backlog *ring.Accumulator
	scratch []byte
	carry   []byte

	// skip counts body bytes of a truncated frame still to be thrown away.
	skip      int
	skipUntil time.Time
	now       func() time.Time

	stats Stats
}

// NewDemux allocates every buffer up front.
func NewDemux(src Source, h Handler, opts ...Option) *Demux {
	d := &Demux{
		src:            src,
		handler:        h,
		logger:         slog.New(slog.DiscardHandler),
		stagingSize:    DefaultStagingSize,
		backlogSize:    DefaultBacklogSize,
		discardTimeout: DefaultDiscardTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "demux")
	d.staging = ring.NewAccumulator(d.stagingSize)
	d.backlog = ring.NewAccumulator(d.backlogSize)
	d.scratch = make([]byte, drainChunk)
	d.carry = make([]byte, d.backlogSize)
	return d
}

// Write queues bytes that were taken off the ring by someone else. They are
// processed ahead of anything still in the ring. Bytes beyond the backlog
// capacity are dropped and counted; the returned count is what was kept,
// with ErrBacklogFull when that is short of len(p).
func (d *Demux) Write(p []byte) (int, error) {
	n := d.backlog.Append(p)
	if n < len(p) {
		metrics.DroppedBytes.WithLabelValues("backlog").Add(float64(len(p) - n))
		d.logger.Warn("spill backlog full", "dropped", len(p)-n)
		return n, ErrBacklogFull
	}
	return n, nil
}

// Stats returns a snapshot of the counters.
func (d *Demux) Stats() Stats { return d.stats }

// Process moves everything currently available into the staging buffer and
// dispatches every complete frame. It never blocks waiting for input.
func (d *Demux) Process(ctx context.Context) {
	for {
		d.fill(ctx)
		for d.next(ctx) {
		}
		// handlers may have spilled newer bytes while sending
		if d.backlog.Len() == 0 {
			return
		}
	}
}

func (d *Demux) fill(ctx context.Context) {
	for {
		moved := false
		for d.backlog.Len() > 0 {
			n := copy(d.carry, d.backlog.Bytes())
			d.backlog.Discard(n)
			d.stage(ctx, d.carry[:n])
			moved = true
		}
		if d.src != nil {
			if n := d.src.Drain(d.scratch); n > 0 {
				d.stage(ctx, d.scratch[:n])
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// stage appends p, making room by dispatching or resynchronizing when the
// staging buffer fills up.
func (d *Demux) stage(ctx context.Context, p []byte) {
	p = d.countDown(p)
	for len(p) > 0 {
		n := d.staging.Append(p)
		p = p[n:]
		if len(p) == 0 {
			return
		}
		for d.next(ctx) {
		}
		p = d.countDown(p)
		if d.staging.Free() == 0 {
			d.resync()
		}
	}
}

// countDown swallows the unread tail of a truncated frame.
func (d *Demux) countDown(p []byte) []byte {
	if d.skip == 0 || len(p) == 0 {
		return p
	}
	if d.now().After(d.skipUntil) {
		d.logger.Warn("abandoning truncated frame tail", "remaining", d.skip)
		d.skip = 0
		return p
	}
	n := min(d.skip, len(p))
	d.skip -= n
	d.count(n, "body")
	return p[n:]
}

// resync recovers from a staging buffer that filled without yielding a
// frame. The buffer is cut at the next marker past the first byte, or
// emptied down to a possible partial marker at the end.
func (d *Demux) resync() {
	d.stats.Resyncs++
	metrics.FrameResyncs.Inc()

	buf := d.staging.Bytes()
	cut := len(buf) - partialMarker(buf)
	if i := d.staging.Index(marker, 1); i > 0 {
		cut = i
	}
	d.logger.Warn("staging overflow", "discarded", cut)
	d.discarded(cut, "overflow")
}

// next handles the frame at the front of the staging buffer. It reports
// whether it made progress.
func (d *Demux) next(ctx context.Context) bool {
	if d.skip > 0 {
		return false
	}
	buf := d.staging.Bytes()
	i := bytes.Index(buf, marker)
	if i < 0 {
		if n := len(buf) - partialMarker(buf); n > 0 {
			d.discarded(n, "noise")
		}
		return false
	}
	if i > 0 {
		d.discarded(i, "noise")
		buf = d.staging.Bytes()
	}

	h, n, err := ParseHeader(buf)
	if errors.Is(err, ErrIncomplete) {
		return false
	}
	if err != nil {
		d.reject(buf, err)
		return true
	}

	payload := buf[n:]
	complete := len(payload) >= h.Length
	if complete {
		payload = payload[:h.Length]
	}
	full := d.staging.Free() == 0

	if !bytes.Contains(payload, blankLine) {
		if complete || full {
			d.reject(buf, errors.New("payload without header terminator"))
			return true
		}
		return false
	}

	switch {
	case complete:
		d.dispatch(ctx, Frame{Header: h, Payload: payload})
		d.staging.Discard(n + h.Length)
	case full:
		d.dispatch(ctx, Frame{Header: h, Payload: payload, Truncated: true})
		d.skip = h.Length - len(payload)
		d.skipUntil = d.now().Add(d.discardTimeout)
		d.staging.Reset()
	default:
		return false
	}
	return true
}

// reject steps over a marker that did not introduce a valid frame. Only the
// marker itself is dropped so a real frame hiding behind it is still found.
func (d *Demux) reject(buf []byte, err error) {
	d.stats.Malformed++
	metrics.MalformedMarkers.Inc()
	d.logger.Debug("skipping marker", "error", err, "near", string(buf[:min(len(buf), 32)]))
	d.discarded(len(marker), "malformed")
}

func (d *Demux) dispatch(ctx context.Context, f Frame) {
	d.stats.Frames++
	result := "complete"
	if f.Truncated {
		d.stats.Truncated++
		result = "truncated"
	}
	metrics.FramesTotal.WithLabelValues(result).Inc()
	d.logger.Debug("frame", "conn", f.ConnID, "length", f.Length, "truncated", f.Truncated)
	if d.handler != nil {
		d.handler.ServeFrame(ctx, f)
	}
}

// discarded drops n staged bytes.
func (d *Demux) discarded(n int, reason string) {
	d.staging.Discard(n)
	d.count(n, reason)
}

func (d *Demux) count(n int, reason string) {
	d.stats.Discarded += uint64(n)
	metrics.DiscardedBytes.WithLabelValues(reason).Add(float64(n))
}

// partialMarker returns the length of the longest proper marker prefix the
// buffer ends with.
func partialMarker(b []byte) int {
	for k := min(len(marker)-1, len(b)); k > 0; k-- {
		if bytes.HasSuffix(b, marker[:k]) {
			return k
		}
	}
	return 0
}
