package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"i4.energy/across/wifigw/at"
	"i4.energy/across/wifigw/ipd"
	"i4.energy/across/wifigw/metrics"
	"i4.energy/across/wifigw/ring"
)

// Modem represents an ESP-AT Wi-Fi companion chip reached over a single
// serial link.
//
// A reader goroutine pumps every received byte into a receive ring. All
// other work happens on the caller's goroutine: Exec blocks until its
// terminator shows up, and the frame demultiplexer drains the same ring
// between commands. A Modem must therefore be used from one goroutine at a
// time; overlapping calls are a usage error.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger
	// closed indicates if the modem has been shut down
	closed bool

	// rx is filled by the pump and drained by Exec and the demultiplexer
	rx *ring.Ring
	// acc stages the response of the command in flight
	acc *ring.Accumulator
	// scratch receives drained bytes before they are appended
	scratch []byte
	// spill receives bytes drained by Exec that do not belong to the
	// command, so inbound frames arriving around an exchange survive
	spill io.Writer
	// passthrough counts body bytes of a diverted frame still to come
	passthrough int

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	pumpErr    error
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection, starts the receive pump and
// runs the initialization sequence: echo off, station mode, optional
// access point join, multiple connections and the listening server.
//
// Returns an error if the transport connection or modem initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	m, err := newModem(transport, config)
	if err != nil {
		transport.Close()
		return nil, err
	}

	initCtx := ctx
	if config.initTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, config.initTimeout)
		defer cancel()
	}

	if err := m.init(initCtx); err != nil {
		m.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

func newModem(transport Transport, config Config) (*Modem, error) {
	rx, err := ring.New(config.ringSize)
	if err != nil {
		return nil, err
	}
	m := &Modem{
		transport: transport,
		config:    config,
		logger:    config.logger,
		rx:        rx,
		acc:       ring.NewAccumulator(config.accSize),
		scratch:   make([]byte, 256),
		spill:     io.Discard,
		pumpDone:  make(chan struct{}),
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	m.pumpCancel = cancel
	go func() {
		defer close(m.pumpDone)
		if err := rx.Pump(pumpCtx, transport); err != nil && !errors.Is(err, context.Canceled) {
			m.pumpErr = err
		}
	}()
	return m, nil
}

// Source returns the receive ring. The frame demultiplexer drains it
// between command exchanges.
func (m *Modem) Source() *ring.Ring {
	return m.rx
}

// SetSpill directs bytes that Exec drains but that are not part of the
// command response to w. Passing nil discards them.
func (m *Modem) SetSpill(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	m.spill = w
}

// Done is closed when the receive pump stops, which happens when the
// transport fails or is closed.
func (m *Modem) Done() <-chan struct{} {
	return m.pumpDone
}

// Err returns the error that stopped the receive pump, if any. It is only
// meaningful after Done is closed.
func (m *Modem) Err() error {
	select {
	case <-m.pumpDone:
		return m.pumpErr
	default:
		return nil
	}
}

// Close shuts down the modem and releases all resources.
// It stops the receive pump, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	if m.pumpCancel != nil {
		m.pumpCancel()
	}
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// init performs the initial setup sequence for the modem hardware.
// This method is called during New() and must complete successfully
// before the modem can be used.
func (m *Modem) init(ctx context.Context) error {
	// 1. Wake-up / sanity check. The chip may still be printing its boot
	// banner, so give it a few attempts.
	var err error
	for i := 0; i < m.config.initRetries; i++ {
		if _, err = m.Exec(ctx, at.CmdAt, at.OK, m.config.atTimeout); err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		m.logger.Debug("modem not answering yet", "attempt", i+1, "error", err)
	}
	if err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if err := m.expectOk(ctx, at.CmdEchoOff); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	if err := m.expectOk(ctx, at.SetMode(at.ModeStation)); err != nil {
		return fmt.Errorf("set station mode: %w", err)
	}

	if m.config.ssid != "" {
		if err := m.Join(ctx, m.config.ssid, m.config.password); err != nil {
			return err
		}
	}

	if err := m.expectOk(ctx, at.CmdMuxOn); err != nil {
		return fmt.Errorf("enable multiple connections: %w", err)
	}

	if err := m.StartServer(ctx, m.config.listenPort); err != nil {
		return err
	}

	if m.config.serverTimeout > 0 {
		if err := m.expectOk(ctx, at.ServerTimeout(m.config.serverTimeout)); err != nil {
			return fmt.Errorf("set server timeout: %w", err)
		}
	}

	m.logger.Info("modem ready", "port", m.config.listenPort)
	return nil
}

// Exec sends cmd and blocks until terminator appears in the response, the
// modem reports a failure, or timeout elapses.
//
// Stale bytes still in the receive ring are flushed to the spill writer
// before the command is written. An empty terminator waits for OK; a zero
// timeout uses the configured AT timeout. On timeout the returned string
// holds exactly what was received. Exec never retries.
func (m *Modem) Exec(ctx context.Context, cmd, terminator string, timeout time.Duration) (string, error) {
	if m.closed {
		return "", ErrAlreadyClosed
	}
	if m.transport == nil || m.rx == nil {
		return "", ErrNotInitialized
	}
	if terminator == "" {
		terminator = at.DefaultTerminator
	}
	if timeout <= 0 {
		timeout = m.config.atTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.flush()
	// no diverted frame outlives a flush
	m.passthrough = 0
	m.acc.Reset()

	start := time.Now()
	wire := strings.TrimSpace(cmd) + at.CRLF
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		metrics.CommandsTotal.WithLabelValues("transmit_error").Inc()
		return "", fmt.Errorf("%w: write command %q: %w", ErrTransmit, cmd, err)
	}

	resp, err := m.await(ctx, terminator)
	metrics.CommandDuration.Observe(time.Since(start).Seconds())
	metrics.CommandsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		m.logger.Debug("command failed", "cmd", cmd, "error", err, "response", resp)
		return resp, fmt.Errorf("%s: %w", cmd, err)
	}
	return resp, nil
}

// expectOk executes an AT command that should succeed with a plain OK.
func (m *Modem) expectOk(ctx context.Context, cmd string) error {
	_, err := m.Exec(ctx, cmd, at.OK, m.config.atTimeout)
	return err
}

// failures are whole-line replies that end an exchange unsuccessfully.
var failures = []string{at.ERROR, at.FAIL, at.SendFail}

var ipdMarker = []byte(at.IPDMarker)

// await drains the ring into the accumulator until terminator is found.
// Inbound frames are diverted to the spill writer as they complete, and
// bytes following the terminator are spilled too.
func (m *Modem) await(ctx context.Context, terminator string) (string, error) {
	term := []byte(terminator)
	stopped := false
	for {
		m.collect()
		limit := m.divert(term)
		staged := m.acc.Bytes()[:limit]

		if i := bytes.Index(staged, term); i >= 0 {
			end := i + len(term)
			resp := string(staged[:end])
			if rest := m.acc.Bytes()[end:]; len(rest) > 0 {
				m.spill.Write(rest)
			}
			m.acc.Reset()
			return resp, nil
		}
		for _, f := range failures {
			if hasLine(staged, f) {
				return string(m.acc.Bytes()), fmt.Errorf("%w: %s", ErrCommandFailed, f)
			}
		}
		if stopped {
			return string(m.acc.Bytes()), fmt.Errorf("%w: receive stopped: %w", ErrTransmit, errOrEOF(m.pumpErr))
		}

		if m.rx.Available() > 0 {
			if m.acc.Free() == 0 && m.passthrough == 0 {
				m.overflow()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return string(m.acc.Bytes()), fmt.Errorf("%w for %q: %w", ErrTimeout, terminator, ctx.Err())
		case <-m.rx.Readable():
		case <-m.pumpDone:
			// one more pass over whatever the pump stored before it stopped
			stopped = true
		}
	}
}

// collect moves ring contents into the accumulator until either runs out.
// The pending remainder of an oversized frame bypasses the accumulator and
// goes to the spill writer.
func (m *Modem) collect() {
	for {
		room := m.acc.Free() + m.passthrough
		if room == 0 {
			return
		}
		n := m.rx.Drain(m.scratch[:min(len(m.scratch), room)])
		if n == 0 {
			return
		}
		b := m.scratch[:n]
		if m.passthrough > 0 {
			k := min(m.passthrough, n)
			m.spill.Write(b[:k])
			m.passthrough -= k
			b = b[k:]
		}
		m.acc.Append(b)
	}
}

// divert cuts complete +IPD frames out of the accumulator, in order, and
// hands them to the spill writer. It stops at the first frame preceded by
// term or still arriving and returns that frame's offset, so the prefix it
// returns holds command output only and nothing inside a payload can match
// a terminator. Frames behind the terminator stay in place and are spilled
// with the rest of the trailing bytes. A frame too large for the
// accumulator is spilled as far as received and its remainder routed by
// collect.
func (m *Modem) divert(term []byte) int {
	for off := 0; ; {
		i := m.acc.Index(ipdMarker, off)
		if i < 0 {
			return m.acc.Len()
		}
		if bytes.Contains(m.acc.Bytes()[:i], term) {
			return i
		}
		h, n, err := ipd.ParseHeader(m.acc.Bytes()[i:])
		if errors.Is(err, ipd.ErrMalformed) {
			off = i + 1
			continue
		}
		if err != nil {
			return i
		}
		end := i + n + h.Length
		if end > m.acc.Len() {
			if m.acc.Free() > 0 {
				return i
			}
			m.passthrough = end - m.acc.Len()
			end = m.acc.Len()
		}
		m.spill.Write(m.acc.Bytes()[i:end])
		m.acc.Cut(i, end)
		off = i
	}
}

// overflow drops what the ring holds once the accumulator is full of
// command output.
func (m *Modem) overflow() {
	for {
		n := m.rx.Drain(m.scratch)
		if n == 0 {
			return
		}
		metrics.DroppedBytes.WithLabelValues("command").Add(float64(n))
	}
}

// flush hands stale ring contents to the spill writer, bounded by the
// flush timeout so a chatty link cannot stall the command.
func (m *Modem) flush() {
	deadline := time.Now().Add(m.config.flushTimeout)
	for time.Now().Before(deadline) {
		n := m.rx.Drain(m.scratch)
		if n == 0 {
			return
		}
		m.spill.Write(m.scratch[:n])
		m.passthrough -= min(m.passthrough, n)
	}
}

// hasLine reports whether token appears in b as a complete CRLF-terminated
// line.
func hasLine(b []byte, token string) bool {
	line := []byte(token + at.CRLF)
	for off := 0; ; {
		i := bytes.Index(b[off:], line)
		if i < 0 {
			return false
		}
		i += off
		if i == 0 || b[i-1] == '\n' {
			return true
		}
		off = i + 1
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCommandFailed):
		return "failed"
	default:
		return "transmit_error"
	}
}

func errOrEOF(err error) error {
	if err == nil {
		return io.EOF
	}
	return err
}
