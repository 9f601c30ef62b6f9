package modem

import (
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates the modem end of a serial
// link. Reads block until data is queued, like a real serial port would,
// because the receive pump reads continuously. Writes are recorded and may
// trigger scripted replies.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	writes   []string
	script   []scripted
	writeErr error
	pending  []byte
}

type scripted struct {
	prefix string
	reply  string
	used   bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
	}
}

// Expect queues reply to be sent back the first time a write starts with
// prefix. Expectations are matched in the order they were added.
func (t *TestTransport) Expect(prefix, reply string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, scripted{prefix: prefix, reply: reply})
	return t
}

// FailWrites makes every following Write return err.
func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Writes returns everything written so far, one entry per Write call.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	w := string(p)
	t.writes = append(t.writes, w)
	for i := range t.script {
		s := &t.script[i]
		if !s.used && strings.HasPrefix(w, s.prefix) {
			s.used = true
			if s.reply != "" {
				t.readChan <- []byte(s.reply)
			}
			break
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	// pending is only touched by the single reader
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}
