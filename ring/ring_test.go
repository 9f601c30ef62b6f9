package ring_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"i4.energy/across/wifigw/ring"
)

func TestNew(t *testing.T) {
	for _, size := range []int{0, 1, 3, 100} {
		if _, err := ring.New(size); !errors.Is(err, ring.ErrSize) {
			t.Errorf("New(%d): expected ErrSize, got %v", size, err)
		}
	}
	r, err := ring.New(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Cap() != 64 {
		t.Errorf("expected capacity 64, got %d", r.Cap())
	}
}

func TestDrainEmpty(t *testing.T) {
	r, _ := ring.New(16)
	buf := make([]byte, 8)
	if n := r.Drain(buf); n != 0 {
		t.Errorf("expected 0 from empty ring, got %d", n)
	}
}

func TestDrainPreservesOrder(t *testing.T) {
	chunkSizes := []int{1, 2, 3, 5, 7, 13, 31}

	for _, chunk := range chunkSizes {
		for _, drainSize := range []int{1, 4, 9, 32} {
			r, _ := ring.New(32)

			var src bytes.Buffer
			for i := 0; i < 500; i++ {
				src.WriteByte(byte(i * 7))
			}
			want := src.Bytes()

			var got []byte
			dst := make([]byte, drainSize)
			for off := 0; off < len(want); off += chunk {
				end := min(off+chunk, len(want))
				if n := r.Write(want[off:end]); n != end-off {
					t.Fatalf("chunk %d: short write %d", chunk, n)
				}
				for {
					n := r.Drain(dst)
					if n == 0 {
						break
					}
					got = append(got, dst[:n]...)
				}
			}

			if !bytes.Equal(got, want) {
				t.Errorf("chunk %d drain %d: drained bytes differ from written bytes", chunk, drainSize)
			}
			if r.Overruns() != 0 {
				t.Errorf("chunk %d drain %d: unexpected overruns %d", chunk, drainSize, r.Overruns())
			}
		}
	}
}

func TestWrapAround(t *testing.T) {
	r, _ := ring.New(8)
	dst := make([]byte, 8)

	r.Write([]byte("abcdef"))
	if n := r.Drain(dst[:4]); string(dst[:n]) != "abcd" {
		t.Fatalf("expected abcd, got %q", dst[:n])
	}
	r.Write([]byte("ghijkl")) // wraps
	n := r.Drain(dst)
	if string(dst[:n]) != "efghijkl" {
		t.Errorf("expected efghijkl, got %q", dst[:n])
	}
}

func TestOverrunDropsExcess(t *testing.T) {
	r, _ := ring.New(4)
	if n := r.Write([]byte("abcdef")); n != 4 {
		t.Errorf("expected 4 bytes stored, got %d", n)
	}
	if r.Overruns() != 2 {
		t.Errorf("expected 2 overrun bytes, got %d", r.Overruns())
	}
	dst := make([]byte, 8)
	n := r.Drain(dst)
	if string(dst[:n]) != "abcd" {
		t.Errorf("expected abcd, got %q", dst[:n])
	}
}

func TestReadableNotification(t *testing.T) {
	r, _ := ring.New(16)
	select {
	case <-r.Readable():
		t.Fatal("unexpected notification on empty ring")
	default:
	}
	r.Write([]byte("x"))
	select {
	case <-r.Readable():
	default:
		t.Error("expected notification after first write")
	}

	// The consumer took the signal but has not drained yet; a further
	// write must leave a new one pending.
	r.Write([]byte("y"))
	select {
	case <-r.Readable():
	default:
		t.Error("expected notification after write to a non-empty ring")
	}
}

func TestReadableConcurrent(t *testing.T) {
	const total = 200000
	r, _ := ring.New(64)

	go func() {
		b := []byte{'x'}
		for sent := 0; sent < total; {
			sent += r.Write(b)
		}
	}()

	dst := make([]byte, 64)
	deadline := time.After(10 * time.Second)
	for got := 0; got < total; {
		if n := r.Drain(dst); n > 0 {
			got += n
			continue
		}
		select {
		case <-r.Readable():
		case <-deadline:
			t.Fatalf("consumer stalled after %d of %d bytes with %d available", got, total, r.Available())
		}
	}
}

func TestPump(t *testing.T) {
	t.Run("EOF ends pump without error", func(t *testing.T) {
		r, _ := ring.New(64)
		err := r.Pump(context.Background(), strings.NewReader("+IPD,0,3:abc"))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		dst := make([]byte, 64)
		n := r.Drain(dst)
		if string(dst[:n]) != "+IPD,0,3:abc" {
			t.Errorf("unexpected content %q", dst[:n])
		}
	})

	t.Run("read error is returned", func(t *testing.T) {
		r, _ := ring.New(64)
		boom := errors.New("boom")
		err := r.Pump(context.Background(), io.MultiReader(strings.NewReader("ok"), errReader{boom}))
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("cancelled context stops pump", func(t *testing.T) {
		r, _ := ring.New(64)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		done := make(chan error, 1)
		go func() { done <- r.Pump(ctx, strings.NewReader("data")) }()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("pump did not return")
		}
	})
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
