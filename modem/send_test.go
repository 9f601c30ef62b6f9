package modem_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"i4.energy/across/wifigw/modem"
)

func TestSend(t *testing.T) {
	t.Run("Two-phase send", func(t *testing.T) {
		m, transport := newTestModem(t, nil)
		NewScript(transport).Send("HTTP/1.1 200 OK")

		payload := []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
		if err := m.Send(context.Background(), 1, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		writes := transport.Writes()
		tail := writes[len(writes)-2:]
		want := []string{"AT+CIPSEND=1,38\r\n", string(payload)}
		if !slices.Equal(tail, want) {
			t.Errorf("expected %q, got %q", want, tail)
		}
	})

	t.Run("Large payloads are chunked", func(t *testing.T) {
		m, transport := newTestModem(t, func(b *modem.ConfigBuilder) {
			b.WithMaxSendChunk(4)
		})
		NewScript(transport).Send("abcd").Send("ef")

		if err := m.Send(context.Background(), 0, []byte("abcdef")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var sends []string
		for _, w := range transport.Writes() {
			if strings.HasPrefix(w, "AT+CIPSEND=") {
				sends = append(sends, w)
			}
		}
		want := []string{"AT+CIPSEND=0,4\r\n", "AT+CIPSEND=0,2\r\n"}
		if !slices.Equal(sends, want) {
			t.Errorf("expected %q, got %q", want, sends)
		}
	})

	t.Run("Rejected prepare", func(t *testing.T) {
		m, transport := newTestModem(t, nil)
		transport.Expect("AT+CIPSEND=", "link is not valid\r\n\r\nERROR\r\n")

		err := m.Send(context.Background(), 3, []byte("x"))
		if !errors.Is(err, modem.ErrSendFailed) {
			t.Errorf("expected ErrSendFailed, got %v", err)
		}
		if !errors.Is(err, modem.ErrCommandFailed) {
			t.Errorf("expected ErrCommandFailed cause, got %v", err)
		}
		if got := transport.Writes(); got[len(got)-1] != "AT+CIPSEND=3,1\r\n" {
			t.Errorf("payload must not be written after rejection, last write %q", got[len(got)-1])
		}
	})

	t.Run("Prompt timeout", func(t *testing.T) {
		m, transport := newTestModem(t, func(b *modem.ConfigBuilder) {
			b.WithATTimeout(100 * time.Millisecond)
		})
		transport.Expect("AT+CIPSEND=", "\r\nOK\r\n")

		err := m.Send(context.Background(), 0, []byte("x"))
		if !errors.Is(err, modem.ErrSendFailed) || !errors.Is(err, modem.ErrTimeout) {
			t.Errorf("expected ErrSendFailed and ErrTimeout, got %v", err)
		}
	})

	t.Run("SEND FAIL", func(t *testing.T) {
		m, transport := newTestModem(t, nil)
		transport.Expect("AT+CIPSEND=", "\r\nOK\r\n> ")
		transport.Expect("body", "\r\nRecv 4 bytes\r\n\r\nSEND FAIL\r\n")

		err := m.Send(context.Background(), 0, []byte("body"))
		if !errors.Is(err, modem.ErrSendFailed) || !errors.Is(err, modem.ErrCommandFailed) {
			t.Errorf("expected ErrSendFailed and ErrCommandFailed, got %v", err)
		}
	})

	t.Run("Confirmation timeout", func(t *testing.T) {
		m, transport := newTestModem(t, func(b *modem.ConfigBuilder) {
			b.WithSendTimeout(30 * time.Millisecond)
		})
		transport.Expect("AT+CIPSEND=", "\r\nOK\r\n> ")

		err := m.Send(context.Background(), 0, []byte("body"))
		if !errors.Is(err, modem.ErrSendFailed) || !errors.Is(err, modem.ErrTimeout) {
			t.Errorf("expected ErrSendFailed and ErrTimeout, got %v", err)
		}
	})

	t.Run("Frames arriving during a send are spilled", func(t *testing.T) {
		tests := []struct {
			name    string
			request string
			accSize int
		}{
			{
				name:    "plain request",
				request: "GET /off HTTP/1.1\r\n\r\n",
			},
			{
				name:    "payload looks like a reply",
				request: "POST /x HTTP/1.1\r\n\r\nERROR\r\nSEND OK\r\n",
			},
			{
				name:    "frame larger than the accumulator",
				request: "GET /off HTTP/1.1\r\nHost: 192.168.1.5\r\n\r\n",
				accSize: 32,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m, transport := newTestModem(t, func(b *modem.ConfigBuilder) {
					if tt.accSize > 0 {
						b.WithAccumulatorSize(tt.accSize)
					}
				})
				var spill bytes.Buffer
				m.SetSpill(&spill)

				frame := fmt.Sprintf("+IPD,1,%d:%s", len(tt.request), tt.request)
				transport.
					Expect("AT+CIPSEND=0,", "\r\nOK\r\n> ").
					Expect("HTTP/1.1 200", "\r\nRecv 19 bytes\r\n"+frame+"\r\nSEND OK\r\n")

				if err := m.Send(context.Background(), 0, []byte("HTTP/1.1 200 OK\r\n\r\n")); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(spill.String(), frame) {
					t.Errorf("expected link 1 frame in spill, got %q", spill.String())
				}
			})
		}
	})
}

func TestSendTo(t *testing.T) {
	t.Run("Explicit destination", func(t *testing.T) {
		m, transport := newTestModem(t, nil)
		NewScript(transport).Send("HTTP/1.1 200 OK")

		err := m.SendTo(context.Background(), 4, "192.168.1.9", 1900, []byte("HTTP/1.1 200 OK\r\n\r\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Contains(transport.Writes(), "AT+CIPSEND=4,19,\"192.168.1.9\",1900\r\n") {
			t.Errorf("expected addressed send, got %q", transport.Writes())
		}
	})

	t.Run("Current remote", func(t *testing.T) {
		m, transport := newTestModem(t, nil)
		NewScript(transport).Send("x")

		if err := m.SendTo(context.Background(), 4, "", 0, []byte("x")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Contains(transport.Writes(), "AT+CIPSEND=4,1\r\n") {
			t.Errorf("expected plain send, got %q", transport.Writes())
		}
	})

	t.Run("Datagram too large", func(t *testing.T) {
		m, _ := newTestModem(t, func(b *modem.ConfigBuilder) {
			b.WithMaxSendChunk(4)
		})
		err := m.SendTo(context.Background(), 4, "10.0.0.1", 1900, []byte("too long"))
		if !errors.Is(err, modem.ErrPayloadTooLarge) {
			t.Errorf("expected ErrPayloadTooLarge, got %v", err)
		}
	})
}
