package modem_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/wifigw/modem"
)

// ScriptBuilder queues the replies of a well-behaved ESP-AT chip on a
// TestTransport.
type ScriptBuilder struct {
	transport *modem.TestTransport
}

func NewScript(transport *modem.TestTransport) *ScriptBuilder {
	return &ScriptBuilder{transport: transport}
}

func (b *ScriptBuilder) AT() *ScriptBuilder {
	b.transport.Expect("AT\r\n", "\r\nOK\r\n")
	return b
}

func (b *ScriptBuilder) EchoOff() *ScriptBuilder {
	b.transport.Expect("ATE0\r\n", "ATE0\r\n\r\nOK\r\n")
	return b
}

func (b *ScriptBuilder) StationMode() *ScriptBuilder {
	b.transport.Expect("AT+CWMODE=1\r\n", "\r\nOK\r\n")
	return b
}

func (b *ScriptBuilder) Join() *ScriptBuilder {
	b.transport.Expect("AT+CWJAP=", "WIFI CONNECTED\r\nWIFI GOT IP\r\n\r\nOK\r\n")
	return b
}

func (b *ScriptBuilder) Mux() *ScriptBuilder {
	b.transport.Expect("AT+CIPMUX=1\r\n", "\r\nOK\r\n")
	return b
}

func (b *ScriptBuilder) Server() *ScriptBuilder {
	b.transport.Expect("AT+CIPSERVER=1,", "\r\nOK\r\n")
	return b
}

// Init queues the full initialization sequence without an access point join.
func (b *ScriptBuilder) Init() *ScriptBuilder {
	return b.AT().EchoOff().StationMode().Mux().Server()
}

// Send queues a successful two-phase send whose payload starts with prefix.
func (b *ScriptBuilder) Send(prefix string) *ScriptBuilder {
	b.transport.Expect("AT+CIPSEND=", "\r\nOK\r\n> ")
	b.transport.Expect(prefix, "\r\nRecv bytes\r\n\r\nSEND OK\r\n")
	return b
}

// newTestModem returns an initialized modem backed by a TestTransport.
// Extra builder settings are applied by configure.
func newTestModem(t *testing.T, configure func(*modem.ConfigBuilder)) (*modem.Modem, *modem.TestTransport) {
	t.Helper()
	ctrl := gomock.NewController(t)

	transport := modem.NewTestTransport()
	NewScript(transport).Init()

	dialer := modem.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	b := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithATTimeout(time.Second)
	if configure != nil {
		configure(b)
	}
	config, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, transport
}

// waitAvailable blocks until the receive pump has stored n bytes.
func waitAvailable(t *testing.T, m *modem.Modem, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for m.Source().Available() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d bytes, have %d", n, m.Source().Available())
		}
		time.Sleep(time.Millisecond)
	}
}
