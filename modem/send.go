package modem

import (
	"context"
	"fmt"

	"i4.energy/across/wifigw/at"
)

// Send transmits payload on connection id.
//
// Each chunk of at most the configured send size is a two-phase exchange:
// AT+CIPSEND announces the length and must be answered by the ">" prompt,
// then the raw bytes are written and SEND OK is awaited. Any failure is
// reported wrapped in ErrSendFailed; bytes already accepted by the modem are
// not resent.
func (m *Modem) Send(ctx context.Context, id int, payload []byte) error {
	for off := 0; off < len(payload); off += m.config.maxSendChunk {
		chunk := payload[off:min(off+m.config.maxSendChunk, len(payload))]
		if err := m.sendChunk(ctx, at.Send(id, len(chunk)), chunk); err != nil {
			return fmt.Errorf("%w: link %d, offset %d: %w", ErrSendFailed, id, off, err)
		}
	}
	return nil
}

// SendTo transmits one datagram on UDP link id to ip:port. An empty ip
// sends to the link's current remote end.
func (m *Modem) SendTo(ctx context.Context, id int, ip string, port int, payload []byte) error {
	if len(payload) > m.config.maxSendChunk {
		return fmt.Errorf("%w: %w: %d bytes", ErrSendFailed, ErrPayloadTooLarge, len(payload))
	}
	cmd := at.Send(id, len(payload))
	if ip != "" {
		cmd = at.SendTo(id, len(payload), ip, port)
	}
	if err := m.sendChunk(ctx, cmd, payload); err != nil {
		return fmt.Errorf("%w: link %d to %s:%d: %w", ErrSendFailed, id, ip, port, err)
	}
	return nil
}

func (m *Modem) sendChunk(ctx context.Context, prepare string, chunk []byte) error {
	if _, err := m.Exec(ctx, prepare, at.Prompt, m.config.atTimeout); err != nil {
		return err
	}

	if _, err := m.transport.Write(chunk); err != nil {
		return fmt.Errorf("%w: write payload: %w", ErrTransmit, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.config.sendTimeout)
	defer cancel()
	m.acc.Reset()
	if resp, err := m.await(sendCtx, at.SendOK); err != nil {
		m.logger.Debug("send not confirmed", "response", resp, "error", err)
		return err
	}
	return nil
}
