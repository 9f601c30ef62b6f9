package modem

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"i4.energy/across/wifigw/at"
)

// Link states reported by AT+CIPSTATUS.
const (
	StatusGotIP        = 2
	StatusConnected    = 3
	StatusDisconnected = 4
	StatusNoAP         = 5
)

// Status is the parsed reply of AT+CIPSTATUS.
type Status struct {
	Code  int
	Links []Link
}

// Link describes one open connection.
type Link struct {
	ID         int
	Proto      string
	RemoteIP   string
	RemotePort int
	LocalPort  int
	Server     bool
}

// Join connects to an access point, waiting up to the join timeout.
func (m *Modem) Join(ctx context.Context, ssid, password string) error {
	resp, err := m.Exec(ctx, at.JoinAP(ssid, password), at.OK, m.config.joinTimeout)
	if err != nil {
		return fmt.Errorf("join %q: %w", ssid, err)
	}
	m.logger.Info("joined access point", "ssid", ssid, "response", strings.Join(at.Lines(resp), " "))
	return nil
}

// StartServer starts the listening TCP server.
func (m *Modem) StartServer(ctx context.Context, port int) error {
	if err := m.expectOk(ctx, at.StartServer(port)); err != nil {
		return fmt.Errorf("start server on port %d: %w", port, err)
	}
	return nil
}

// StopServer stops the listening TCP server.
func (m *Modem) StopServer(ctx context.Context) error {
	if err := m.expectOk(ctx, at.CmdStopSrv); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

// CloseConn closes connection id. A link the peer already closed is not an
// error.
func (m *Modem) CloseConn(ctx context.Context, id int) error {
	resp, err := m.Exec(ctx, at.CloseConn(id), at.OK, m.config.atTimeout)
	if err != nil && errors.Is(err, ErrCommandFailed) && (strings.Contains(resp, "UNLINK") || strings.Contains(resp, "link is not")) {
		return nil
	}
	return err
}

// ShowRemote makes the modem report the sender of every +IPD frame.
func (m *Modem) ShowRemote(ctx context.Context, on bool) error {
	if err := m.expectOk(ctx, at.RemoteInfo(on)); err != nil {
		return fmt.Errorf("remote info: %w", err)
	}
	return nil
}

// OpenUDP opens UDP link id bound to localPort. The remote end follows
// every received datagram.
func (m *Modem) OpenUDP(ctx context.Context, id int, remote string, remotePort, localPort int) error {
	if err := m.expectOk(ctx, at.StartUDP(id, remote, remotePort, localPort, 2)); err != nil {
		return fmt.Errorf("open UDP link %d: %w", id, err)
	}
	return nil
}

// Status queries the connection status.
func (m *Modem) Status(ctx context.Context) (Status, error) {
	resp, err := m.Exec(ctx, at.CmdStatus, at.OK, m.config.atTimeout)
	if err != nil {
		return Status{}, err
	}
	return parseStatus(resp)
}

// LocalAddress returns the station IP address assigned to the modem.
func (m *Modem) LocalAddress(ctx context.Context) (netip.Addr, error) {
	resp, err := m.Exec(ctx, at.CmdAddress, at.OK, m.config.atTimeout)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, line := range at.Lines(resp) {
		if v, ok := strings.CutPrefix(line, at.RespStaIP); ok {
			addr, err := netip.ParseAddr(strings.Trim(v, `"`))
			if err != nil {
				return netip.Addr{}, fmt.Errorf("parse station address %q: %w", v, err)
			}
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("no station address in %q", resp)
}

func parseStatus(resp string) (Status, error) {
	var st Status
	seen := false
	for _, line := range at.Lines(resp) {
		switch {
		case strings.HasPrefix(line, at.RespStatus):
			code, err := strconv.Atoi(strings.TrimPrefix(line, at.RespStatus))
			if err != nil {
				return Status{}, fmt.Errorf("parse status %q: %w", line, err)
			}
			st.Code = code
			seen = true
		case strings.HasPrefix(line, at.RespConn):
			l, err := parseLink(strings.TrimPrefix(line, at.RespConn))
			if err != nil {
				return Status{}, err
			}
			st.Links = append(st.Links, l)
		}
	}
	if !seen {
		return Status{}, fmt.Errorf("no status line in %q", resp)
	}
	return st, nil
}

// parseLink parses `0,"TCP","192.168.1.20",51234,80,1`.
func parseLink(s string) (Link, error) {
	f := strings.Split(s, ",")
	if len(f) < 6 {
		return Link{}, fmt.Errorf("parse link %q: want 6 fields, got %d", s, len(f))
	}
	var (
		l   Link
		err error
	)
	if l.ID, err = strconv.Atoi(f[0]); err != nil {
		return Link{}, fmt.Errorf("parse link id %q: %w", f[0], err)
	}
	l.Proto = strings.Trim(f[1], `"`)
	l.RemoteIP = strings.Trim(f[2], `"`)
	if l.RemotePort, err = strconv.Atoi(f[3]); err != nil {
		return Link{}, fmt.Errorf("parse remote port %q: %w", f[3], err)
	}
	if l.LocalPort, err = strconv.Atoi(f[4]); err != nil {
		return Link{}, fmt.Errorf("parse local port %q: %w", f[4], err)
	}
	l.Server = f[5] == "1"
	return l, nil
}
