// Package ipd demultiplexes inbound network payloads out of the ESP-AT
// byte stream.
//
// The modem announces received data in band:
//
//	+IPD,<id>,<len>:<len bytes>
//	+IPD,<id>,<len>,"<remote ip>",<remote port>:<len bytes>   (AT+CIPDINFO=1)
//
// interleaved with command replies and notifications. Demux stages the
// stream, finds markers, validates them and hands complete payloads to a
// Handler.
package ipd

import (
	"bytes"
	"errors"

	"i4.energy/across/wifigw/at"
)

const (
	// MaxConnID is the highest link id the parser accepts. ESP-AT uses
	// single digit ids.
	MaxConnID = 9
	// MaxLength bounds the declared payload length.
	MaxLength = 1<<16 - 1

	maxLenDigits  = 5
	maxPortDigits = 5
	maxAddrLen    = 45
)

var (
	// ErrIncomplete means the buffer ends inside a header; more bytes are
	// needed before it can be judged.
	ErrIncomplete = errors.New("incomplete frame header")
	// ErrMalformed means the bytes at the marker are not a valid header.
	ErrMalformed = errors.New("malformed frame header")
	// ErrBacklogFull is returned by Demux.Write when spilled bytes did not
	// fit the backlog.
	ErrBacklogFull = errors.New("spill backlog full")
)

var (
	marker    = []byte(at.IPDMarker)
	blankLine = []byte("\r\n\r\n")
)

// Header is the parsed frame announcement.
type Header struct {
	ConnID int
	Length int
	// RemoteIP and RemotePort are only set when the modem reports the
	// sender (AT+CIPDINFO=1).
	RemoteIP   string
	RemotePort int
}

// ParseHeader parses the header at the start of b and returns it with the
// number of bytes it occupies, including the colon.
func ParseHeader(b []byte) (Header, int, error) {
	if len(b) < len(marker) {
		if bytes.HasPrefix(marker, b) {
			return Header{}, 0, ErrIncomplete
		}
		return Header{}, 0, ErrMalformed
	}
	if !bytes.HasPrefix(b, marker) {
		return Header{}, 0, ErrMalformed
	}

	var h Header
	i := len(marker)

	id, i, _, err := number(b, i, 1, ",")
	if err != nil {
		return Header{}, 0, err
	}
	h.ConnID = id

	n, i, delim, err := number(b, i, maxLenDigits, ":,")
	if err != nil {
		return Header{}, 0, err
	}
	if n == 0 || n > MaxLength {
		return Header{}, 0, ErrMalformed
	}
	h.Length = n
	if delim == ':' {
		return h, i, nil
	}

	ip, i, err := quoted(b, i)
	if err != nil {
		return Header{}, 0, err
	}
	port, i, _, err := number(b, i, maxPortDigits, ":")
	if err != nil {
		return Header{}, 0, err
	}
	if port > 65535 {
		return Header{}, 0, ErrMalformed
	}
	h.RemoteIP = ip
	h.RemotePort = port
	return h, i, nil
}

// number reads up to maxDigits decimal digits at b[i:] followed by one of
// delims. It returns the value, the index after the delimiter and the
// delimiter itself.
func number(b []byte, i, maxDigits int, delims string) (int, int, byte, error) {
	v, digits := 0, 0
	for ; i < len(b); i++ {
		c := b[i]
		switch {
		case c >= '0' && c <= '9':
			if digits == maxDigits {
				return 0, 0, 0, ErrMalformed
			}
			v = v*10 + int(c-'0')
			digits++
		case digits > 0 && bytes.IndexByte([]byte(delims), c) >= 0:
			return v, i + 1, c, nil
		default:
			return 0, 0, 0, ErrMalformed
		}
	}
	return 0, 0, 0, ErrIncomplete
}

// quoted reads `"<addr>",` at b[i:].
func quoted(b []byte, i int) (string, int, error) {
	if i == len(b) {
		return "", 0, ErrIncomplete
	}
	if b[i] != '"' {
		return "", 0, ErrMalformed
	}
	start := i + 1
	for i = start; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '"':
			if i == start {
				return "", 0, ErrMalformed
			}
			if i+1 == len(b) {
				return "", 0, ErrIncomplete
			}
			if b[i+1] != ',' {
				return "", 0, ErrMalformed
			}
			return string(b[start:i]), i + 2, nil
		case i-start == maxAddrLen, !addrByte(c):
			return "", 0, ErrMalformed
		}
	}
	return "", 0, ErrIncomplete
}

func addrByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' || c == '.' || c == ':'
}
