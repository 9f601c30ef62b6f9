package at

import (
	"fmt"
	"strconv"
)

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = ">"

	// Response Codes
	OK       = "OK"
	ERROR    = "ERROR"
	FAIL     = "FAIL"
	SendOK   = "SEND OK"
	SendFail = "SEND FAIL"
	Ready    = "ready"
	Busy     = "busy p..."

	// DefaultTerminator is awaited when a command names no terminator.
	DefaultTerminator = OK

	// IPDMarker announces inbound network payload: +IPD,<id>,<len>:<bytes>
	IPDMarker = "+IPD,"

	// Asynchronous notifications
	UrcWifiConnected = "WIFI CONNECTED"
	UrcWifiGotIP     = "WIFI GOT IP"
	UrcWifiDisconn   = "WIFI DISCONNECT"
	UrcConnect       = ",CONNECT"
	UrcClosed        = ",CLOSED"

	// Query responses
	RespStatus   = "STATUS:"
	RespConn     = "+CIPSTATUS:"
	RespStaIP    = "+CIFSR:STAIP,"
	RespStaMAC   = "+CIFSR:STAMAC,"
	RespApIP     = "+CIFSR:APIP,"
	RespAlready  = "ALREADY CONNECTED"
	RespNoChange = "no change"
)

// Wi-Fi modes for AT+CWMODE.
const (
	ModeStation = 1
	ModeAP      = 2
	ModeBoth    = 3
)

// Basic commands
const (
	CmdAt       = "AT"
	CmdEchoOff  = "ATE0"
	CmdReset    = "AT+RST"
	CmdStatus   = "AT+CIPSTATUS"
	CmdAddress  = "AT+CIFSR"
	CmdMuxOn    = "AT+CIPMUX=1"
	CmdMuxOff   = "AT+CIPMUX=0"
	CmdStopSrv  = "AT+CIPSERVER=0"
	CmdQuitAP   = "AT+CWQAP"
	CmdVersion  = "AT+GMR"
	CmdSetMode  = "AT+CWMODE="
	CmdJoinAP   = "AT+CWJAP="
	CmdServer   = "AT+CIPSERVER=1,"
	CmdSend     = "AT+CIPSEND="
	CmdClose    = "AT+CIPCLOSE="
	CmdStart    = "AT+CIPSTART="
	CmdSrvTimeo = "AT+CIPSTO="
	CmdIPDInfo  = "AT+CIPDINFO="
)

// SetMode selects station, soft-AP or combined mode.
func SetMode(mode int) string {
	return CmdSetMode + strconv.Itoa(mode)
}

// JoinAP joins an access point. Quotes, commas and backslashes in the
// credentials are escaped as ESP-AT requires.
func JoinAP(ssid, password string) string {
	return fmt.Sprintf(`%s"%s","%s"`, CmdJoinAP, escape(ssid), escape(password))
}

// StartServer starts the listening TCP server on port.
func StartServer(port int) string {
	return CmdServer + strconv.Itoa(port)
}

// ServerTimeout sets the idle timeout in seconds for server connections.
func ServerTimeout(seconds int) string {
	return CmdSrvTimeo + strconv.Itoa(seconds)
}

// Send prepares a send of n bytes on connection id.
func Send(id, n int) string {
	return CmdSend + strconv.Itoa(id) + "," + strconv.Itoa(n)
}

// SendTo prepares a datagram send of n bytes on UDP link id to ip:port.
func SendTo(id, n int, ip string, port int) string {
	return fmt.Sprintf(`%s%d,%d,"%s",%d`, CmdSend, id, n, ip, port)
}

// RemoteInfo toggles the sender address in +IPD headers.
func RemoteInfo(on bool) string {
	if on {
		return CmdIPDInfo + "1"
	}
	return CmdIPDInfo + "0"
}

// CloseConn closes connection id.
func CloseConn(id int) string {
	return CmdClose + strconv.Itoa(id)
}

// StartUDP opens UDP link id. Mode 2 lets the remote end change with every
// received datagram, which is what a discovery responder needs.
func StartUDP(id int, remote string, remotePort, localPort, mode int) string {
	return fmt.Sprintf(`%s%d,"UDP","%s",%d,%d,%d`, CmdStart, id, remote, remotePort, localPort, mode)
}

func escape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', ',', '\\':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR, SEND OK
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CIFSR: ...)
	TypePrompt                     // CIPSEND input prompt
	TypeFrame                      // +IPD header
)
