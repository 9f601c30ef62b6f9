package at_test

import (
	"bufio"
	"slices"
	"strings"
	"testing"

	"i4.energy/across/wifigw/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Simple status query",
			input:    "STATUS:3\r\n+CIPSTATUS:0,\"TCP\",\"192.168.1.20\",51234,80,1\r\nOK\r\n",
			expected: []string{"STATUS:3", "+CIPSTATUS:0,\"TCP\",\"192.168.1.20\",51234,80,1", "OK"},
		},
		{
			name:     "Command error",
			input:    "\r\nERROR\r\n",
			expected: []string{"", "ERROR"},
		},
		{
			name:     "Send sequence",
			input:    "\r\nOK\r\n> \r\nRecv 10 bytes\r\n\r\nSEND OK\r\n",
			expected: []string{"", "OK", ">", "", "Recv 10 bytes", "", "SEND OK"},
		},
		{
			name:     "Join with notifications",
			input:    "WIFI CONNECTED\r\nWIFI GOT IP\r\n\r\nOK\r\n",
			expected: []string{"WIFI CONNECTED", "WIFI GOT IP", "", "OK"},
		},
		{
			name:     "Address query",
			input:    "+CIFSR:STAIP,\"192.168.1.5\"\r\n+CIFSR:STAMAC,\"5c:cf:7f:00:00:01\"\r\n\r\nOK\r\n",
			expected: []string{"+CIFSR:STAIP,\"192.168.1.5\"", "+CIFSR:STAMAC,\"5c:cf:7f:00:00:01\"", "", "OK"},
		},
		{
			name:     "Prompt only",
			input:    "> ",
			expected: []string{">"},
		},
		{
			name:     "Bare prompt at EOF",
			input:    "OK\r\n>",
			expected: []string{"OK", ">"},
		},
		{
			name:     "Incomplete line at EOF",
			input:    "0,CONNECT\r\nbusy",
			expected: []string{"0,CONNECT", "busy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if !slices.Equal(tokens, tt.expected) {
				t.Fatalf("Expected %q, got %q", tt.expected, tokens)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.ResponseType
	}{
		{name: "OK response", input: "OK", expected: at.TypeFinal},
		{name: "ERROR response", input: "ERROR", expected: at.TypeFinal},
		{name: "Send confirmation", input: "SEND OK", expected: at.TypeFinal},
		{name: "Send failure", input: "SEND FAIL", expected: at.TypeFinal},
		{name: "Join failure", input: "FAIL", expected: at.TypeFinal},

		{name: "Boot banner", input: "ready", expected: at.TypeURC},
		{name: "Got IP", input: "WIFI GOT IP", expected: at.TypeURC},
		{name: "Peer connected", input: "0,CONNECT", expected: at.TypeURC},
		{name: "Peer closed", input: "3,CLOSED", expected: at.TypeURC},

		{name: "Status line", input: "STATUS:3", expected: at.TypeData},
		{name: "Station IP", input: "+CIFSR:STAIP,\"192.168.1.5\"", expected: at.TypeData},
		{name: "Firmware version", input: "AT version:1.7.4.0", expected: at.TypeData},

		{name: "Inbound frame", input: "+IPD,0,18:GET / HTTP/1.1", expected: at.TypeFrame},
		{name: "Send prompt", input: ">", expected: at.TypePrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.Classify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{at.SetMode(at.ModeStation), "AT+CWMODE=1"},
		{at.JoinAP("home", "pa,ss\"1"), `AT+CWJAP="home","pa\,ss\"1"`},
		{at.StartServer(80), "AT+CIPSERVER=1,80"},
		{at.Send(1, 10), "AT+CIPSEND=1,10"},
		{at.SendTo(4, 120, "192.168.1.9", 1900), `AT+CIPSEND=4,120,"192.168.1.9",1900`},
		{at.CloseConn(2), "AT+CIPCLOSE=2"},
		{at.StartUDP(4, "239.255.255.250", 1900, 1900, 2), `AT+CIPSTART=4,"UDP","239.255.255.250",1900,1900,2`},
		{at.ServerTimeout(10), "AT+CIPSTO=10"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, tt.got)
		}
	}
}

func TestLines(t *testing.T) {
	got := at.Lines("\r\n+CIFSR:STAIP,\"10.0.0.2\"\r\n\r\nOK\r\n")
	want := []string{"+CIFSR:STAIP,\"10.0.0.2\"", "OK"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}
