package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing ESP-AT command responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the CIPSEND input prompt ("> ").
//
// It assumes "No Echo" mode (ATE0). Inbound +IPD payloads are not line
// oriented and must be taken out by the frame demultiplexer before the
// remaining text is split.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match send prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		n := len(Prompt)
		if len(data) > n && data[n] == ' ' {
			n++
		}
		return n, data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, FAIL, SendOK, SendFail, RespAlready, RespNoChange:
		return TypeFinal
	case Ready, UrcWifiConnected, UrcWifiGotIP, UrcWifiDisconn:
		return TypeURC
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, IPDMarker):
		return TypeFrame
	case strings.HasSuffix(line, UrcConnect), strings.HasSuffix(line, UrcClosed):
		return TypeURC
	default:
		return TypeData
	}
}

// Lines splits a complete command response into its non-empty lines.
func Lines(resp string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(resp))
	sc.Split(Splitter)
	for sc.Scan() {
		if tok := sc.Text(); tok != "" {
			lines = append(lines, tok)
		}
	}
	return lines
}
