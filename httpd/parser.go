// Package httpd is the minimal HTTP layer served over modem links: a
// request-line parser, an exact-match router and a response builder that
// hands complete responses to the modem's two-phase send.
package httpd

import (
	"bytes"
	"errors"
	"strings"
)

var ErrParse = errors.New("httpd: malformed request line")

// Limits bound each parsed field. Longer values are truncated.
type Limits struct {
	Method int
	Path   int
	Query  int
	Header int
}

var DefaultLimits = Limits{
	Method: 8,
	Path:   64,
	Query:  128,
	Header: 1024,
}

var crlf = []byte("\r\n")

// Request is a parsed request. The header block is kept verbatim; handlers
// search it rather than reading a header map.
type Request struct {
	ConnID int
	Method string
	Path   string
	Query  string
	Proto  string
	// Raw is everything after the request line, body included.
	Raw string
	// Truncated is set when a field hit its limit or the frame itself was
	// cut short.
	Truncated bool
}

func Parse(raw []byte) (*Request, error) {
	return ParseLimits(raw, DefaultLimits)
}

// ParseLimits splits the request line at its first two spaces and the
// target at its first '?'.
func ParseLimits(raw []byte, lim Limits) (*Request, error) {
	end := bytes.Index(raw, crlf)
	if end < 0 {
		return nil, ErrParse
	}
	line := raw[:end]

	sp := bytes.IndexByte(line, ' ')
	if sp <= 0 {
		return nil, ErrParse
	}
	method, rest := line[:sp], line[sp+1:]
	sp = bytes.IndexByte(rest, ' ')
	if sp <= 0 {
		return nil, ErrParse
	}
	target, proto := rest[:sp], rest[sp+1:]

	var query []byte
	if q := bytes.IndexByte(target, '?'); q >= 0 {
		target, query = target[:q], target[q+1:]
	}

	r := &Request{Proto: string(proto)}
	r.Method = r.bounded(method, lim.Method)
	r.Path = r.bounded(target, lim.Path)
	r.Query = r.bounded(query, lim.Query)
	r.Raw = r.bounded(raw[end+len(crlf):], lim.Header)
	return r, nil
}

func (r *Request) bounded(b []byte, limit int) string {
	if limit > 0 && len(b) > limit {
		r.Truncated = true
		b = b[:limit]
	}
	return string(b)
}

// Header returns the value of the first header line named name, compared
// case-insensitively, or "".
func (r *Request) Header(name string) string {
	block := r.Raw
	if i := strings.Index(block, "\r\n\r\n"); i >= 0 {
		block = block[:i]
	}
	for line := range strings.SplitSeq(block, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Body returns what followed the blank line, as far as it was received.
func (r *Request) Body() string {
	if i := strings.Index(r.Raw, "\r\n\r\n"); i >= 0 {
		return r.Raw[i+4:]
	}
	return ""
}

// Contains reports whether token occurs anywhere after the request line.
func (r *Request) Contains(token string) bool {
	return strings.Contains(r.Raw, token)
}

// Param returns the first value of key in the query string. Values are not
// unescaped.
func (r *Request) Param(key string) string {
	for pair := range strings.SplitSeq(r.Query, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == key {
			return v
		}
	}
	return ""
}
