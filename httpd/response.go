package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"i4.energy/across/wifigw/metrics"
)

const DefaultArenaSize = 2048

var (
	ErrResponseTooLarge = errors.New("httpd: response exceeds arena")
	ErrInvalidHeader    = errors.New("httpd: line break in header value")
)

// Responder builds responses into a buffer allocated once and sends them
// over a modem link.
type Responder struct {
	sender Sender
	arena  []byte
}

func NewResponder(sender Sender, arenaSize int) *Responder {
	if arenaSize <= 0 {
		arenaSize = DefaultArenaSize
	}
	return &Responder{sender: sender, arena: make([]byte, 0, arenaSize)}
}

// Build renders status line, headers and body. The result aliases the
// arena and is overwritten by the next Build.
func (w *Responder) Build(code int, contentType string, body []byte) ([]byte, error) {
	if strings.ContainsAny(contentType, "\r\n") {
		return nil, fmt.Errorf("%w: content type %q", ErrInvalidHeader, contentType)
	}
	reason := http.StatusText(code)
	if reason == "" {
		reason = "Unknown"
	}

	b := w.arena[:0]
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, ' ')
	b = append(b, reason...)
	b = append(b, "\r\nContent-Type: "...)
	b = append(b, contentType...)
	b = append(b, "\r\nContent-Length: "...)
	b = strconv.AppendInt(b, int64(len(body)), 10)
	b = append(b, "\r\nConnection: close\r\n\r\n"...)

	if len(b)+len(body) > cap(w.arena) {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, len(b)+len(body))
	}
	return append(b, body...), nil
}

// Respond builds the response and sends it on connID.
func (w *Responder) Respond(ctx context.Context, connID, code int, contentType string, body []byte) error {
	payload, err := w.Build(code, contentType, body)
	if err != nil {
		return err
	}
	if err := w.sender.Send(ctx, connID, payload); err != nil {
		return fmt.Errorf("respond %d on link %d: %w", code, connID, err)
	}
	metrics.ResponsesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	return nil
}

// RespondJSON encodes v as the response body.
func (w *Responder) RespondJSON(ctx context.Context, connID, code int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return w.Respond(ctx, connID, code, "application/json", body)
}

// Error answers with a JSON {"message": ...} body, or an empty body when
// message is "".
func (w *Responder) Error(ctx context.Context, connID, code int, message string) error {
	if message == "" {
		return w.Respond(ctx, connID, code, "text/plain", nil)
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	return w.RespondJSON(ctx, connID, code, ErrorResponse{Message: message})
}
