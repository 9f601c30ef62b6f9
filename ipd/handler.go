package ipd

import "context"

//go:generate go tool mockgen -source=handler.go -destination=mock_handler.go -package=ipd

// Frame is one inbound payload. Payload aliases the demultiplexer's staging
// buffer and is only valid for the duration of ServeFrame.
type Frame struct {
	Header
	Payload []byte
	// Truncated is set when the declared length did not fit the staging
	// buffer. Payload then holds the prefix that did.
	Truncated bool
}

// Handler consumes frames.
type Handler interface {
	ServeFrame(ctx context.Context, f Frame)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, f Frame)

func (fn HandlerFunc) ServeFrame(ctx context.Context, f Frame) { fn(ctx, f) }

// Source is the consumer side of the receive ring.
type Source interface {
	Drain(dst []byte) int
}
