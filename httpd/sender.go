package httpd

import "context"

//go:generate go tool mockgen -source=sender.go -destination=mock_sender.go -package=httpd

// Sender transmits a complete payload on a modem link.
type Sender interface {
	Send(ctx context.Context, connID int, payload []byte) error
}

// ConnCloser closes a modem link.
type ConnCloser interface {
	CloseConn(ctx context.Context, connID int) error
}
