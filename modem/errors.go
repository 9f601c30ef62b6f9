package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport, for example a zero Modem not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation or Close is attempted on
	// a Modem that has already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrTransmit is returned when the transport rejects a write.
	ErrTransmit = errors.New("transmit failed")

	// ErrTimeout is returned when the awaited terminator or prompt was not
	// observed before the deadline. The response returned alongside it holds
	// exactly the bytes received so far.
	ErrTimeout = errors.New("timeout waiting for modem")

	// ErrCommandFailed is returned when the modem answered with ERROR, FAIL
	// or SEND FAIL instead of the awaited terminator.
	ErrCommandFailed = errors.New("command failed")

	// ErrSendFailed wraps every failure of a payload transmission: the
	// prepare command was rejected, the prompt or the final SEND OK did not
	// arrive, or the payload write failed. Partial sends are not retried.
	ErrSendFailed = errors.New("send failed")

	// ErrPayloadTooLarge is returned by SendTo when a datagram does not fit
	// in a single send.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrNoPort is returned by SerialDialer when PortName is "auto" and no
	// USB serial adapter is present.
	ErrNoPort = errors.New("no USB serial port found")
)
