package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoDevicePath is returned by the config builder when no preferred
	// device path was configured.
	ErrNoDevicePath = errors.New("no device path configured")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by Execute after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrDeviceNotFound is returned when neither the preferred path, the
	// remembered interface identity nor a suffix scan yields a device node.
	//
	// It is never retried: backoff only applies to a link that was open.
	ErrDeviceNotFound = errors.New("modem device not found")

	// ErrOpenFailed is returned when a device node was resolved but could not
	// be opened.
	ErrOpenFailed = errors.New("open serial port")

	// ErrProtocolTimeout is returned when no byte arrived before the call
	// deadline. The link may be healthy, so the command is not retried.
	ErrProtocolTimeout = errors.New("no response from modem")

	// ErrIncompleteResponse is returned when bytes arrived but no terminal
	// marker was seen before the deadline. Not retried.
	ErrIncompleteResponse = errors.New("AT response incomplete or timed out")

	// ErrLinkIO wraps read, write and flush failures on the serial link.
	//
	// It triggers the reconnect cycle inside Execute and is only returned to
	// callers wrapped in ErrRecoveryExhausted.
	ErrLinkIO = errors.New("serial I/O error")

	// ErrRecoveryExhausted is returned when every backoff step failed to
	// restore a working link. The link stays closed and the next call starts
	// resolution from scratch.
	ErrRecoveryExhausted = errors.New("serial I/O error after reconnect attempts")

	// ErrEmptyResponse is returned when framing succeeded but produced no
	// lines at all.
	ErrEmptyResponse = errors.New("empty response")
)
