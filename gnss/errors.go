package gnss

import "errors"

var (
	// ErrNoCommand is returned when the reader has no command configured
	ErrNoCommand = errors.New("gnss: reader command is not configured")

	// ErrReaderTimeout is returned when the reader does not exit in time
	ErrReaderTimeout = errors.New("GNSS reader timeout")

	// ErrReaderFailed is returned when the reader exits with a non-zero status
	ErrReaderFailed = errors.New("GNSS reader error")

	// ErrEmptyOutput is returned when the reader prints nothing
	ErrEmptyOutput = errors.New("GNSS reader returned empty output")

	// ErrInvalidOutput is returned when the reader output is not a JSON object
	ErrInvalidOutput = errors.New("invalid GNSS JSON output")
)
