package modem

import (
	"fmt"
	"io"
	"time"

	"i4.energy/across/linkstation/at"
)

// readChunk is the maximum number of bytes requested per Read.
const readChunk = 1024

// readResponse accumulates reads from r until the buffer contains a terminal
// marker or deadline has elapsed since the call began. It stops within one
// read of the marker appearing.
//
// At the deadline an empty buffer yields ErrProtocolTimeout and a non-empty
// one ErrIncompleteResponse. Read failures are wrapped in ErrLinkIO.
// Returned lines include the command echo and the terminal marker.
func readResponse(r io.Reader, deadline, idle time.Duration) ([]string, error) {
	start := time.Now()
	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)
	done := false

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if at.Done(buf) {
				done = true
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read: %w", ErrLinkIO, err)
		}
		if time.Since(start) >= deadline {
			break
		}
		if n == 0 {
			time.Sleep(idle)
		}
	}

	if len(buf) == 0 {
		return nil, fmt.Errorf("%w after %s", ErrProtocolTimeout, deadline)
	}
	if !done {
		return nil, fmt.Errorf("%w: got %d bytes without terminal marker", ErrIncompleteResponse, len(buf))
	}
	return at.Lines(buf), nil
}
