package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_modem.go -package=modem i4.energy/across/linkstation/modem Port,Dialer,Topology

// Port represents an open, bidirectional byte stream to the modem's AT
// interface.
//
// Read must return (0, nil) when the per-read timeout elapses without data,
// which is how go.bug.st/serial behaves. Typical implementations are serial
// ports or in-memory fakes used for testing.
type Port interface {
	io.ReadWriteCloser
	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error
	// Drain waits until all written bytes have been transmitted.
	Drain() error
}

// Dialer opens a Port on a concrete device node.
//
// The Modem calls Dial every time it (re)opens the link, after the Resolver
// has picked the node, so a Dialer must not cache handles.
type Dialer interface {
	// Dial is responsible for creating and returning an open Port. It may
	// perform blocking operations and should respect cancellation provided
	// by the context.
	Dial(ctx context.Context, path string) (Port, error)
}

// SerialDialer opens the modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// BaudRate is used when Mode is nil. Defaults to 115200.
	BaudRate int
	// ReadTimeout bounds every single Read. Defaults to 100ms.
	ReadTimeout time.Duration
	// Mode overrides the full line settings when set.
	Mode *serial.Mode
}

// Dial opens path with 8N1 framing and a short per-read timeout.
func (d SerialDialer) Dial(ctx context.Context, path string) (Port, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if path == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	return port, nil
}
