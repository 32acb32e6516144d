package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"i4.energy/across/linkstation/at"
)

// Modem owns the single serial link to a cellular modem's AT interface and
// serializes every command exchange on it.
//
// The link is opened lazily on the first Execute and reopened after a
// reconnect cycle. Callers never touch the Port directly: Execute is the
// only operation that writes to or reads from it.
type Modem struct {
	// config contains the transport settings
	config Config
	// resolver picks the device node on every (re)open
	resolver *Resolver
	// logger is the component logger
	logger *slog.Logger

	// sem is a one-slot semaphore held for one whole Execute, including
	// any reconnect cycle.
	sem chan struct{}
	// port is the open link, nil when closed. Guarded by sem.
	port Port
	// closed indicates if the modem has been shut down. Guarded by sem.
	closed bool

	// ctx is cancelled by Close and aborts reconnect waits.
	ctx    context.Context
	cancel context.CancelFunc

	statusMu sync.Mutex
	status   Status
}

// Status is a point-in-time view of the link, safe to read while a command
// is in flight.
type Status struct {
	PreferredPath   string    `json:"preferred_path"`
	Device          string    `json:"device,omitempty"`
	InterfaceID     string    `json:"interface_id,omitempty"`
	InterfaceSuffix string    `json:"interface_suffix,omitempty"`
	BaudRate        int       `json:"baudrate"`
	Open            bool      `json:"open"`
	Closed          bool      `json:"closed"`
	Reconnects      int       `json:"reconnects"`
	Commands        uint64    `json:"commands"`
	LastError       string    `json:"last_error,omitempty"`
	LastErrorAt     time.Time `json:"last_error_at,omitzero"`
	LastSuccessAt   time.Time `json:"last_success_at,omitzero"`
}

// New creates a Modem from config. The link is not opened until the first
// Execute. Cancelling ctx aborts any reconnect wait in progress.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.topology == nil {
		config.topology = NewSysfsTopology()
	}
	if config.logger == nil {
		config.logger = slog.New(slog.DiscardHandler)
	}

	m := &Modem{
		config:   config,
		resolver: NewResolver(config.devicePath, config.interfaceSuffix, config.topology, config.logger),
		logger:   config.logger,
		sem:      make(chan struct{}, 1),
		status: Status{
			PreferredPath:   config.devicePath,
			InterfaceSuffix: config.interfaceSuffix,
			BaudRate:        config.baudRate,
		},
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	return m, nil
}

// Execute sends command to the modem and returns the raw response lines,
// including the echo and the terminal marker.
//
// ctx bounds only the wait for exclusive access; once the link is held the
// exchange runs to completion. deadline bounds the read of a single
// exchange and defaults to the configured deadline when zero.
//
// A timeout or incomplete response is returned as is. An I/O failure starts
// the reconnect cycle, which retries the command once per backoff step.
func (m *Modem) Execute(ctx context.Context, command string, deadline time.Duration) ([]string, error) {
	if deadline <= 0 {
		deadline = m.config.deadline
	}

	// select picks randomly between ready cases; a caller that already gave
	// up must never reach the link.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("waiting for modem: %w", err)
	}
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for modem: %w", ctx.Err())
	}
	defer func() { <-m.sem }()

	if m.closed {
		return nil, ErrAlreadyClosed
	}

	lines, err := m.attempt(command, deadline)
	if errors.Is(err, ErrLinkIO) {
		lines, err = m.recover(command, deadline, err)
	}
	m.record(err)
	return lines, err
}

// Status returns the current link status without waiting for an in-flight
// command.
func (m *Modem) Status() Status {
	identity, suffix := m.resolver.Identity()

	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	s := m.status
	s.InterfaceID = identity
	s.InterfaceSuffix = suffix
	return s
}

// Resolver exposes the device resolver, mainly for diagnostics.
func (m *Modem) Resolver() *Resolver {
	return m.resolver
}

// Close shuts down the modem and releases the link. It waits for an
// in-flight command to finish. After calling Close(), the modem cannot be
// reused.
func (m *Modem) Close() error {
	m.cancel()
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	var err error
	if m.port != nil {
		err = m.port.Close()
		m.port = nil
	}

	m.statusMu.Lock()
	m.status.Open = false
	m.status.Closed = true
	m.statusMu.Unlock()

	m.logger.Info("Modem closed", "device", m.label())
	return err
}

// attempt opens the link if needed and runs one exchange.
func (m *Modem) attempt(cmd string, deadline time.Duration) ([]string, error) {
	if m.port == nil {
		if err := m.open(); err != nil {
			return nil, err
		}
	}
	return m.exchange(cmd, deadline)
}

// exchange discards residual input, writes cmd and frames the response.
func (m *Modem) exchange(cmd string, deadline time.Duration) ([]string, error) {
	if err := m.port.ResetInputBuffer(); err != nil {
		m.logger.Debug("Failed to reset input buffer", "device", m.label(), "error", err)
	}

	wire := strings.TrimRight(cmd, " \t\r\n") + at.CRLF
	if _, err := m.port.Write([]byte(wire)); err != nil {
		return nil, fmt.Errorf("%w: write %q: %w", ErrLinkIO, cmd, err)
	}
	if err := m.port.Drain(); err != nil {
		return nil, fmt.Errorf("%w: flush %q: %w", ErrLinkIO, cmd, err)
	}

	lines, err := readResponse(m.port, deadline, m.config.idleSleep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: %w", cmd, ErrEmptyResponse)
	}
	return lines, nil
}

// open resolves the device node, dials it and remembers its interface.
func (m *Modem) open() error {
	path, err := m.resolver.Resolve()
	if err != nil {
		return err
	}

	port, err := m.config.dialer.Dial(m.ctx, path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOpenFailed, path, err)
	}

	m.port = port
	m.resolver.Remember(path)

	m.statusMu.Lock()
	m.status.Device = path
	m.status.Open = true
	m.statusMu.Unlock()

	m.logger.Info("Serial port opened", "device", path, "baud", m.config.baudRate)
	return nil
}

// reset closes the link, ignoring close errors. The next attempt reopens it.
func (m *Modem) reset() {
	if m.port == nil {
		return
	}
	if err := m.port.Close(); err != nil {
		m.logger.Debug("Failed to close serial port", "device", m.label(), "error", err)
	}
	m.port = nil

	m.statusMu.Lock()
	m.status.Open = false
	m.statusMu.Unlock()

	m.logger.Info("Serial port reset", "device", m.label())
}

func (m *Modem) record(err error) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status.Commands++
	if err != nil {
		m.status.LastError = err.Error()
		m.status.LastErrorAt = time.Now()
		return
	}
	m.status.LastSuccessAt = time.Now()
}

// label returns the active device, or the preferred path when none is open.
func (m *Modem) label() string {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if m.status.Device != "" {
		return m.status.Device
	}
	return m.config.devicePath
}
