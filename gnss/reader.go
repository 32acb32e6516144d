// Package gnss runs an external NMEA reader and serves its last
// navigation state.
package gnss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds one reader run.
const DefaultTimeout = 2500 * time.Millisecond

// Nav is the reader's navigation state, decoded as a generic JSON object.
type Nav map[string]any

// Reader invokes the reader command once per Read and patches frames that
// lack satellite data with the last good satellite view.
type Reader struct {
	command []string
	dir     string
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	lastSats map[string]any
}

// NewReader creates a Reader running command (program and arguments) in
// dir. A non-positive timeout uses DefaultTimeout.
func NewReader(command []string, dir string, timeout time.Duration, logger *slog.Logger) *Reader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{command: command, dir: dir, timeout: timeout, logger: logger}
}

// Read runs the reader once. Unless verbose is set the "raw" NMEA field is
// removed from the result.
func (r *Reader) Read(ctx context.Context, verbose bool) (Nav, error) {
	nav, err := r.run(ctx)
	if err != nil {
		return nil, err
	}

	r.patchSatellites(nav)
	if !verbose {
		delete(nav, "raw")
	}
	return nav, nil
}

func (r *Reader) run(ctx context.Context) (Nav, error) {
	if len(r.command) == 0 {
		return nil, ErrNoCommand
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	cmd.Dir = r.dir
	cmd.WaitDelay = 100 * time.Millisecond
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("GNSS reader timed out", "timeout", r.timeout)
		return nil, ErrReaderTimeout
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrReaderFailed, detail)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}

	var nav Nav
	if err := json.Unmarshal(out, &nav); err != nil || nav == nil {
		return nil, ErrInvalidOutput
	}
	return nav, nil
}

// patchSatellites remembers a valid satellite view with satellites in view
// and substitutes it into frames without one.
func (r *Reader) patchSatellites(nav Nav) {
	sats, _ := nav["satellites"].(map[string]any)
	valid, _ := sats["valid"].(bool)
	inView, _ := sats["in_view"].(float64)

	r.mu.Lock()
	defer r.mu.Unlock()

	if valid && inView > 0 {
		list := sats["list"]
		if list == nil {
			list = []any{}
		}
		r.lastSats = map[string]any{
			"in_use":  sats["in_use"],
			"in_view": sats["in_view"],
			"list":    list,
			"valid":   true,
		}
		return
	}
	if r.lastSats != nil {
		nav["satellites"] = maps.Clone(r.lastSats)
	}
}
