package modem

import (
	"fmt"
	"time"
)

// recover runs the reconnect cycle after cause, an I/O failure on the link.
//
// The link is closed at once. For each step of the backoff schedule the
// device is re-resolved and reopened, polling for at most the step's
// duration, and the command is retried exactly once. The first successful
// retry ends the cycle. When every step fails the link stays closed and the
// last error is returned wrapped in ErrRecoveryExhausted.
func (m *Modem) recover(cmd string, deadline time.Duration, cause error) ([]string, error) {
	m.logger.Warn("Serial I/O error, attempting reconnect",
		"device", m.label(), "command", cmd, "error", cause)
	m.reset()

	last := cause
	for i, wait := range m.config.backoff {
		if err := m.reopen(wait); err != nil {
			last = err
			m.logger.Warn("Reconnect attempt failed", "step", i+1, "wait", wait, "error", err)
			if m.ctx.Err() != nil {
				break
			}
			continue
		}

		m.logger.Info("Serial port reconnected, retrying command",
			"device", m.label(), "step", i+1, "wait", wait, "command", cmd)

		lines, err := m.exchange(cmd, deadline)
		if err == nil {
			m.statusMu.Lock()
			m.status.Reconnects++
			m.statusMu.Unlock()
			return lines, nil
		}

		last = err
		m.logger.Warn("Retry after reconnect failed", "step", i+1, "wait", wait, "error", err)
		m.reset()
	}

	return nil, fmt.Errorf("%w on %s: %w", ErrRecoveryExhausted, m.label(), last)
}

// reopen tries to open the link immediately and then every poll interval
// until wait has elapsed, returning the last open error on expiry.
func (m *Modem) reopen(wait time.Duration) error {
	until := time.Now().Add(wait)
	for {
		err := m.open()
		if err == nil {
			return nil
		}

		remaining := time.Until(until)
		if remaining <= 0 {
			return err
		}

		timer := time.NewTimer(min(m.config.pollInterval, remaining))
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", err, m.ctx.Err())
		case <-timer.C:
		}
	}
}
