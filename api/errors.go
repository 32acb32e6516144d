package api

import (
	"context"
	"errors"
	"net/http"

	"i4.energy/across/linkstation/gnss"
	"i4.energy/across/linkstation/modem"
)

var (
	// ErrGNSSDisabled is returned when no GNSS reader is configured
	ErrGNSSDisabled = errors.New("GNSS reader not configured")

	// ErrInvalidRequest is returned for malformed request bodies
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedMode is returned when a control request names a mode,
	// RAT or profile no planner knows
	ErrUnsupportedMode = errors.New("unsupported mode")
)

// statusFor maps an error kind to an HTTP status code. Recovery failures
// are checked first since they wrap the cause of the last attempt.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modem.ErrRecoveryExhausted),
		errors.Is(err, modem.ErrDeviceNotFound),
		errors.Is(err, modem.ErrOpenFailed),
		errors.Is(err, modem.ErrLinkIO),
		errors.Is(err, modem.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrProtocolTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, modem.ErrIncompleteResponse),
		errors.Is(err, modem.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, gnss.ErrReaderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrGNSSDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnsupportedMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
