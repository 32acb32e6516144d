package nvr

import "errors"

var (
	// ErrDisabled is returned when the NVR integration is switched off
	ErrDisabled = errors.New("NVR integration disabled")

	// ErrInvalidProfile is returned for an HLS profile other than sub or main
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrUpstream is returned when the NVR answers with an error status
	ErrUpstream = errors.New("NVR upstream error")
)
