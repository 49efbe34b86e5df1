package influxdb

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotConnected is returned when the client has been closed or
	// never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when the integration is
	// switched off in config. fleetd runs fine without metrics, so
	// callers usually log this and carry on.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
