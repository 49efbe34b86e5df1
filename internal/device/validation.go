package device

import (
	"regexp"
	"strings"
)

// Validation patterns, compiled once at package init.
var (
	// deviceIDPattern requires one or more digits.
	deviceIDPattern = regexp.MustCompile(`^[0-9]+$`)

	// ipAddressPattern checks dotted-quad shape only. Octet ranges are
	// deliberately not enforced: "999.999.999.999" passes.
	ipAddressPattern = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}$`)
)

// ValidationError carries every rule a device violates.
type ValidationError struct {
	Violations []string
}

// Error returns all violations joined into one human-readable message.
func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// Validate checks a device against the inventory rules.
//
// All rules are evaluated; the returned *ValidationError lists every
// violation in field order. Returns nil when the device is valid.
func Validate(d Device) error {
	var violations []string

	if d.DeviceType == "" {
		violations = append(violations, "deviceType is required")
	}

	if d.DeviceID == "" {
		violations = append(violations, "deviceId is required")
	} else if !deviceIDPattern.MatchString(d.DeviceID) {
		violations = append(violations, "deviceId must contain only digits")
	}

	if d.CurrentOTA == "" {
		violations = append(violations, "currentOTA is required")
	}

	if d.IPAddress == "" {
		violations = append(violations, "ipAddress is required")
	} else if !ipAddressPattern.MatchString(d.IPAddress) {
		violations = append(violations, "ipAddress must be a dotted-quad IPv4 address")
	}

	if d.SSHUser == "" {
		violations = append(violations, "sshUser is required")
	}

	if d.Password == "" {
		violations = append(violations, "password is required")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	return nil
}
