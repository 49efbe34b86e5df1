package device

import "errors"

// ErrDeviceExists is returned when creating a device whose
// (deviceType, deviceId) pair is already registered.
var ErrDeviceExists = errors.New("device: device already exists")
