package device

import "time"

// Device represents a single managed device in the inventory.
//
// The id is assigned by the store on creation and is never reused, even
// after deletes. DeviceType and DeviceID are immutable once created;
// together they identify the physical unit.
//
// CreatedAt/UpdatedAt are storage metadata and never appear on the wire.
type Device struct {
	ID         int64  `json:"id"`
	DeviceType string `json:"deviceType"`
	DeviceID   string `json:"deviceId"`
	CurrentOTA string `json:"currentOTA"`
	IPAddress  string `json:"ipAddress"`
	SSHUser    string `json:"sshUser"`
	Password   string `json:"password"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Patch describes a partial update to a device. Nil fields are left
// unchanged. DeviceType and DeviceID are accepted for decoding symmetry
// but always ignored: both are immutable after creation.
type Patch struct {
	DeviceType *string `json:"deviceType"`
	DeviceID   *string `json:"deviceId"`
	CurrentOTA *string `json:"currentOTA"`
	IPAddress  *string `json:"ipAddress"`
	SSHUser    *string `json:"sshUser"`
	Password   *string `json:"password"`
}

// Criteria are optional search filters, combined with AND.
// Empty fields are ignored; all-empty criteria match every device.
type Criteria struct {
	// DeviceType matches exactly.
	DeviceType string `json:"deviceType"`

	// DeviceID matches by substring containment.
	DeviceID string `json:"deviceId"`

	// CurrentOTA matches exactly.
	CurrentOTA string `json:"currentOTA"`
}

// IsEmpty reports whether no filters are set.
func (c Criteria) IsEmpty() bool {
	return c.DeviceType == "" && c.DeviceID == "" && c.CurrentOTA == ""
}
