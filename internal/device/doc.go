// Package device implements the device inventory: the data model,
// validation rules, SQLite persistence, and the Inventory coordination
// layer the API serves from.
//
// # Architecture
//
//	api handlers → Inventory → Repository (SQLite)
//	                   ↓
//	              events.Bus
//
// The Repository owns persistence and treats absence as a value: lookups
// for unknown ids return (nil, nil). The Inventory adds the business
// rules (validation, duplicate detection, immutability of
// deviceType/deviceId) and serialises mutations under a single mutex so
// the check-then-create window cannot race.
//
// # Known limitations
//
// Device SSH passwords are stored and returned in clear text. The
// service manages lab devices on a trusted internal network; credential
// encryption is out of scope for now.
package device
