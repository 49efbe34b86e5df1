package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/fleetd/internal/events"
)

// Logger defines the logging interface used by the Inventory.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Inventory coordinates access to the device store.
//
// All mutations are serialised under a single mutex: id assignment stays
// atomic and the duplicate pre-check in Create cannot race a concurrent
// create of the same (deviceType, deviceId) pair. Reads bypass the lock
// and go straight to the repository.
//
// After each successful mutation an event is published to the bus with
// the acting username attached.
type Inventory struct {
	repo   Repository
	bus    *events.Bus
	logger Logger

	// mu serialises Create/Update/Delete.
	mu sync.Mutex
}

// NewInventory creates an inventory over the given repository and bus.
func NewInventory(repo Repository, bus *events.Bus) *Inventory {
	return &Inventory{
		repo:   repo,
		bus:    bus,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the inventory.
func (inv *Inventory) SetLogger(logger Logger) {
	inv.logger = logger
}

// List returns all devices ordered by id.
func (inv *Inventory) List(ctx context.Context) ([]Device, error) {
	return inv.repo.List(ctx)
}

// GetByID returns a device by id, or (nil, nil) when absent.
func (inv *Inventory) GetByID(ctx context.Context, id int64) (*Device, error) {
	return inv.repo.GetByID(ctx, id)
}

// Search returns devices matching the criteria, ordered by id.
func (inv *Inventory) Search(ctx context.Context, criteria Criteria) ([]Device, error) {
	return inv.repo.Search(ctx, criteria)
}

// Count returns the number of registered devices.
func (inv *Inventory) Count(ctx context.Context) (int, error) {
	return inv.repo.Count(ctx)
}

// Create validates and registers a new device.
//
// Returns *ValidationError when the device breaks a validation rule and
// ErrDeviceExists when the (deviceType, deviceId) pair is already
// registered. The duplicate check and the insert run under one lock.
func (inv *Inventory) Create(ctx context.Context, device *Device, actor string) error {
	if err := Validate(*device); err != nil {
		return err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	// Exact-pair duplicate check. Search matches deviceId by substring,
	// so compare the hits exactly.
	existing, err := inv.repo.Search(ctx, Criteria{
		DeviceType: device.DeviceType,
		DeviceID:   device.DeviceID,
	})
	if err != nil {
		return fmt.Errorf("checking for duplicate device: %w", err)
	}
	for _, e := range existing {
		if e.DeviceID == device.DeviceID {
			return ErrDeviceExists
		}
	}

	if err := inv.repo.Create(ctx, device); err != nil {
		return err
	}

	inv.logger.Info("device created",
		"id", device.ID,
		"device_type", device.DeviceType,
		"device_id", device.DeviceID,
		"actor", actor)

	inv.publish(events.ActionCreated, device, actor)

	return nil
}

// Update applies a patch to an existing device.
//
// Returns (nil, nil) when the id is unknown and *ValidationError when the
// merged record would break a validation rule. DeviceType/DeviceID in the
// patch are ignored.
func (inv *Inventory) Update(ctx context.Context, id int64, patch Patch, actor string) (*Device, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	existing, err := inv.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	// Validate the merged record before touching the store.
	merged := *existing
	applyPatch(&merged, patch)
	if err := Validate(merged); err != nil {
		return nil, err
	}

	updated, err := inv.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, nil
	}

	inv.logger.Info("device updated",
		"id", updated.ID,
		"device_type", updated.DeviceType,
		"device_id", updated.DeviceID,
		"actor", actor)

	inv.publish(events.ActionUpdated, updated, actor)

	return updated, nil
}

// Delete removes a device by id. Returns true if a row was removed;
// unknown ids return (false, nil).
func (inv *Inventory) Delete(ctx context.Context, id int64, actor string) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	// Load first so the deletion event can carry the last known state.
	existing, err := inv.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	deleted, err := inv.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	inv.logger.Info("device deleted",
		"id", existing.ID,
		"device_type", existing.DeviceType,
		"device_id", existing.DeviceID,
		"actor", actor)

	inv.publish(events.ActionDeleted, existing, actor)

	return true, nil
}

// publish emits an inventory event. The snapshot excludes the SSH
// password: events reach transports that must not see credentials.
func (inv *Inventory) publish(action string, device *Device, actor string) {
	if inv.bus == nil {
		return
	}

	inv.bus.Publish(events.NewEvent(action, events.DeviceSnapshot{
		ID:         device.ID,
		DeviceType: device.DeviceType,
		DeviceID:   device.DeviceID,
		CurrentOTA: device.CurrentOTA,
		IPAddress:  device.IPAddress,
	}, actor))
}
