package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Absence is a value, not an error: lookups for unknown ids return
// (nil, nil) rather than a sentinel.
type Repository interface {
	// List retrieves all devices ordered by id ascending.
	List(ctx context.Context) ([]Device, error)

	// GetByID retrieves a device by id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id int64) (*Device, error)

	// Create inserts a new device and fills in its assigned id.
	Create(ctx context.Context, device *Device) error

	// Update applies the non-nil patch fields to the stored device and
	// returns the result. DeviceType/DeviceID are never modified.
	// Returns (nil, nil) when the id is unknown.
	Update(ctx context.Context, id int64, patch Patch) (*Device, error)

	// Delete removes a device by id. Returns true if a row was removed;
	// deleting an unknown id is not an error.
	Delete(ctx context.Context, id int64) (bool, error)

	// Search retrieves devices matching the AND-combined criteria,
	// ordered by id ascending. Empty criteria match everything.
	Search(ctx context.Context, criteria Criteria) ([]Device, error)

	// Count returns the number of registered devices.
	Count(ctx context.Context) (int, error)
}

// deviceColumns is the SELECT column list shared by all queries.
const deviceColumns = "id, device_type, device_id, current_ota, ip_address, ssh_user, password, created_at, updated_at"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all devices ordered by id ascending.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices ORDER BY id"
	return r.queryDevices(ctx, query)
}

// GetByID retrieves a device by id. Returns (nil, nil) when absent.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices WHERE id = ?"

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// Create inserts a new device. The id is assigned by AUTOINCREMENT and
// written back into device.ID; assigned ids are never reused.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (device_type, device_id, current_ota, ip_address, ssh_user, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		device.DeviceType,
		device.DeviceID,
		device.CurrentOTA,
		device.IPAddress,
		device.SSHUser,
		device.Password,
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted device id: %w", err)
	}
	device.ID = id

	return nil
}

// Update applies the non-nil patch fields to the stored device.
//
// The SELECT and UPDATE run in one transaction so concurrent readers
// never observe a partially applied patch. DeviceType/DeviceID in the
// patch are ignored; the stored values are preserved.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, patch Patch) (*Device, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := "SELECT " + deviceColumns + " FROM devices WHERE id = ?"
	device, err := scanDevice(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying device for update: %w", err)
	}

	applyPatch(device, patch)
	device.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE devices
		SET current_ota = ?, ip_address = ?, ssh_user = ?, password = ?, updated_at = ?
		WHERE id = ?`

	if _, err := tx.ExecContext(ctx, update,
		device.CurrentOTA,
		device.IPAddress,
		device.SSHUser,
		device.Password,
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	); err != nil {
		return nil, fmt.Errorf("updating device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing device update: %w", err)
	}

	return device, nil
}

// Delete removes a device by id. Idempotent: unknown ids return (false, nil).
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Search retrieves devices matching the AND-combined criteria.
// deviceType and currentOTA match exactly; deviceId matches by substring.
func (r *SQLiteRepository) Search(ctx context.Context, criteria Criteria) ([]Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices"

	var conditions []string
	var args []any

	if criteria.DeviceType != "" {
		conditions = append(conditions, "device_type = ?")
		args = append(args, criteria.DeviceType)
	}
	if criteria.DeviceID != "" {
		conditions = append(conditions, "instr(device_id, ?) > 0")
		args = append(args, criteria.DeviceID)
	}
	if criteria.CurrentOTA != "" {
		conditions = append(conditions, "current_ota = ?")
		args = append(args, criteria.CurrentOTA)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	return r.queryDevices(ctx, query, args...)
}

// Count returns the number of registered devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// applyPatch merges non-nil patch fields into the device.
// DeviceType/DeviceID are immutable and never touched.
func applyPatch(device *Device, patch Patch) {
	if patch.CurrentOTA != nil {
		device.CurrentOTA = *patch.CurrentOTA
	}
	if patch.IPAddress != nil {
		device.IPAddress = *patch.IPAddress
	}
	if patch.SSHUser != nil {
		device.SSHUser = *patch.SSHUser
	}
	if patch.Password != nil {
		device.Password = *patch.Password
	}
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.DeviceType,
		&d.DeviceID,
		&d.CurrentOTA,
		&d.IPAddress,
		&d.SSHUser,
		&d.Password,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}
