package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/smukkama/pm25-intent/internal/location"
)

// GetGrant returns the permission status of a device. Unknown devices have
// not been asked yet.
func (db *DB) GetGrant(ctx context.Context, deviceID string) (location.AuthorizationStatus, error) {
	grant, err := db.GetLocationGrant(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if grant == nil {
		return location.StatusNotDetermined, nil
	}
	return grant.Status, nil
}

// GetLocationGrant retrieves a grant by device id, nil when absent
func (db *DB) GetLocationGrant(ctx context.Context, deviceID string) (*LocationGrant, error) {
	query := `
		SELECT device_id, status, prompted_at, created_at, updated_at
		FROM location_grants
		WHERE device_id = $1
	`

	var g LocationGrant
	var status string
	err := db.QueryRowContext(ctx, query, deviceID).Scan(
		&g.DeviceID,
		&status,
		&g.PromptedAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant for %s: %w", deviceID, err)
	}

	g.Status, err = location.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("corrupt grant for %s: %w", deviceID, err)
	}
	return &g, nil
}

// UpsertGrant stores the answer a device reported
func (db *DB) UpsertGrant(ctx context.Context, deviceID string, status location.AuthorizationStatus) error {
	query := `
		INSERT INTO location_grants (device_id, status)
		VALUES ($1, $2)
		ON CONFLICT (device_id) DO UPDATE
		SET status = EXCLUDED.status,
		    updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.ExecContext(ctx, query, deviceID, string(status)); err != nil {
		return fmt.Errorf("failed to upsert grant for %s: %w", deviceID, err)
	}
	return nil
}

// MarkPrompted sets prompted_at when the device was never prompted, or was
// prompted before staleBefore and has not answered. It reports true only for
// the call that set it, so concurrent invocations prompt a device once.
func (db *DB) MarkPrompted(ctx context.Context, deviceID string, staleBefore time.Time) (bool, error) {
	query := `
		INSERT INTO location_grants (device_id, status, prompted_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (device_id) DO UPDATE
		SET prompted_at = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE location_grants.status = $2
		  AND (location_grants.prompted_at IS NULL OR location_grants.prompted_at < $3)
		RETURNING device_id
	`

	var id string
	err := db.QueryRowContext(ctx, query, deviceID, string(location.StatusNotDetermined), staleBefore).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark %s prompted: %w", deviceID, err)
	}
	return true, nil
}
