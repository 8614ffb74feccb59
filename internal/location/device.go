package location

import (
	"context"
	"fmt"
	"time"
)

// Fix is a coordinate reported by a device
type Fix struct {
	Coordinate Coordinate `json:"coordinate"`
	Accuracy   float64    `json:"accuracy,omitempty"` // metres
	ObservedAt time.Time  `json:"observed_at"`
}

// DefaultRepromptAfter is used when the device has no fix max age
const DefaultRepromptAfter = 2 * time.Minute

// RequestKind tells a device what the gateway wants from it
type RequestKind string

const (
	RequestAuthorization RequestKind = "authorization"
	RequestFix           RequestKind = "location"
)

// GrantStore holds the per-device permission state
type GrantStore interface {
	GetGrant(ctx context.Context, deviceID string) (AuthorizationStatus, error)
	// MarkPrompted records that a prompt is being sent and reports whether
	// the caller should send it: the device was never prompted, or its last
	// prompt is older than staleBefore and still unanswered.
	MarkPrompted(ctx context.Context, deviceID string, staleBefore time.Time) (bool, error)
}

// FixStore returns the latest fix a device reported
type FixStore interface {
	LatestFix(ctx context.Context, deviceID string) (Fix, bool, error)
}

// RequestPublisher delivers a request to a device
type RequestPublisher interface {
	RequestDevice(ctx context.Context, deviceID string, kind RequestKind) error
}

// Device is a Capability backed by the gateway's stores. Build one per
// invocation; it holds no state of its own besides the request time.
type Device struct {
	id       string
	grants   GrantStore
	fixes    FixStore
	requests RequestPublisher
	maxAge   time.Duration
	now      func() time.Time
}

// NewDevice creates a capability for deviceID. Fixes older than maxAge are
// ignored; zero disables the age check. maxAge is also the reprompt window.
func NewDevice(deviceID string, grants GrantStore, fixes FixStore, requests RequestPublisher, maxAge time.Duration) *Device {
	return &Device{
		id:       deviceID,
		grants:   grants,
		fixes:    fixes,
		requests: requests,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

func (d *Device) AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error) {
	status, err := d.grants.GetGrant(ctx, d.id)
	if err != nil {
		return "", fmt.Errorf("failed to load grant for %s: %w", d.id, err)
	}
	return status, nil
}

// RequestAuthorization prompts the device once per reprompt window. A prompt
// that was lost in transit is sent again after the window.
func (d *Device) RequestAuthorization(ctx context.Context) (AuthorizationStatus, error) {
	first, err := d.grants.MarkPrompted(ctx, d.id, d.now().Add(-d.repromptAfter()))
	if err != nil {
		return "", fmt.Errorf("failed to record prompt for %s: %w", d.id, err)
	}
	if first {
		if err := d.requests.RequestDevice(ctx, d.id, RequestAuthorization); err != nil {
			return "", fmt.Errorf("failed to request authorization from %s: %w", d.id, err)
		}
	}
	return d.AuthorizationStatus(ctx)
}

func (d *Device) repromptAfter() time.Duration {
	if d.maxAge > 0 {
		return d.maxAge
	}
	return DefaultRepromptAfter
}

func (d *Device) RequestLocation(ctx context.Context) error {
	if err := d.requests.RequestDevice(ctx, d.id, RequestFix); err != nil {
		return fmt.Errorf("failed to request location from %s: %w", d.id, err)
	}
	return nil
}

func (d *Device) LastFix(ctx context.Context) (Coordinate, bool, error) {
	fix, ok, err := d.fixes.LatestFix(ctx, d.id)
	if err != nil {
		return Coordinate{}, false, fmt.Errorf("failed to load fix for %s: %w", d.id, err)
	}
	if !ok {
		return Coordinate{}, false, nil
	}
	if d.maxAge > 0 && d.now().Sub(fix.ObservedAt) > d.maxAge {
		return Coordinate{}, false, nil
	}
	return fix.Coordinate, true, nil
}
