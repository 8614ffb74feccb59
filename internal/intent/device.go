package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/smukkama/pm25-intent/internal/airquality"
	"github.com/smukkama/pm25-intent/internal/i18n"
	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/pm25"
)

// DeviceRunner builds a fresh capability and action for every invocation
type DeviceRunner struct {
	Grants   location.GrantStore
	Fixes    location.FixStore
	Requests location.RequestPublisher
	Fetcher  pm25.Fetcher
	Profile  airquality.Profile
	Locale   i18n.Locale
	Attempts int
	Interval time.Duration
	MaxAge   time.Duration
	Logger   *slog.Logger
}

// Action returns the action bound to one device
func (r *DeviceRunner) Action(deviceID string) *Action {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("device_id", deviceID)

	capability := location.NewDevice(deviceID, r.Grants, r.Fixes, r.Requests, r.MaxAge)
	provider := location.NewProvider(capability, r.Attempts, r.Interval, logger)
	return New(provider, r.Fetcher, r.Profile, r.Locale, logger)
}

// Invoke runs the intent for deviceID and returns the sentence to show
func (r *DeviceRunner) Invoke(ctx context.Context, deviceID string) string {
	return r.Action(deviceID).Run(ctx)
}
