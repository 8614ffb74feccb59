package location

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultAttempts = 10
	DefaultInterval = 500 * time.Millisecond
)

// Provider resolves a single coordinate from a Capability within a bounded
// number of polling attempts
type Provider struct {
	capability Capability
	attempts   int
	interval   time.Duration
	logger     *slog.Logger
}

// NewProvider creates a provider. Non-positive attempts or interval fall back
// to 10 attempts 500ms apart.
func NewProvider(capability Capability, attempts int, interval time.Duration, logger *slog.Logger) *Provider {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		capability: capability,
		attempts:   attempts,
		interval:   interval,
		logger:     logger,
	}
}

// GetCoordinate returns the most recent fix or a *LocationError
func (p *Provider) GetCoordinate(ctx context.Context) (Coordinate, error) {
	status, err := p.capability.AuthorizationStatus(ctx)
	if err != nil {
		return Coordinate{}, unavailable(err)
	}

	if status == StatusNotDetermined {
		p.logger.Debug("requesting location authorization")
		status, err = p.capability.RequestAuthorization(ctx)
		if err != nil {
			return Coordinate{}, unavailable(err)
		}
	}
	if status.Refused() {
		p.logger.Info("location permission refused", "status", status)
		return Coordinate{}, ErrPermissionDenied
	}

	requested := false
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if status == StatusAuthorized && !requested {
			if err := p.capability.RequestLocation(ctx); err != nil {
				return Coordinate{}, unavailable(err)
			}
			requested = true
		}

		if requested {
			c, ok, err := p.capability.LastFix(ctx)
			if err != nil {
				return Coordinate{}, unavailable(err)
			}
			if ok {
				p.logger.Debug("location fix resolved", "attempt", attempt)
				return c, nil
			}
		}

		if attempt == p.attempts {
			break
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Coordinate{}, &LocationError{msg: ErrNoFix.msg, err: ctx.Err()}
		case <-timer.C:
		}

		// the permission prompt may still be pending
		if status != StatusAuthorized {
			status, err = p.capability.AuthorizationStatus(ctx)
			if err != nil {
				return Coordinate{}, unavailable(err)
			}
			if status.Refused() {
				p.logger.Info("location permission refused", "status", status)
				return Coordinate{}, ErrPermissionDenied
			}
		}
	}

	p.logger.Info("no location fix within bound", "attempts", p.attempts, "interval", p.interval)
	return Coordinate{}, ErrNoFix
}
