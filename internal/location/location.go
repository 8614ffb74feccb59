package location

import (
	"context"
	"fmt"
	"strings"
)

// Coordinate is a WGS84 point
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within WGS84 bounds
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// AuthorizationStatus mirrors the permission states of a platform location service
type AuthorizationStatus string

const (
	StatusNotDetermined AuthorizationStatus = "not_determined"
	StatusAuthorized    AuthorizationStatus = "authorized"
	StatusDenied        AuthorizationStatus = "denied"
	StatusRestricted    AuthorizationStatus = "restricted"
)

// ParseStatus parses a status reported by a device
func ParseStatus(s string) (AuthorizationStatus, error) {
	switch AuthorizationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusNotDetermined:
		return StatusNotDetermined, nil
	case StatusAuthorized, "granted":
		return StatusAuthorized, nil
	case StatusDenied:
		return StatusDenied, nil
	case StatusRestricted:
		return StatusRestricted, nil
	default:
		return "", fmt.Errorf("invalid authorization status %q", s)
	}
}

// Refused reports whether the user or the platform refused access
func (s AuthorizationStatus) Refused() bool {
	return s == StatusDenied || s == StatusRestricted
}

// Capability is the platform location service as seen by the provider
type Capability interface {
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)
	// RequestAuthorization may show a permission prompt and returns the
	// status known right after asking
	RequestAuthorization(ctx context.Context) (AuthorizationStatus, error)
	// RequestLocation asks for a fresh fix; the fix arrives later via LastFix
	RequestLocation(ctx context.Context) error
	LastFix(ctx context.Context) (Coordinate, bool, error)
}

var (
	ErrPermissionDenied = &LocationError{msg: "location permission denied"}
	ErrNoFix            = &LocationError{msg: "no location fix available"}
)

// LocationError is the single failure type of the coordinate provider
type LocationError struct {
	msg string
	err error
}

func (e *LocationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *LocationError) Unwrap() error { return e.err }

// Is matches sentinels by message so wrapped copies compare equal
func (e *LocationError) Is(target error) bool {
	t, ok := target.(*LocationError)
	return ok && t.msg == e.msg
}

func unavailable(err error) *LocationError {
	return &LocationError{msg: "location service unavailable", err: err}
}
