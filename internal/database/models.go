package database

import (
	"time"

	"github.com/smukkama/pm25-intent/internal/location"
)

// LocationGrant is the stored permission state of one device
type LocationGrant struct {
	DeviceID   string
	Status     location.AuthorizationStatus
	PromptedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
