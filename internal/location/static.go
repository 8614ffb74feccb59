package location

import "context"

// Static is a capability with a fixed, always-authorized coordinate
type Static struct {
	Coordinate Coordinate
}

func (s Static) AuthorizationStatus(context.Context) (AuthorizationStatus, error) {
	return StatusAuthorized, nil
}

func (s Static) RequestAuthorization(context.Context) (AuthorizationStatus, error) {
	return StatusAuthorized, nil
}

func (s Static) RequestLocation(context.Context) error { return nil }

func (s Static) LastFix(context.Context) (Coordinate, bool, error) {
	return s.Coordinate, true, nil
}
