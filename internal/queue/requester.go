package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/protocol"
)

// Publisher is satisfied by *Producer
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Requester publishes location requests keyed by device id, so every request
// for one device lands on the same partition
type Requester struct {
	publisher Publisher
	now       func() time.Time
}

// NewRequester creates a location.RequestPublisher backed by Kafka
func NewRequester(publisher Publisher) *Requester {
	return &Requester{publisher: publisher, now: time.Now}
}

// RequestDevice implements location.RequestPublisher
func (r *Requester) RequestDevice(ctx context.Context, deviceID string, kind location.RequestKind) error {
	req := &protocol.LocationRequest{
		RequestID:   uuid.New().String(),
		DeviceID:    deviceID,
		Kind:        kind,
		RequestedAt: r.now().UTC(),
	}

	data, err := protocol.EncodeLocationRequest(req)
	if err != nil {
		return fmt.Errorf("failed to encode location request: %w", err)
	}

	if err := r.publisher.Publish(ctx, deviceID, data); err != nil {
		return fmt.Errorf("failed to publish %s request for %s: %w", kind, deviceID, err)
	}
	return nil
}
