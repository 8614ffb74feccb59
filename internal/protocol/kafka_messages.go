package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smukkama/pm25-intent/internal/location"
)

// LocationRequest is the Kafka message that asks a device for a prompt or a fix
type LocationRequest struct {
	RequestID   string               `json:"request_id"`
	DeviceID    string               `json:"device_id"`
	Kind        location.RequestKind `json:"kind"`
	RequestedAt time.Time            `json:"requested_at"`
}

// EncodeLocationRequest encodes a LocationRequest to JSON
func EncodeLocationRequest(req *LocationRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeLocationRequest decodes JSON to LocationRequest
func DecodeLocationRequest(data []byte) (*LocationRequest, error) {
	var req LocationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	switch req.Kind {
	case location.RequestAuthorization, location.RequestFix:
	default:
		return nil, fmt.Errorf("unknown request kind: %s", req.Kind)
	}
	return &req, nil
}
