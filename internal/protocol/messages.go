package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smukkama/pm25-intent/internal/location"
)

// MessageType represents the type of message
type MessageType string

const (
	// Device to Gateway
	MsgTypeIdentify      MessageType = "identify"
	MsgTypeLocation      MessageType = "location"
	MsgTypeAuthorization MessageType = "authorization"
	MsgTypeInvoke        MessageType = "invoke"
	MsgTypeKeepalive     MessageType = "keepalive"

	// Gateway to Device
	MsgTypeAck     MessageType = "ack"
	MsgTypeResult  MessageType = "result"
	MsgTypeRequest MessageType = "request"
)

// BaseMessage is the common structure for all messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// IdentifyMessage is sent by the device on connection
type IdentifyMessage struct {
	Type     MessageType `json:"type"`
	DeviceID string      `json:"device_id"`
	Name     string      `json:"name,omitempty"`
}

// LocationMessage carries a fix, either unprompted or in answer to a request
type LocationMessage struct {
	Type      MessageType `json:"type"`
	Latitude  float64     `json:"lat"`
	Longitude float64     `json:"lng"`
	Accuracy  float64     `json:"accuracy,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Fix converts the message into a stored fix
func (m *LocationMessage) Fix() (location.Fix, error) {
	ts, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return location.Fix{}, err
	}
	return location.Fix{
		Coordinate: location.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
		Accuracy:   m.Accuracy,
		ObservedAt: ts,
	}, nil
}

// AuthorizationMessage reports the user's answer to a permission prompt
type AuthorizationMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

// InvokeMessage runs the air quality intent for the connected device
type InvokeMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`
}

// KeepaliveMessage is sent by the device every 30-60 seconds
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the gateway in response to messages
type AckMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// ResultMessage carries the sentence produced by an invocation
type ResultMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`
	Text string      `json:"text"`
}

// RequestMessage asks the device for a permission prompt or a fresh fix
type RequestMessage struct {
	Type      MessageType          `json:"type"`
	Kind      location.RequestKind `json:"kind"`
	RequestID string               `json:"request_id"`
}

// AckStatus constants
const (
	AckStatusIdentified = "identified"
	AckStatusAlive      = "alive"
	AckStatusStored     = "stored"
	AckStatusError      = "error"
)

// ParseMessage parses a JSON line into the appropriate message type
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeIdentify:
		var msg IdentifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid identify message: %w", err)
		}
		if err := validateIdentify(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeLocation:
		var msg LocationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid location message: %w", err)
		}
		if err := ValidateLocation(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeAuthorization:
		var msg AuthorizationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid authorization message: %w", err)
		}
		if err := validateAuthorization(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeInvoke:
		var msg InvokeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid invoke message: %w", err)
		}
		return &msg, nil

	case MsgTypeKeepalive:
		var msg KeepaliveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid keepalive message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

// validateIdentify validates an identify message
func validateIdentify(msg *IdentifyMessage) error {
	if msg.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	return nil
}

// ValidateLocation validates a location message
func ValidateLocation(msg *LocationMessage) error {
	c := location.Coordinate{Latitude: msg.Latitude, Longitude: msg.Longitude}
	if !c.Valid() {
		return fmt.Errorf("coordinate out of range: %s", c)
	}
	if msg.Accuracy < 0 {
		return fmt.Errorf("accuracy must not be negative")
	}
	if msg.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp format (must be RFC3339): %w", err)
	}
	return nil
}

// validateAuthorization only accepts final answers from the device
func validateAuthorization(msg *AuthorizationMessage) error {
	status, err := location.ParseStatus(msg.Status)
	if err != nil {
		return err
	}
	if status == location.StatusNotDetermined {
		return fmt.Errorf("status must be authorized, denied or restricted")
	}
	return nil
}

// EncodeMessage encodes a message to JSON
func EncodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// NewErrorMessage creates an error acknowledgment
func NewErrorMessage(err error) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: AckStatusError,
		Error:  err.Error(),
	}
}

// NewResultMessage creates the reply to an invoke message
func NewResultMessage(id, text string) *ResultMessage {
	return &ResultMessage{
		Type: MsgTypeResult,
		ID:   id,
		Text: text,
	}
}

// NewRequestMessage converts a queued request into its wire form
func NewRequestMessage(req *LocationRequest) *RequestMessage {
	return &RequestMessage{
		Type:      MsgTypeRequest,
		Kind:      req.Kind,
		RequestID: req.RequestID,
	}
}
