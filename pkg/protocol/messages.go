// ABOUTME: Event protocol message type definitions
// ABOUTME: Defines the envelope, message kinds and validation
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DefaultPort is the broker's default listening port
	DefaultPort = 3001

	// AuthHeader carries the shared secret on the WebSocket handshake
	AuthHeader = "x-auth-token"

	// CloseUnauthorized is the close code sent when the secret is wrong
	CloseUnauthorized = 4001
)

// Message kinds
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeEmit        = "emit"
	TypeEvent       = "event"
)

// ErrMalformed is returned for messages missing required fields
var ErrMalformed = errors.New("malformed message")

// Message is the envelope for every protocol message
type Message struct {
	Type      string          `json:"type"`
	EventName string          `json:"eventName,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEmit builds an emit message, encoding payload as JSON
func NewEmit(eventName string, payload interface{}) (Message, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeEmit, EventName: eventName, Payload: raw}, nil
}

// NewEvent builds the broker-to-client broadcast for an emit
func NewEvent(eventName string, payload json.RawMessage) Message {
	return Message{Type: TypeEvent, EventName: eventName, Payload: payload}
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return raw, nil
}

// Parse decodes and validates a message
func Parse(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Validate checks the type is known and an event name is present
func (m Message) Validate() error {
	switch m.Type {
	case TypeSubscribe, TypeUnsubscribe, TypeEmit, TypeEvent:
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	if m.EventName == "" {
		return fmt.Errorf("%w: %s without eventName", ErrMalformed, m.Type)
	}
	return nil
}

// Decode unmarshals the payload into v
func (m Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.EventName)
	}
	return json.Unmarshal(m.Payload, v)
}
