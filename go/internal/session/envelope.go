package session

import (
	"encoding/json"
	"fmt"
)

// MessageType tags every websocket frame
type MessageType string

const (
	MessageTypeStateUpdate MessageType = "STATE_UPDATE"
	MessageTypeAction      MessageType = "ACTION"
	MessageTypeError       MessageType = "ERROR"
	MessageTypeNewLog      MessageType = "NEW_LOG"
)

// Envelope is the frame exchanged over the websocket in both directions
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is sent back to the connection whose command was rejected
type ErrorPayload struct {
	Message string `json:"message"`
}

// EncodeEnvelope marshals payload and wraps it in an envelope of type t
func EncodeEnvelope(t MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: data})
}

// EncodeAction wraps a command for sending
func EncodeAction(cmd Command) ([]byte, error) {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: MessageTypeAction, Payload: data})
}

// DecodeEnvelope parses a frame. The payload is left raw.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing message type", ErrMalformedCommand)
	}
	return env, nil
}
