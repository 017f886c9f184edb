package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned for data-channel messages that are not a
// JSON object or do not match their tag's shape.
var ErrMalformedMessage = errors.New("malformed room message")

// Encode serializes a message with its "type" tag.
func Encode(msg Message) ([]byte, error) {
	var v any
	switch m := msg.(type) {
	case Hello:
		v = struct {
			Type MessageType `json:"type"`
			Hello
		}{TypeHello, m}
	case Presence:
		v = struct {
			Type MessageType `json:"type"`
			Presence
		}{TypePresence, m}
	case RoomState:
		v = struct {
			Type MessageType `json:"type"`
			RoomState
		}{TypeRoomState, m}
	default:
		return nil, fmt.Errorf("encode %T: unsupported message", msg)
	}
	return json.Marshal(v)
}

// Decode parses one data-channel message. Unrecognised tags decode to
// Unknown rather than failing, so newer peers do not break older ones.
func Decode(data []byte) (Message, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedMessage)
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch MessageType(envelope.Type) {
	case TypeHello:
		var m Hello
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: hello: %v", ErrMalformedMessage, err)
		}
		return m, nil

	case TypePresence:
		var m Presence
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: heart-state: %v", ErrMalformedMessage, err)
		}
		return m, nil

	case TypeRoomState:
		var wire struct {
			Snapshot *Snapshot `json:"snapshot"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("%w: room-state: %v", ErrMalformedMessage, err)
		}
		if wire.Snapshot == nil || wire.Snapshot.Participants == nil {
			return nil, fmt.Errorf("%w: room-state without participants", ErrMalformedMessage)
		}
		return RoomState{Snapshot: *wire.Snapshot}, nil

	default:
		return Unknown{Tag: envelope.Type}, nil
	}
}
