package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingEventType is reported for frames without an eventType tag.
var ErrMissingEventType = errors.New("missing eventType")

// DecodeError describes an inbound frame that could not be decoded.
type DecodeError struct {
	EventType EventType // empty when the envelope itself is unreadable
	Err       error
}

func (e *DecodeError) Error() string {
	if e.EventType == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.EventType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode builds a frame for the given event. A nil data encodes as {}.
func Encode(eventType EventType, data any) ([]byte, error) {
	raw := json.RawMessage("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", eventType, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{EventType: eventType, Data: raw})
}

// Decode parses a frame into a typed Inbound event. Malformed frames and
// frames missing a required field yield a *DecodeError. Unrecognised tags
// decode to UnknownEvent without error.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if env.EventType == "" {
		return nil, &DecodeError{Err: ErrMissingEventType}
	}

	switch env.EventType {
	case RoomCreated:
		var ev RoomCreatedEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case RoomJoined:
		var ev RoomJoinedEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		if err := env.require("token", ev.Token, "roomName", ev.RoomName); err != nil {
			return nil, err
		}
		return ev, nil
	case RoomLeft:
		var ev RoomLeftEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case RoomReconnected:
		var ev RoomReconnectedEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		if err := env.require("roomName", ev.RoomName, "username", ev.Username); err != nil {
			return nil, err
		}
		return ev, nil
	case InvalidToken:
		var ev InvalidTokenEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case MessageReceived:
		var ev MessageReceivedEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		if err := env.require("username", ev.Username); err != nil {
			return nil, err
		}
		return ev, nil
	case Error:
		var ev ErrorEvent
		if err := env.decode(&ev); err != nil {
			return nil, err
		}
		if ev.Code == "" && ev.Message == "" {
			return nil, &DecodeError{EventType: env.EventType, Err: errors.New("missing code and message")}
		}
		return ev, nil
	default:
		return UnknownEvent{Tag: env.EventType}, nil
	}
}

// decode unmarshals the data object into v. Absent or null data leaves v
// at its zero value.
func (env Envelope) decode(v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &DecodeError{EventType: env.EventType, Err: err}
	}
	return nil
}

// require takes name/value pairs and fails on the first empty value.
func (env Envelope) require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return &DecodeError{EventType: env.EventType, Err: fmt.Errorf("missing %s", pairs[i])}
		}
	}
	return nil
}
