package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Bridge carries encoded events between processes of the same session.
// Delivery is at-most-once and eventually observed; same-process
// delivery never depends on it.
type Bridge interface {
	Forward(ctx context.Context, data []byte) error
	Listen(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// envelope is the wire form of an event on the bridge.
type envelope struct {
	Origin    string          `json:"origin"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	typeAvatarChanged = "avatar_changed"
	typeFollowChanged = "follow_changed"
	typeSavedChanged  = "saved_changed"
	typeEntryChanged  = "entry_changed"
)

func encodeEnvelope(e Event, origin string) ([]byte, error) {
	var typ string
	switch e.(type) {
	case AvatarChanged:
		typ = typeAvatarChanged
	case FollowChanged:
		typ = typeFollowChanged
	case SavedChanged:
		typ = typeSavedChanged
	case EntryChanged:
		typ = typeEntryChanged
	default:
		return nil, fmt.Errorf("unknown event type %T", e)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	return json.Marshal(envelope{
		Origin:    origin,
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func decodeEnvelope(data []byte) (Event, string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("unmarshal envelope: %w", err)
	}

	var e Event
	var err error
	switch env.Type {
	case typeAvatarChanged:
		var ev AvatarChanged
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	case typeFollowChanged:
		var ev FollowChanged
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	case typeSavedChanged:
		var ev SavedChanged
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	case typeEntryChanged:
		var ev EntryChanged
		err = json.Unmarshal(env.Payload, &ev)
		e = ev
	default:
		return nil, "", fmt.Errorf("unknown envelope type %q", env.Type)
	}
	if err != nil {
		return nil, "", fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}

	return e, env.Origin, nil
}
