package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved message types produced by the registry itself.
const (
	TypeConnectionEstablished = "connection_established"
	TypeSubscriptionConfirmed = "subscription_confirmed"
	TypeUserConnected         = "user_connected"
	TypeUserDisconnected      = "user_disconnected"
	TypePong                  = "pong"
	TypeError                 = "error"
)

// Message is a write-once outbound event envelope. It serializes as a flat
// JSON object: {"type": ..., <fields>, "timestamp": ...}. The registry stamps
// Timestamp at publish time if the caller left it zero and no "timestamp"
// field is present; domain fields are never touched.
type Message struct {
	Type      string
	Fields    map[string]any
	Timestamp time.Time
}

// NewMessage builds a message of the given type with the given payload fields.
// fields may be nil. The fields map must not be mutated after the call.
func NewMessage(msgType string, fields map[string]any) Message {
	return Message{Type: msgType, Fields: fields}
}

// encode serializes the envelope exactly once per publish sweep.
// now is used to stamp the timestamp when the message carries none.
func (m Message) encode(now time.Time) ([]byte, error) {
	if m.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}

	envelope := make(map[string]any, len(m.Fields)+2)
	for k, v := range m.Fields {
		envelope[k] = v
	}
	envelope["type"] = m.Type

	if _, present := envelope["timestamp"]; !present {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = now
		}
		envelope["timestamp"] = ts.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.Type, err)
	}
	return data, nil
}
