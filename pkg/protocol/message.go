// Package protocol implements the chat wire format: the outgoing join and
// message frames and the conversation snapshot pushed by the server.
package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType tags an outgoing frame.
type EventType string

const (
	EventJoin    EventType = "join"
	EventMessage EventType = "message"
)

// String returns the string representation of EventType
func (et EventType) String() string {
	switch et {
	case EventJoin:
		return "JOIN"
	case EventMessage:
		return "MESSAGE"
	default:
		return "UNKNOWN"
	}
}

// Identity identifies a conversation. Direct and group conversations live in
// separate id spaces, so both fields are needed.
type Identity struct {
	ID      int64
	IsGroup bool
}

// String returns a short form used in logs, e.g. "group:9" or "direct:7".
func (id Identity) String() string {
	if id.IsGroup {
		return fmt.Sprintf("group:%d", id.ID)
	}
	return fmt.Sprintf("direct:%d", id.ID)
}

// Frame is a decoded outgoing frame. Join is set for EventJoin, Content for
// EventMessage.
type Frame struct {
	EventType EventType
	Join      Identity
	Content   string
}

type wireFrame struct {
	EventType EventType       `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

type joinPayload struct {
	ID      int64 `json:"id"`
	IsGroup bool  `json:"isGroup"`
}

type messagePayload struct {
	Content string `json:"content"`
}

// EncodeJoin encodes a join frame for the given conversation.
func EncodeJoin(id Identity) []byte {
	return encodeFrame(EventJoin, joinPayload{ID: id.ID, IsGroup: id.IsGroup})
}

// EncodeMessage encodes a message frame. The content is sent as is.
func EncodeMessage(content string) []byte {
	return encodeFrame(EventMessage, messagePayload{Content: content})
}

func encodeFrame(et EventType, payload any) []byte {
	// Marshalling these fixed types cannot fail.
	raw, _ := json.Marshal(payload)
	data, _ := json.Marshal(wireFrame{EventType: et, Payload: raw})
	return data
}

// DecodeFrame decodes an outgoing frame produced by EncodeJoin or
// EncodeMessage.
func DecodeFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, newDecodeError("invalid frame", err)
	}
	if len(w.Payload) == 0 || string(w.Payload) == "null" {
		return Frame{}, newDecodeError("missing payload", nil)
	}

	switch w.EventType {
	case EventJoin:
		var p struct {
			ID      *int64 `json:"id"`
			IsGroup *bool  `json:"isGroup"`
		}
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return Frame{}, newDecodeError("invalid join payload", err)
		}
		if p.ID == nil || p.IsGroup == nil {
			return Frame{}, newDecodeError("join payload requires id and isGroup", nil)
		}
		return Frame{EventType: EventJoin, Join: Identity{ID: *p.ID, IsGroup: *p.IsGroup}}, nil
	case EventMessage:
		var p struct {
			Content *string `json:"content"`
		}
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return Frame{}, newDecodeError("invalid message payload", err)
		}
		if p.Content == nil {
			return Frame{}, newDecodeError("message payload requires content", nil)
		}
		return Frame{EventType: EventMessage, Content: *p.Content}, nil
	default:
		return Frame{}, newDecodeError(fmt.Sprintf("unknown event type %q", w.EventType), nil)
	}
}
