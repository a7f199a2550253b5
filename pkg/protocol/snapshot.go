package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp is a message creation time. The server writes unix milliseconds;
// RFC 3339 strings and decimal millisecond strings are accepted as well.
type Timestamp struct {
	time.Time
}

// UnixMilli builds a Timestamp from unix milliseconds.
func UnixMilli(ms int64) Timestamp {
	return Timestamp{Time: time.UnixMilli(ms)}
}

// MarshalJSON writes unix milliseconds, the form the server uses.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, t.Time.UnixMilli(), 10), nil
}

// UnmarshalJSON accepts a number or a string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("empty timestamp")
	}

	if data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		return t.setMillis(n.String())
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	return t.setMillis(s)
}

func (t *Timestamp) setMillis(s string) error {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	t.Time = time.UnixMilli(int64(f))
	return nil
}

// ServerMessage is one chat message as delivered by the server.
type ServerMessage struct {
	UserID       int64     `json:"userId"`
	Text         string    `json:"text"`
	CreationDate Timestamp `json:"creationDate"`
}

// Snapshot is the full known history of a conversation, in server order.
// Conversation is non-nil only when the server echoed the identity the
// snapshot answers.
type Snapshot struct {
	Chat         []ServerMessage
	Conversation *Identity
}

type wireSnapshot struct {
	Chat    *[]wireMessage `json:"chat"`
	ID      *int64         `json:"id,omitempty"`
	IsGroup *bool          `json:"isGroup,omitempty"`
}

type wireMessage struct {
	UserID       *int64     `json:"userId"`
	Text         *string    `json:"text"`
	CreationDate *Timestamp `json:"creationDate"`
}

// Decode decodes a server snapshot frame. A missing chat field, a message
// missing any of its fields, or a malformed timestamp yields a *DecodeError.
func Decode(data []byte) (Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, newDecodeError("invalid snapshot", err)
	}
	if w.Chat == nil {
		return Snapshot{}, newDecodeError("missing chat field", nil)
	}

	chat := make([]ServerMessage, 0, len(*w.Chat))
	for i, m := range *w.Chat {
		if m.UserID == nil || m.Text == nil || m.CreationDate == nil {
			return Snapshot{}, newDecodeError(fmt.Sprintf("message %d requires userId, text and creationDate", i), nil)
		}
		chat = append(chat, ServerMessage{
			UserID:       *m.UserID,
			Text:         *m.Text,
			CreationDate: *m.CreationDate,
		})
	}

	snap := Snapshot{Chat: chat}
	if w.ID != nil {
		id := Identity{ID: *w.ID}
		if w.IsGroup != nil {
			id.IsGroup = *w.IsGroup
		}
		snap.Conversation = &id
	}
	return snap, nil
}

// EncodeSnapshot encodes a snapshot in the server's format. The identity is
// included only when Conversation is set.
func EncodeSnapshot(s Snapshot) []byte {
	out := struct {
		Chat    []ServerMessage `json:"chat"`
		ID      *int64          `json:"id,omitempty"`
		IsGroup *bool           `json:"isGroup,omitempty"`
	}{Chat: s.Chat}
	if out.Chat == nil {
		out.Chat = []ServerMessage{}
	}
	if s.Conversation != nil {
		id, group := s.Conversation.ID, s.Conversation.IsGroup
		out.ID, out.IsGroup = &id, &group
	}
	data, _ := json.Marshal(out)
	return data
}
