package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/omochice/social-chat/pkg/protocol"
)

func TestEncodeJoin(t *testing.T) {
	tests := []struct {
		name string
		id   protocol.Identity
		want string
	}{
		{
			name: "direct conversation",
			id:   protocol.Identity{ID: 7, IsGroup: false},
			want: `{"eventType":"join","payload":{"id":7,"isGroup":false}}`,
		},
		{
			name: "group conversation",
			id:   protocol.Identity{ID: 9, IsGroup: true},
			want: `{"eventType":"join","payload":{"id":9,"isGroup":true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(protocol.EncodeJoin(tt.id)); got != tt.want {
				t.Errorf("EncodeJoin() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeMessage(t *testing.T) {
	got := string(protocol.EncodeMessage("  hello <3 "))
	want := `{"eventType":"message","payload":{"content":"  hello <3 "}}`
	if got != want {
		t.Errorf("EncodeMessage() = %s, want %s", got, want)
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    protocol.Frame
		wantErr bool
	}{
		{
			name: "join frame",
			data: protocol.EncodeJoin(protocol.Identity{ID: 3, IsGroup: true}),
			want: protocol.Frame{EventType: protocol.EventJoin, Join: protocol.Identity{ID: 3, IsGroup: true}},
		},
		{
			name: "message frame",
			data: protocol.EncodeMessage("hi"),
			want: protocol.Frame{EventType: protocol.EventMessage, Content: "hi"},
		},
		{
			name:    "unknown event type",
			data:    []byte(`{"eventType":"typing","payload":{}}`),
			wantErr: true,
		},
		{
			name:    "join without isGroup",
			data:    []byte(`{"eventType":"join","payload":{"id":1}}`),
			wantErr: true,
		},
		{
			name:    "missing payload",
			data:    []byte(`{"eventType":"message"}`),
			wantErr: true,
		},
		{
			name:    "not json",
			data:    []byte(`join 7`),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.DecodeFrame(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, protocol.ErrDecode) {
					t.Errorf("DecodeFrame() error = %v, want ErrDecode", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("DecodeFrame() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t0 := time.UnixMilli(1700000000000)

	tests := []struct {
		name     string
		data     string
		wantLen  int
		wantConv *protocol.Identity
		wantErr  bool
	}{
		{
			name:    "single message with millisecond timestamp",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":1700000000000}]}`,
			wantLen: 1,
		},
		{
			name:    "rfc3339 timestamp",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":"2023-11-14T22:13:20Z"}]}`,
			wantLen: 1,
		},
		{
			name:    "empty conversation",
			data:    `{"chat":[]}`,
			wantLen: 0,
		},
		{
			name:     "echoed identity",
			data:     `{"id":9,"isGroup":true,"chat":[]}`,
			wantConv: &protocol.Identity{ID: 9, IsGroup: true},
		},
		{
			name:    "missing chat field",
			data:    `{"messages":[]}`,
			wantErr: true,
		},
		{
			name:    "null chat field",
			data:    `{"chat":null}`,
			wantErr: true,
		},
		{
			name:    "message missing text",
			data:    `{"chat":[{"userId":3,"creationDate":1}]}`,
			wantErr: true,
		},
		{
			name:    "malformed timestamp",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":"yesterday"}]}`,
			wantErr: true,
		},
		{
			name:    "fractional millisecond timestamp",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":1700000000000.5}]}`,
			wantLen: 1,
		},
		{
			name:    "timestamp beyond int64",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":1e30}]}`,
			wantErr: true,
		},
		{
			name:    "negative timestamp beyond int64",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":"-1e30"}]}`,
			wantErr: true,
		},
		{
			name:    "not a number timestamp",
			data:    `{"chat":[{"userId":3,"text":"hi","creationDate":"NaN"}]}`,
			wantErr: true,
		},
		{
			name:    "top level array",
			data:    `[{"userId":3}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.Decode([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var decodeErr *protocol.DecodeError
				if !errors.As(err, &decodeErr) {
					t.Errorf("Decode() error type = %T, want *DecodeError", err)
				}
				return
			}
			if len(got.Chat) != tt.wantLen {
				t.Errorf("len(Chat) = %d, want %d", len(got.Chat), tt.wantLen)
			}
			if tt.wantLen > 0 {
				if got.Chat[0].Text != "hi" || got.Chat[0].UserID != 3 {
					t.Errorf("Chat[0] = %+v", got.Chat[0])
				}
				if !got.Chat[0].CreationDate.Equal(t0) {
					t.Errorf("CreationDate = %v, want %v", got.Chat[0].CreationDate.Time, t0)
				}
			}
			switch {
			case tt.wantConv == nil && got.Conversation != nil:
				t.Errorf("Conversation = %v, want nil", *got.Conversation)
			case tt.wantConv != nil && (got.Conversation == nil || *got.Conversation != *tt.wantConv):
				t.Errorf("Conversation = %v, want %v", got.Conversation, *tt.wantConv)
			}
		})
	}
}

func TestDecode_PreservesServerOrder(t *testing.T) {
	data := `{"chat":[
		{"userId":1,"text":"m1","creationDate":1},
		{"userId":2,"text":"m2","creationDate":2},
		{"userId":1,"text":"m3","creationDate":3}]}`

	got, err := protocol.Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if got.Chat[i].Text != want {
			t.Errorf("Chat[%d].Text = %q, want %q", i, got.Chat[i].Text, want)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, id := range []protocol.Identity{{ID: 7}, {ID: 9, IsGroup: true}, {ID: 0, IsGroup: true}} {
		join, err := protocol.DecodeFrame(protocol.EncodeJoin(id))
		if err != nil {
			t.Fatalf("DecodeFrame failed: %v", err)
		}

		reply := protocol.Snapshot{
			Chat:         []protocol.ServerMessage{{UserID: 3, Text: "hi", CreationDate: protocol.UnixMilli(42)}},
			Conversation: &join.Join,
		}
		got, err := protocol.Decode(protocol.EncodeSnapshot(reply))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.Conversation == nil || *got.Conversation != id {
			t.Errorf("Conversation = %v, want %v", got.Conversation, id)
		}
		if got.Chat[0].CreationDate.UnixMilli() != 42 {
			t.Errorf("CreationDate = %d, want 42", got.Chat[0].CreationDate.UnixMilli())
		}
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(protocol.UnixMilli(1700000000123))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "1700000000123" {
		t.Errorf("Marshal() = %s, want 1700000000123", data)
	}
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name string
		et   protocol.EventType
		want string
	}{
		{"join type", protocol.EventJoin, "JOIN"},
		{"message type", protocol.EventMessage, "MESSAGE"},
		{"unknown type", protocol.EventType("leave"), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.et.String(); got != tt.want {
				t.Errorf("EventType.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
