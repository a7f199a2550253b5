package main

import (
	"testing"

	"github.com/omochice/social-chat/pkg/protocol"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    command
		wantErr bool
	}{
		{name: "blank", line: "   ", want: command{kind: cmdNone}},
		{name: "message", line: " hi there ", want: command{kind: cmdMessage, text: " hi there "}},
		{name: "join", line: "/join 7", want: command{kind: cmdJoin, conversation: protocol.Identity{ID: 7}}},
		{name: "group", line: "/group 9", want: command{kind: cmdJoin, conversation: protocol.Identity{ID: 9, IsGroup: true}}},
		{name: "leave", line: "/leave", want: command{kind: cmdLeave}},
		{name: "reconnect", line: "/reconnect", want: command{kind: cmdReconnect}},
		{name: "quit", line: "/quit", want: command{kind: cmdQuit}},
		{name: "exit", line: "/exit", want: command{kind: cmdQuit}},
		{name: "join without id", line: "/join", wantErr: true},
		{name: "join bad id", line: "/join abc", wantErr: true},
		{name: "join zero", line: "/group 0", wantErr: true},
		{name: "unknown", line: "/dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseCommand(%q) error = nil", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommand(%q) error = %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
