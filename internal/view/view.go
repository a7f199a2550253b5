// Package view turns conversation snapshots into display lines. It never
// modifies the snapshot it is given.
package view

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/omochice/social-chat/pkg/protocol"
)

// UnavailableText is shown in place of the conversation when messages
// cannot be received.
const UnavailableText = "Something went wrong while trying to receive messages"

// LoadingText is shown while a joined conversation has no snapshot yet.
const LoadingText = "Loading messages..."

// DefaultTimeLayout formats message timestamps.
const DefaultTimeLayout = "02.01.2006 15:04"

// Alignment is the side a message is drawn on.
type Alignment int

const (
	// AlignLeft is used for messages written by other users.
	AlignLeft Alignment = iota
	// AlignRight is used for the current user's own messages.
	AlignRight
)

// String returns the string representation of Alignment
func (a Alignment) String() string {
	if a == AlignRight {
		return "right"
	}
	return "left"
}

// Line is one rendered message.
type Line struct {
	Author     int64
	AuthorLink string
	Text       string
	Time       time.Time
	Align      Alignment
}

// Reverse returns msgs newest first in a new slice.
func Reverse(msgs []protocol.ServerMessage) []protocol.ServerMessage {
	out := make([]protocol.ServerMessage, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

// AuthorLink returns the profile link of a message author.
func AuthorLink(userID int64) string {
	return "/user/" + strconv.FormatInt(userID, 10)
}

// Align places a message written by author for a session of user self.
func Align(self, author int64) Alignment {
	if self == author {
		return AlignRight
	}
	return AlignLeft
}

// Lines returns the display lines of snap for user self in display order.
func Lines(snap protocol.Snapshot, self int64) []Line {
	msgs := Reverse(snap.Chat)
	lines := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, Line{
			Author:     m.UserID,
			AuthorLink: AuthorLink(m.UserID),
			Text:       m.Text,
			Time:       m.CreationDate.Time,
			Align:      Align(self, m.UserID),
		})
	}
	return lines
}

// Renderer writes conversations as plain text.
type Renderer struct {
	w      io.Writer
	self   int64
	layout string
	loc    *time.Location
	width  int
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTimeLayout sets the timestamp layout.
func WithTimeLayout(layout string) RendererOption {
	return func(r *Renderer) { r.layout = layout }
}

// WithLocation sets the time zone timestamps are shown in. Defaults to local time.
func WithLocation(loc *time.Location) RendererOption {
	return func(r *Renderer) { r.loc = loc }
}

// WithWidth sets the column right-aligned messages are padded to.
func WithWidth(width int) RendererOption {
	return func(r *Renderer) { r.width = width }
}

// NewRenderer creates a Renderer for the session of user self.
func NewRenderer(w io.Writer, self int64, opts ...RendererOption) *Renderer {
	r := &Renderer{
		w:      w,
		self:   self,
		layout: DefaultTimeLayout,
		loc:    time.Local,
		width:  72,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes the conversation view. unavailable takes precedence over
// any snapshot; a missing snapshot renders the loading state.
func (r *Renderer) Render(snap protocol.Snapshot, ok, unavailable bool) error {
	if unavailable {
		_, err := fmt.Fprintln(r.w, UnavailableText)
		return err
	}
	if !ok {
		_, err := fmt.Fprintln(r.w, LoadingText)
		return err
	}

	for _, line := range Lines(snap, r.self) {
		if err := r.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) writeLine(line Line) error {
	header := fmt.Sprintf("%s  %s", line.AuthorLink, line.Time.In(r.loc).Format(r.layout))
	if line.Align == AlignLeft {
		_, err := fmt.Fprintf(r.w, "%s\n%s\n", header, line.Text)
		return err
	}
	_, err := fmt.Fprintf(r.w, "%*s\n%*s\n", r.width, header, r.width, line.Text)
	return err
}
