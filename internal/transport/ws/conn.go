// Package ws provides the WebSocket transport for the chat client.
package ws

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/social-chat/internal/chat"
)

// maxFrameSize bounds a single inbound frame. Snapshots carry the full
// history of a conversation, so this is generous.
const maxFrameSize = 8 << 20

var aLongTimeAgo = time.Unix(1, 0)

// Dialer opens client-side WebSocket connections.
type Dialer struct {
	// Timeout bounds the TCP connect and the handshake. Zero means no limit
	// other than the context passed to Dial.
	Timeout time.Duration
}

// Dial connects to endpoint (ws:// or wss://), sending header with the
// upgrade request.
func (d Dialer) Dial(ctx context.Context, endpoint string, header http.Header) (chat.Conn, error) {
	dialer := ws.Dialer{
		Timeout: d.Timeout,
	}
	if len(header) > 0 {
		dialer.Header = ws.HandshakeHeaderHTTP(header)
	}

	conn, br, _, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return newConn(conn, br), nil
}

// Conn adapts a gobwas/ws client connection to chat.Conn.
type Conn struct {
	conn       net.Conn
	r          io.Reader
	remoteAddr string

	// wmu serializes whole frames; control replies written by the reader
	// must not interleave with data frames from the writer.
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// newConn wraps conn. br holds bytes the server sent right after the
// handshake, if any.
func newConn(conn net.Conn, br *bufio.Reader) *Conn {
	c := &Conn{conn: conn, r: conn}
	if br != nil {
		c.r = br
	}
	if addr := conn.RemoteAddr(); addr != nil {
		c.remoteAddr = addr.String()
	}
	return c
}

// Read implements chat.Conn.
// Reads the next text or binary message, answering control frames on the way.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := c.watchDeadline(ctx, c.conn.SetReadDeadline)
	defer stop()

	rd := &wsutil.Reader{
		Source:         c.r,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		MaxFrameSize:   maxFrameSize,
		OnIntermediate: c.handleControl,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, contextErr(ctx, err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, contextErr(ctx, err)
			}
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			return nil, contextErr(ctx, err)
		}
		return data, nil
	}
}

// Write implements chat.Conn.
// Writes data as a single text message; frames are JSON.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop := c.watchDeadline(ctx, c.conn.SetWriteDeadline)
	defer stop()

	return contextErr(ctx, wsutil.WriteClientText(c.conn, data))
}

// Ping implements chat.Conn.
func (c *Conn) Ping(ctx context.Context) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop := c.watchDeadline(ctx, c.conn.SetWriteDeadline)
	defer stop()

	return contextErr(ctx, wsutil.WriteClientMessage(c.conn, ws.OpPing, nil))
}

// Close implements chat.Conn.
// Sends a normal closure frame, best effort, and closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, body)
		c.wmu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// handleControl answers pings and close frames. The reply is assembled in
// memory and written under wmu as one unit.
func (c *Conn) handleControl(hdr ws.Header, r io.Reader) error {
	var reply bytes.Buffer
	err := wsutil.ControlHandler{
		Src:                 r,
		Dst:                 &reply,
		State:               ws.StateClientSide,
		DisableSrcCiphering: true,
	}.Handle(hdr)

	if reply.Len() > 0 {
		c.wmu.Lock()
		_, werr := c.conn.Write(reply.Bytes())
		c.wmu.Unlock()
		if err == nil {
			err = werr
		}
	}
	return err
}

// watchDeadline applies ctx's deadline through set and interrupts the
// pending operation when ctx is cancelled. The returned func must be called
// once the operation is done.
func (c *Conn) watchDeadline(ctx context.Context, set func(time.Time) error) func() {
	deadline, _ := ctx.Deadline()
	set(deadline)

	stop := context.AfterFunc(ctx, func() {
		set(aLongTimeAgo)
	})
	return func() { stop() }
}

// contextErr reports ctx's error in place of the timeout it caused.
func contextErr(ctx context.Context, err error) error {
	var netErr net.Error
	if err == nil || !errors.As(err, &netErr) || !netErr.Timeout() {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The socket deadline can fire just before the context's own timer.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}
