// Package client implements the connection manager of the chat client: it
// owns the single WebSocket connection of a session, queues outgoing frames
// and hands inbound frames to one handler.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omochice/social-chat/internal/chat"
	"github.com/omochice/social-chat/internal/metrics"
	wstransport "github.com/omochice/social-chat/internal/transport/ws"
)

const (
	writeWait           = 10 * time.Second
	dialTimeout         = 10 * time.Second
	defaultPingInterval = 15 * time.Second
	defaultQueueSize    = 64
)

// Dialer opens a connection to the chat server.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (chat.Conn, error)
}

// Config holds connection parameters.
type Config struct {
	Endpoint     string        // WebSocket URL, e.g. "ws://localhost:8080/ws"
	Token        string        // bearer token; sent as header and "token" query parameter
	PingInterval time.Duration // keep-alive interval (default 15s)
	QueueSize    int           // outbound frames buffered before Send fails (default 64)
	Dialer       Dialer        // defaults to the gobwas/ws dialer
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Client is the connection manager. One Client serves one authenticated
// session and drives exactly one chat.Session.
//
// Frames passed to Send before the connection is open are buffered and
// written in order once it opens. A failed connection moves to
// StateErrored; there is no automatic reconnection, callers call Connect
// again and re-issue their join.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	sendCh  chan []byte

	mu       sync.Mutex
	state    State
	conn     chat.Conn
	connID   string
	stop     chan struct{} // closed when conn is released
	handler  func([]byte)
	watchers []func(StateEvent)
	wg       sync.WaitGroup
}

// New creates a Client in StateIdle. No connection is made until Connect.
func New(cfg Config) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Dialer == nil {
		cfg.Dialer = wstransport.Dialer{Timeout: dialTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}

	return &Client{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		sendCh:  make(chan []byte, cfg.QueueSize),
	}
}

// Connect establishes the connection. On failure the client is left in
// StateErrored and a *ConnectionError is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnecting, StateOpen:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	var stale int
	if c.state == StateErrored {
		stale = c.drainLocked()
	}
	ev := c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.emit(ev)

	if stale > 0 {
		c.logger.Warn("discarding frames queued on the failed connection", "frames", stale)
	}

	endpoint, header, err := c.target()
	var conn chat.Conn
	if err == nil {
		conn, err = c.cfg.Dialer.Dial(ctx, endpoint, header)
	}
	if err != nil {
		connErr := &ConnectionError{Op: "dial", Err: err}
		c.mu.Lock()
		if c.state != StateConnecting {
			c.mu.Unlock()
			return ErrClosed
		}
		ev := c.setStateLocked(StateErrored, connErr)
		c.mu.Unlock()
		c.emit(ev)

		c.logger.Error("failed to connect to chat server", "endpoint", c.cfg.Endpoint, "error", err)
		return connErr
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	stop := make(chan struct{})
	c.conn = conn
	c.connID = uuid.NewString()
	c.stop = stop
	connID := c.connID
	ev = c.setStateLocked(StateOpen, nil)

	c.wg.Add(2)
	go c.readLoop(conn, stop)
	go c.writeLoop(conn, stop)
	c.mu.Unlock()
	c.emit(ev)

	c.logger.Info("connected to chat server",
		"endpoint", c.cfg.Endpoint,
		"remote", conn.RemoteAddr(),
		"conn", connID,
	)
	return nil
}

// Send queues frame for writing. It never blocks. Frames queued before the
// connection opens are kept and written in order once it does.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		c.metrics.SendRejected.WithLabelValues("closed").Inc()
		return ErrClosed
	case StateErrored:
		c.metrics.SendRejected.WithLabelValues("not_connected").Inc()
		return ErrNotConnected
	}

	select {
	case c.sendCh <- frame:
		return nil
	default:
		c.metrics.SendRejected.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

// OnMessage registers the handler for inbound frames, replacing any previous
// one. The handler runs on the read goroutine and must not call Close. It is
// a no-op after Close.
func (c *Client) OnMessage(handler func(frame []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.handler = handler
}

// OnStateChange registers fn to be called after every state transition.
func (c *Client) OnStateChange(fn func(StateEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Available reports whether messages can still be delivered, i.e. the
// client has neither failed nor been closed.
func (c *Client) Available() bool {
	switch c.State() {
	case StateErrored, StateClosed:
		return false
	default:
		return true
	}
}

// Close terminates the connection and stops delivering inbound frames.
// Calling it again is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	conn, connID := c.conn, c.connID
	if conn != nil {
		c.conn = nil
		close(c.stop)
	}
	c.handler = nil
	ev := c.setStateLocked(StateClosed, nil)
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	c.emit(ev)

	if conn != nil {
		c.logger.Info("disconnected from chat server", "conn", connID)
	}
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// target returns the URL and header carrying the credentials.
func (c *Client) target() (string, http.Header, error) {
	if c.cfg.Token == "" {
		return c.cfg.Endpoint, nil, nil
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)
	return u.String(), header, nil
}

// fail moves the client to StateErrored if conn is still the live
// connection. Failures of a connection already released by Close are
// ignored.
func (c *Client) fail(conn chat.Conn, op string, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	connID := c.connID
	c.conn = nil
	close(c.stop)
	connErr := &ConnectionError{Op: op, Err: err}
	ev := c.setStateLocked(StateErrored, connErr)
	c.mu.Unlock()

	conn.Close()
	c.logger.Warn("chat connection lost", "op", op, "error", err, "conn", connID)
	c.emit(ev)
}

// readLoop hands every inbound frame to the handler until conn fails or is
// released.
func (c *Client) readLoop(conn chat.Conn, stop <-chan struct{}) {
	defer c.wg.Done()

	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			select {
			case <-stop:
			default:
				c.fail(conn, "read", err)
			}
			return
		}
		c.metrics.FramesReceived.Inc()

		c.mu.Lock()
		handler := c.handler
		live := c.conn == conn
		c.mu.Unlock()

		if !live {
			return
		}
		if handler != nil {
			handler(data)
		}
	}
}

// writeLoop owns all writes on conn: queued frames and keep-alive pings.
func (c *Client) writeLoop(conn chat.Conn, stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case frame := <-c.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := conn.Write(ctx, frame)
			cancel()
			if err != nil {
				c.fail(conn, "write", err)
				return
			}
			c.metrics.FramesSent.Inc()
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				c.fail(conn, "ping", err)
				return
			}
		}
	}
}

// drainLocked empties the outbound queue and returns how many frames it held.
func (c *Client) drainLocked() int {
	n := 0
	for {
		select {
		case <-c.sendCh:
			n++
		default:
			return n
		}
	}
}

func (c *Client) setStateLocked(s State, err error) StateEvent {
	ev := StateEvent{Old: c.state, New: s, Err: err}
	c.state = s
	c.metrics.ConnectionState.Set(float64(s))
	return ev
}

func (c *Client) emit(ev StateEvent) {
	c.mu.Lock()
	watchers := slices.Clone(c.watchers)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(ev)
	}
}
