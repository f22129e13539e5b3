package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
)

// maxMessageSize bounds inbound messages on accepted connections. It
// must cover the largest frame-length boundary case (65536 bytes), with
// headroom.
const maxMessageSize = 1 << 20

// pingTimeout bounds how long a best-effort ping may stay in flight.
const pingTimeout = 10 * time.Second

// Conn is an open, bidirectional, message-oriented channel tagged with
// the side of the conversation it belongs to.
//
// Read and Write are guarded: they report success with a flag and never
// panic on protocol-level failure. A Conn is owned exclusively by the
// task running a role on it; the owner closes it.
type Conn interface {
	// ID returns the unique connection ID.
	ID() string
	// Side returns which end of the conversation this connection is.
	Side() Side
	// Subprotocol returns the negotiated subprotocol, or "".
	Subprotocol() string
	// Read reads the next message. Not-ok means the connection is no
	// longer usable for reading (closed, failed, or oversized frame).
	Read() ([]byte, bool)
	// Write sends one message. Not-ok means the write did not complete.
	Write(data []byte) bool
	// Ping sends a ping frame, best-effort. It never blocks the caller
	// waiting for a pong; pong arrival is observable only in peer logs.
	Ping()
	// Close closes the connection with the given status code. Closing
	// an already-closed connection returns ErrConnectionClosed.
	Close(code CloseCode) error
}

// serverConn wraps a connection accepted with coder/websocket.
type serverConn struct {
	id          string
	conn        *ws.Conn
	subprotocol string
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	closed      atomic.Bool
}

// newServerConn wraps an accepted connection. The request is only used
// for log attribution.
func newServerConn(wsConn *ws.Conn, r *http.Request, log *slog.Logger) *serverConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &serverConn{
		id:          uuid.NewString(),
		conn:        wsConn,
		subprotocol: wsConn.Subprotocol(),
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
	if r != nil {
		c.log = log.With("conn", c.id, "remote", r.RemoteAddr)
	} else {
		c.log = log.With("conn", c.id)
	}
	wsConn.SetReadLimit(maxMessageSize)
	return c
}

func (c *serverConn) ID() string          { return c.id }
func (c *serverConn) Side() Side          { return SideServer }
func (c *serverConn) Subprotocol() string { return c.subprotocol }

func (c *serverConn) Read() ([]byte, bool) {
	if c.closed.Load() {
		return nil, false
	}
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		c.log.Debug("read failed", "error", err)
		return nil, false
	}
	return data, true
}

func (c *serverConn) Write(data []byte) bool {
	if c.closed.Load() {
		return false
	}
	if err := c.conn.Write(c.ctx, ws.MessageText, data); err != nil {
		c.log.Debug("write failed", "size", len(data), "error", err)
		return false
	}
	return true
}

func (c *serverConn) Ping() {
	if c.closed.Load() {
		return
	}
	// coder/websocket waits for the pong, so run the ping detached and
	// only log the outcome.
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
		defer cancel()
		if err := c.conn.Ping(ctx); err != nil {
			c.log.Debug("ping failed", "error", err)
			return
		}
		c.log.Debug("pong received")
	}()
}

func (c *serverConn) Close(code CloseCode) error {
	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}
	err := c.conn.Close(ws.StatusCode(code), "")
	c.cancel()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// clientConn wraps a connection dialed with gorilla/websocket.
type clientConn struct {
	id          string
	conn        *gorilla.Conn
	subprotocol string
	log         *slog.Logger
	closed      atomic.Bool
}

func (c *clientConn) ID() string          { return c.id }
func (c *clientConn) Side() Side          { return SideClient }
func (c *clientConn) Subprotocol() string { return c.subprotocol }

func (c *clientConn) Read() ([]byte, bool) {
	if c.closed.Load() {
		return nil, false
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.log.Debug("read failed", "error", err)
		return nil, false
	}
	return data, true
}

func (c *clientConn) Write(data []byte) bool {
	if c.closed.Load() {
		return false
	}
	if err := c.conn.WriteMessage(gorilla.TextMessage, data); err != nil {
		c.log.Debug("write failed", "size", len(data), "error", err)
		return false
	}
	return true
}

func (c *clientConn) Ping() {
	if c.closed.Load() {
		return
	}
	deadline := time.Now().Add(pingTimeout)
	if err := c.conn.WriteControl(gorilla.PingMessage, nil, deadline); err != nil {
		c.log.Debug("ping failed", "error", err)
	}
}

func (c *clientConn) Close(code CloseCode) error {
	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}
	// Send the close frame best-effort, then tear down the socket.
	// Close is unilateral; the harness never negotiates a close.
	deadline := time.Now().Add(time.Second)
	msg := gorilla.FormatCloseMessage(int(code), "")
	_ = c.conn.WriteControl(gorilla.CloseMessage, msg, deadline)
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Dial opens a client-side connection to the given ws:// or wss:// URL.
// If subprotocol is non-empty it is offered during the handshake.
func Dial(ctx context.Context, rawURL, subprotocol string, log *slog.Logger) (Conn, error) {
	dialer := gorilla.Dialer{HandshakeTimeout: 10 * time.Second}
	if subprotocol != "" {
		dialer.Subprotocols = []string{subprotocol}
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	c := &clientConn{
		id:          uuid.NewString(),
		conn:        conn,
		subprotocol: conn.Subprotocol(),
	}
	c.log = log.With("conn", c.id, "url", rawURL)
	return c, nil
}
