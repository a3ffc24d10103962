// Package relay holds the connection plumbing shared by the presence and
// location websocket engines.
package relay

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/errors"
)

// Conn is one live client connection as seen by an engine. Implementations
// must be safe for concurrent Send calls.
type Conn interface {
	// Send marshals v as JSON and writes it as one text frame
	Send(v any) error
	// Close tears down the underlying transport
	Close() error
}

// Engine is a websocket message engine fed by the transport layer. Both
// methods are invoked from the connection's read loop.
type Engine interface {
	// HandleMessage processes one raw inbound frame; malformed or unknown
	// frames are logged and dropped, never returned as fatal
	HandleMessage(conn Conn, raw []byte)
	// HandleDisconnect removes every record owned by conn
	HandleDisconnect(conn Conn)
}

// WSConn wraps a gorilla websocket connection. Gorilla conns do not support
// concurrent writers, so every write goes through writeMu.
type WSConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

// NewWSConn wraps an upgraded websocket connection
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// Send writes v as a JSON text frame
func (c *WSConn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errors.ErrConnClosed
	}
	return c.ws.WriteJSON(v)
}

// Close closes the websocket; subsequent Sends fail with ErrConnClosed
func (c *WSConn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

// ReadMessage reads the next frame from the wire
func (c *WSConn) ReadMessage() ([]byte, error) {
	_, raw, err := c.ws.ReadMessage()
	return raw, err
}
