// Package asynctcp provides an event-driven TCP server and connection.
// Accepted connections notify callers of received data, errors, disconnects,
// and idle timeouts via registered handlers, mirroring the asynchronous
// connection model of embedded networking stacks.
package asynctcp

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// DataHandler is called with each chunk of received data. The slice is owned
// by the handler; it is not reused by the connection.
type DataHandler func(data []byte)

// ErrorHandler is called when a read or connection error occurs.
type ErrorHandler func(err error)

// EventHandler is called for events that carry no payload (disconnect,
// timeout).
type EventHandler func()

// Conn wraps an accepted net.Conn and drives it with a read-loop goroutine.
// Handlers are invoked synchronously on that goroutine, so data arrives at
// the registered DataHandler in the order it was read from the socket.
// Register handlers before the connection is started; the server guarantees
// this by running the accept callback first.
//
// At most one of the error, disconnect, or timeout handlers fires per
// connection; the read loop exits afterwards. Handlers registered as nil are
// simply skipped.
type Conn struct {
	id          uint32
	conn        net.Conn
	remoteAddr  string
	readBufSize int
	idleTimeout time.Duration

	mu           sync.RWMutex
	onData       DataHandler
	onError      ErrorHandler
	onDisconnect EventHandler
	onTimeout    EventHandler
	closed       bool
}

func newConn(nc net.Conn, id uint32, readBufSize int, idleTimeout time.Duration) *Conn {
	if readBufSize < 1 {
		readBufSize = 4096
	}

	return &Conn{
		id:          id,
		conn:        nc,
		remoteAddr:  nc.RemoteAddr().String(),
		readBufSize: readBufSize,
		idleTimeout: idleTimeout,
	}
}

// ID returns the connection's server-assigned identifier.
func (c *Conn) ID() uint32 {
	return c.id
}

// RemoteAddr returns the peer address captured at accept time. It remains
// valid after the connection is closed.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// OnData registers the handler for incoming data. Only one handler is
// active; repeated calls replace the previous handler. Pass nil to clear.
func (c *Conn) OnData(handler DataHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = handler
}

// OnError registers the handler for read and connection errors. Only one
// handler is active; repeated calls replace the previous handler.
func (c *Conn) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// OnDisconnect registers the handler invoked when the peer closes the
// connection. Only one handler is active; repeated calls replace it.
func (c *Conn) OnDisconnect(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = handler
}

// OnTimeout registers the handler invoked when the connection sits idle
// longer than the server's idle timeout. Only one handler is active;
// repeated calls replace it. Never invoked when no idle timeout is set.
func (c *Conn) OnTimeout(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTimeout = handler
}

// Write sends data to the peer. It returns an error if the connection is
// closed or the write fails; a failed write does not close the connection,
// the read loop will surface the terminal event.
//
// Parameters:
//   - data: Bytes to send; not modified
//
// Returns:
//   - nil on success, or the write error
func (c *Conn) Write(data []byte) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return net.ErrClosed
	}

	_, err := c.conn.Write(data)
	return err
}

// Close closes the connection. With force set, pending outbound data is
// discarded (linger 0) so the close is immediate. Idempotent; closing an
// already-closed connection returns nil.
//
// Parameters:
//   - force: Discard unsent data instead of flushing it
//
// Returns:
//   - An error if the underlying close failed
func (c *Conn) Close(force bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if force {
		if tc, ok := c.conn.(*net.TCPConn); ok {
			_ = tc.SetLinger(0)
		}
	}

	return c.conn.Close()
}

// start launches the read loop. Called by the server after the accept
// callback has had a chance to register handlers.
func (c *Conn) start() {
	go c.readLoop()
}

func (c *Conn) readLoop() {
	buf := make([]byte, c.readBufSize)
	for {
		if c.isClosed() {
			return
		}

		if c.idleTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
				c.emitError(err)
				return
			}
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.emitData(data)
		}

		if err != nil {
			if c.isClosed() {
				return
			}

			var ne net.Error
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				c.emitTimeout()
			case errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed):
				c.emitDisconnect()
			default:
				c.emitError(err)
			}

			return
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Conn) emitData(data []byte) {
	c.mu.RLock()
	handler := c.onData
	c.mu.RUnlock()

	if handler != nil {
		handler(data)
	}
}

func (c *Conn) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		handler(err)
	}
}

func (c *Conn) emitDisconnect() {
	c.mu.RLock()
	handler := c.onDisconnect
	c.mu.RUnlock()

	if handler != nil {
		handler()
	}
}

func (c *Conn) emitTimeout() {
	c.mu.RLock()
	handler := c.onTimeout
	c.mu.RUnlock()

	if handler != nil {
		handler()
	}
}
