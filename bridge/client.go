package bridge

import "sync/atomic"

// Client represents one connected TCP peer. It owns the connection, tracks
// a liveness flag, and funnels inbound bytes into the shared receive buffer.
// The error, disconnect, and timeout notifications only set the flag; the
// registry's prune pass performs the actual removal and close.
type Client struct {
	conn         Conn
	identifier   string
	disconnected atomic.Bool
}

// newClient wraps an accepted connection and registers its notification
// handlers. The identifier is the remote address captured now, so it stays
// readable after the peer goes away.
func newClient(conn Conn, recv *recvBuffer) *Client {
	c := &Client{
		conn:       conn,
		identifier: conn.RemoteAddr(),
	}

	conn.OnError(func(error) { c.disconnected.Store(true) })
	conn.OnDisconnect(func() { c.disconnected.Store(true) })
	conn.OnTimeout(func() { c.disconnected.Store(true) })

	conn.OnData(func(data []byte) {
		if len(data) == 0 {
			return
		}

		recv.Append(data)
	})

	return c
}

// Identifier returns the client's remote address string.
func (c *Client) Identifier() string {
	return c.identifier
}

// Disconnected reports whether a transport notification flagged this client.
func (c *Client) Disconnected() bool {
	return c.disconnected.Load()
}

// write fans a serial chunk out to this client. Transport errors are
// absorbed; a failing client flags itself via its handlers and is pruned on
// a later tick.
func (c *Client) write(p []byte) {
	_ = c.conn.Write(p)
}

// close force-closes the underlying connection. Safe to call repeatedly.
func (c *Client) close() {
	_ = c.conn.Close(true)
}
