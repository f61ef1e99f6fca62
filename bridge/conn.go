package bridge

import "github.com/cyberinferno/streambridge/asynctcp"

// Conn is the platform TCP connection the bridge consumes. asynctcp.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	// RemoteAddr returns the peer address, valid for the connection's
	// whole lifetime.
	RemoteAddr() string

	// OnData registers the handler for received bytes.
	OnData(handler asynctcp.DataHandler)

	// OnError registers the handler for transport errors.
	OnError(handler asynctcp.ErrorHandler)

	// OnDisconnect registers the handler for peer-initiated closes.
	OnDisconnect(handler asynctcp.EventHandler)

	// OnTimeout registers the handler for idle timeouts.
	OnTimeout(handler asynctcp.EventHandler)

	// Write sends bytes to the peer.
	Write(data []byte) error

	// Close closes the connection; must be idempotent. With force set,
	// unsent data may be discarded.
	Close(force bool) error
}
