// Package bridge connects one serial byte stream to any number of TCP
// clients. Serial bytes fan out to every client; client bytes merge into a
// single queue written back to the serial stream. The bridge does nothing on
// its own: an external scheduler calls Tick repeatedly, and every tick
// prunes dead clients, moves serial bytes out, and flushes client bytes in.
package bridge

import (
	"net"

	"github.com/cyberinferno/streambridge/linebuffer"
	"github.com/cyberinferno/streambridge/logger"
	"github.com/cyberinferno/streambridge/serial"
	"github.com/cyberinferno/streambridge/sink"
)

const (
	// DefaultBufSize is the chunk buffer size for one serial read iteration.
	DefaultBufSize = 256

	// DefaultLineSize is the line accumulator capacity.
	DefaultLineSize = linebuffer.DefaultCapacity
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithBufSize overrides the serial chunk buffer size.
func WithBufSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

// WithLineSize overrides the line accumulator capacity.
func WithLineSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.lineSize = n
		}
	}
}

// Bridge owns the client registry, the shared receive buffer, and the line
// accumulator for one serial stream. Register runs on the server's accept
// goroutine; everything else belongs to the tick loop.
type Bridge struct {
	stream   serial.Stream
	sink     sink.Sink
	log      logger.Logger
	bufSize  int
	lineSize int

	registry *Registry
	recv     *recvBuffer
	acc      *linebuffer.Accumulator
	chunk    []byte
}

// New creates a Bridge over the given stream. The sink receives completed
// serial lines and may be nil. The receive buffer reserves one chunk's worth
// of capacity up front; it grows past that when clients outpace the drain.
//
// Parameters:
//   - stream: The serial stream to bridge
//   - s: Reporting sink for completed lines; may be nil
//   - log: Structured logger
//   - opts: Optional size overrides
//
// Returns:
//   - A ready Bridge
func New(stream serial.Stream, s sink.Sink, log logger.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		stream:   stream,
		sink:     s,
		log:      log,
		bufSize:  DefaultBufSize,
		lineSize: DefaultLineSize,
		registry: &Registry{},
	}

	for _, opt := range opts {
		opt(b)
	}

	b.recv = newRecvBuffer(b.bufSize)
	b.acc = linebuffer.New(b.lineSize)
	b.chunk = make([]byte, b.bufSize)

	return b
}

// Register wraps an accepted connection into a client handle and adds it to
// the registry. A nil connection is ignored. Install this as the TCP
// server's accept callback.
func (b *Bridge) Register(conn Conn) {
	if conn == nil {
		return
	}

	c := newClient(conn, b.recv)
	b.log.Info("new client connected", logger.Field{Key: "client", Value: c.Identifier()})
	b.registry.Register(c)
}

// Tick performs one bridge iteration, strictly ordered: prune disconnected
// clients, drain the serial stream toward the clients, then flush the shared
// receive buffer toward the serial stream. It never fails; transport errors
// along the way are absorbed or logged.
func (b *Bridge) Tick() {
	b.registry.Prune(b.log)
	b.read()
	b.write()
}

// read drains the serial stream one chunk at a time. Each chunk feeds the
// line accumulator and is then written to every registered client in
// registry order, disconnected flag notwithstanding; a doomed client's
// failed write is absorbed and the client is pruned next tick.
func (b *Bridge) read() {
	for {
		avail := b.stream.Available()
		if avail <= 0 {
			return
		}

		n, err := b.stream.Read(b.chunk[:min(avail, b.bufSize)])
		if err != nil {
			b.log.Warn("serial read failed", logger.Field{Key: "error", Value: err})
			return
		}
		if n == 0 {
			return
		}

		chunk := b.chunk[:n]
		if line, ok := b.acc.Feed(chunk); ok && b.sink != nil {
			b.sink.Publish(line)
		}

		for _, c := range b.registry.Snapshot() {
			c.write(chunk)
		}
	}
}

// write flushes the entire shared receive buffer to the serial stream,
// repeating on short writes until it is consumed. Runs every tick, whether
// or not the read step moved anything.
func (b *Bridge) write() {
	data := b.recv.Drain()
	for len(data) > 0 {
		n, err := b.stream.Write(data)
		if err != nil {
			b.log.Warn("serial write failed", logger.Field{Key: "error", Value: err})
			return
		}
		if n <= 0 {
			return
		}

		data = data[n:]
	}
}

// Shutdown force-closes every registered client's connection. The registry
// is left as-is; process teardown is assumed to follow.
func (b *Bridge) Shutdown() {
	b.log.Info("shutting down stream bridge",
		logger.Field{Key: "clients", Value: b.registry.Len()})
	b.registry.CloseAll()
}

// DumpConfig logs the listening address and port. Informational only.
func (b *Bridge) DumpConfig(port int) {
	b.log.Info("stream bridge configuration",
		logger.Field{Key: "address", Value: localAddress()},
		logger.Field{Key: "port", Value: port})
}

// ClientCount returns the number of registered clients, pruned or not yet.
func (b *Bridge) ClientCount() int {
	return b.registry.Len()
}

// localAddress returns the best-available local unicast address string, or
// "" when none is found.
func localAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}

		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String()
		}
	}

	return ""
}
