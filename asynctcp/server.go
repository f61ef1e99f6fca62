package asynctcp

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/streambridge/logger"
)

// ClientCallback is invoked for each accepted connection, before its read
// loop starts, so handlers registered inside the callback never miss data.
type ClientCallback func(conn *Conn)

// Server is a TCP server that accepts connections and hands each one to the
// registered ClientCallback as an event-driven Conn. The server runs its
// accept loop in a goroutine and supports being stopped.
type Server struct {
	Logger      logger.Logger
	Addr        string
	IdleTimeout time.Duration // per-connection idle read timeout; 0 disables
	ReadBufSize int           // per-connection read buffer; 0 uses a default

	listener net.Listener
	onClient ClientCallback
	running  atomic.Bool
	nextID   atomic.Uint32
}

// OnClient registers the callback invoked for each accepted connection.
// Only one callback is active; repeated calls replace the previous one.
// Must be set before Start.
//
// Parameters:
//   - callback: Function receiving each accepted *Conn
func (s *Server) OnClient(callback ClientCallback) {
	s.onClient = callback
}

// Start binds to Addr and begins the accept loop in a goroutine. It is safe
// to call only when the server is not already running.
//
// Returns:
//   - An error if the server is already running or if listening fails
func (s *Server) Start() error {
	if s.running.Load() {
		s.Logger.Error("server already running")
		return fmt.Errorf("server %s already running", s.Addr)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server failed to listen on %s: %w", s.Addr, err)
	}

	s.listener = ln
	s.running.Store(true)

	s.Logger.Info("server started", logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.acceptLoop()

	return nil
}

// Stop stops the accept loop and closes the listener. Connections already
// handed to the callback are not closed; their owner decides their fate.
// Safe to call when the server is not running.
func (s *Server) Stop() {
	if !s.running.Load() {
		s.Logger.Info("server not running")
		return
	}

	s.running.Store(false)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.Logger.Info("server stopped")
}

// Port returns the port the server is listening on, or 0 when not running.
// Useful when Addr was bound with port 0.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}

	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	return 0
}

// acceptLoop runs in a goroutine and accepts incoming connections. Each
// connection is assigned an ID, passed to the client callback, and then
// started. It exits when the server is stopped.
func (s *Server) acceptLoop() {
	for s.running.Load() {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.Logger.Error("server accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		conn := newConn(nc, s.nextID.Add(1), s.ReadBufSize, s.IdleTimeout)
		s.Logger.Debug("connection accepted",
			logger.Field{Key: "id", Value: conn.ID()},
			logger.Field{Key: "remote", Value: conn.RemoteAddr()})

		if s.onClient != nil {
			s.onClient(conn)
		}
		conn.start()
	}
}
