package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/streambridge/asynctcp"
	"github.com/cyberinferno/streambridge/logger"
)

// fakeConn implements Conn for tests. Handlers can be triggered directly to
// simulate platform notifications.
type fakeConn struct {
	addr     string
	writeErr error

	mu           sync.Mutex
	writes       [][]byte
	closeCalls   int
	onData       asynctcp.DataHandler
	onError      asynctcp.ErrorHandler
	onDisconnect asynctcp.EventHandler
	onTimeout    asynctcp.EventHandler
}

func (f *fakeConn) RemoteAddr() string { return f.addr }

func (f *fakeConn) OnData(h asynctcp.DataHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onData = h
}

func (f *fakeConn) OnError(h asynctcp.ErrorHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = h
}

func (f *fakeConn) OnDisconnect(h asynctcp.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = h
}

func (f *fakeConn) OnTimeout(h asynctcp.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTimeout = h
}

func (f *fakeConn) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, buf)
	return nil
}

func (f *fakeConn) Close(force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeConn) received() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []byte
	for _, w := range f.writes {
		all = append(all, w...)
	}
	return all
}

func (f *fakeConn) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func (f *fakeConn) deliver(data []byte) { f.onData(data) }
func (f *fakeConn) dropPeer()           { f.onDisconnect() }
func (f *fakeConn) failPeer(err error)  { f.onError(err) }
func (f *fakeConn) idleOut()            { f.onTimeout() }

// fakeStream implements serial.Stream over in-memory slices. maxWrite, when
// set, bounds each Write to exercise the short-write loop.
type fakeStream struct {
	pending  []byte
	written  []byte
	maxWrite int
	writeErr error
	writeOps int
}

func (s *fakeStream) Available() int { return len(s.pending) }

func (s *fakeStream) Read(p []byte) (int, error) {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.writeOps++
	if s.writeErr != nil {
		return 0, s.writeErr
	}

	n := len(p)
	if s.maxWrite > 0 && n > s.maxWrite {
		n = s.maxWrite
	}

	s.written = append(s.written, p[:n]...)
	return n, nil
}

func (s *fakeStream) push(p []byte) { s.pending = append(s.pending, p...) }

// recordSink collects published lines.
type recordSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordSink) Publish(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordSink) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestBridge_RegisterNilConnIgnored(t *testing.T) {
	b := New(&fakeStream{}, nil, logger.Nop())
	b.Register(nil)
	assert.Equal(t, 0, b.ClientCount())
}

func TestBridge_FanOut(t *testing.T) {
	stream := &fakeStream{}
	b := New(stream, nil, logger.Nop())

	conns := []*fakeConn{{addr: "10.0.0.1:1"}, {addr: "10.0.0.2:2"}, {addr: "10.0.0.3:3"}}
	for _, fc := range conns {
		b.Register(fc)
	}
	require.Equal(t, 3, b.ClientCount())

	payload := []byte("serial payload under one chunk")
	stream.push(payload)
	b.Tick()

	for _, fc := range conns {
		assert.Equal(t, payload, fc.received(), "client %s", fc.addr)
	}
	assert.Equal(t, 0, stream.Available(), "read step drains the stream")
}

func TestBridge_FanOutMultipleChunks(t *testing.T) {
	stream := &fakeStream{}
	b := New(stream, nil, logger.Nop(), WithBufSize(4))

	fc := &fakeConn{addr: "10.0.0.1:1"}
	b.Register(fc)

	payload := []byte("this spans several chunk buffers")
	stream.push(payload)
	b.Tick()

	assert.Equal(t, payload, fc.received())
	// Each write carried at most one chunk.
	fc.mu.Lock()
	for _, w := range fc.writes {
		assert.LessOrEqual(t, len(w), 4)
	}
	fc.mu.Unlock()
}

func TestBridge_FanOutWriteFailureAbsorbed(t *testing.T) {
	stream := &fakeStream{}
	b := New(stream, nil, logger.Nop())

	good := &fakeConn{addr: "10.0.0.1:1"}
	bad := &fakeConn{addr: "10.0.0.2:2", writeErr: errors.New("broken pipe")}
	b.Register(good)
	b.Register(bad)

	stream.push([]byte("data"))
	b.Tick()

	assert.Equal(t, []byte("data"), good.received())
	assert.Equal(t, 2, b.ClientCount(), "a failing write alone does not evict")
}

func TestBridge_LinePublishing(t *testing.T) {
	t.Run("completed line reaches the sink", func(t *testing.T) {
		stream := &fakeStream{}
		rec := &recordSink{}
		b := New(stream, rec, logger.Nop())

		stream.push([]byte("sensor: 42\r\n"))
		b.Tick()

		assert.Equal(t, []string{"sensor: 42"}, rec.published())
	})

	t.Run("one line per read iteration", func(t *testing.T) {
		stream := &fakeStream{}
		rec := &recordSink{}
		b := New(stream, rec, logger.Nop())

		// Both lines arrive in a single chunk; the second is abandoned.
		stream.push([]byte("one\rtwo\r"))
		b.Tick()
		assert.Equal(t, []string{"one"}, rec.published())

		b.Tick()
		assert.Equal(t, []string{"one"}, rec.published(), "abandoned bytes are never re-fed")
	})

	t.Run("line spanning ticks", func(t *testing.T) {
		stream := &fakeStream{}
		rec := &recordSink{}
		b := New(stream, rec, logger.Nop())

		stream.push([]byte("par"))
		b.Tick()
		assert.Empty(t, rec.published())

		stream.push([]byte("tial\r"))
		b.Tick()
		assert.Equal(t, []string{"partial"}, rec.published())
	})

	t.Run("nil sink is fine", func(t *testing.T) {
		stream := &fakeStream{}
		b := New(stream, nil, logger.Nop())
		stream.push([]byte("line\r"))
		b.Tick()
	})
}

func TestBridge_WriteStep(t *testing.T) {
	t.Run("client data drains to serial once per tick", func(t *testing.T) {
		stream := &fakeStream{}
		b := New(stream, nil, logger.Nop())

		one := &fakeConn{addr: "10.0.0.1:1"}
		two := &fakeConn{addr: "10.0.0.2:2"}
		b.Register(one)
		b.Register(two)

		one.deliver([]byte("AAA"))
		two.deliver([]byte("BB"))
		one.deliver([]byte("C"))

		b.Tick()
		assert.Equal(t, "AAABBC", string(stream.written), "arrival order preserved")
		assert.Equal(t, 0, b.recv.Len(), "buffer empty after the write step")

		b.Tick()
		assert.Equal(t, "AAABBC", string(stream.written), "nothing new to flush")
	})

	t.Run("bounded transport writes repeat until consumed", func(t *testing.T) {
		stream := &fakeStream{maxWrite: 2}
		b := New(stream, nil, logger.Nop())

		fc := &fakeConn{addr: "10.0.0.1:1"}
		b.Register(fc)
		fc.deliver([]byte("0123456789"))

		b.Tick()
		assert.Equal(t, "0123456789", string(stream.written))
		assert.GreaterOrEqual(t, stream.writeOps, 2)
	})

	t.Run("empty payload notification is a no-op", func(t *testing.T) {
		stream := &fakeStream{}
		b := New(stream, nil, logger.Nop())

		fc := &fakeConn{addr: "10.0.0.1:1"}
		b.Register(fc)
		fc.deliver(nil)
		fc.deliver([]byte{})

		b.Tick()
		assert.Empty(t, stream.written)
	})

	t.Run("write step runs even with no serial traffic", func(t *testing.T) {
		stream := &fakeStream{}
		b := New(stream, nil, logger.Nop())

		fc := &fakeConn{addr: "10.0.0.1:1"}
		b.Register(fc)
		fc.deliver([]byte("inbound"))

		b.Tick()
		assert.Equal(t, "inbound", string(stream.written))
	})
}

func TestBridge_DisconnectLifecycle(t *testing.T) {
	triggers := map[string]func(*fakeConn){
		"error":      func(fc *fakeConn) { fc.failPeer(errors.New("reset")) },
		"disconnect": func(fc *fakeConn) { fc.dropPeer() },
		"timeout":    func(fc *fakeConn) { fc.idleOut() },
	}

	for name, trigger := range triggers {
		t.Run(name, func(t *testing.T) {
			stream := &fakeStream{}
			b := New(stream, nil, logger.Nop())

			stays := &fakeConn{addr: "10.0.0.1:1"}
			goes := &fakeConn{addr: "10.0.0.2:2"}
			b.Register(stays)
			b.Register(goes)

			trigger(goes)
			require.Equal(t, 2, b.ClientCount(), "flagged client survives until the next prune")

			stream.push([]byte("x"))
			b.Tick() // prune runs first, removing the flagged client
			assert.Equal(t, 1, b.ClientCount())
			assert.Equal(t, 1, goes.closes(), "pruned client is force-closed once")
			assert.Equal(t, []byte("x"), stays.received())
			assert.Empty(t, goes.received())
		})
	}
}

func TestBridge_FlaggedMidTickStillReceivesFanOut(t *testing.T) {
	// A client that flags itself after the prune pass stays a fan-out
	// target for the rest of the tick; it is removed on the next one.
	stream := &fakeStream{}
	b := New(stream, nil, logger.Nop())

	fc := &fakeConn{addr: "10.0.0.1:1"}
	b.Register(fc)

	b.registry.Prune(b.log)
	fc.dropPeer() // flagged between prune and the read step
	stream.push([]byte("late"))
	b.read()

	assert.Equal(t, []byte("late"), fc.received())
	assert.Equal(t, 1, b.ClientCount())

	b.Tick()
	assert.Equal(t, 0, b.ClientCount())
}

func TestBridge_Shutdown(t *testing.T) {
	stream := &fakeStream{}
	b := New(stream, nil, logger.Nop())

	live := &fakeConn{addr: "10.0.0.1:1"}
	dead := &fakeConn{addr: "10.0.0.2:2"}
	b.Register(live)
	b.Register(dead)
	dead.dropPeer()

	b.Shutdown()

	assert.Equal(t, 1, live.closes())
	assert.Equal(t, 1, dead.closes(), "disconnected flag does not skip the close")
	assert.Equal(t, 2, b.ClientCount(), "shutdown does not prune the registry")
}

func TestBridge_DumpConfig(t *testing.T) {
	b := New(&fakeStream{}, nil, logger.Nop())
	b.DumpConfig(6638) // informational only; must not panic or mutate state
	assert.Equal(t, 0, b.ClientCount())
}
