// Package serial adapts a serial port (or any byte device) to the
// non-blocking stream contract the bridge polls on every tick: an
// availability query, bounded reads of already-buffered bytes, and
// passthrough writes.
package serial

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Read and Write after the stream is closed.
var ErrClosed = errors.New("serial: stream closed")

// Stream is the byte stream the bridge reads from and writes to. Available
// must never block; Read returns only bytes already reported by Available.
type Stream interface {
	// Available returns the number of bytes that can be read without
	// blocking.
	Available() int

	// Read copies up to len(p) already-available bytes into p. It does not
	// wait for more data; when nothing is buffered it returns 0, nil.
	Read(p []byte) (int, error)

	// Write writes p to the underlying device.
	Write(p []byte) (int, error)
}

const defaultPumpBufSize = 4096

// Port wraps an io.ReadWriteCloser (typically an open serial port) and
// satisfies Stream. Serial reads in Go block, so a pump goroutine drains the
// device into an internal buffer; Available reports the buffered length and
// Read drains it without touching the device.
type Port struct {
	dev io.ReadWriteCloser

	mu     sync.Mutex
	buf    []byte
	err    error
	closed bool
	done   chan struct{}
}

// NewPort wraps an open device and starts the pump goroutine. The caller
// retains no other users of dev; Close closes it.
//
// Parameters:
//   - dev: The open serial device (or any ReadWriteCloser)
//   - readBufSize: Size of each pump read; values < 1 use a default
//
// Returns:
//   - A running *Port
func NewPort(dev io.ReadWriteCloser, readBufSize int) *Port {
	if readBufSize < 1 {
		readBufSize = defaultPumpBufSize
	}

	p := &Port{
		dev:  dev,
		done: make(chan struct{}),
	}
	go p.pump(readBufSize)
	return p
}

// pump copies device bytes into the internal buffer until the device read
// fails or the port is closed.
func (p *Port) pump(bufSize int) {
	defer close(p.done)

	chunk := make([]byte, bufSize)
	for {
		n, err := p.dev.Read(chunk)

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
		}
		if err != nil {
			p.err = err
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Available implements Stream.
func (p *Port) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Read implements Stream. It drains up to len(p) buffered bytes and never
// blocks on the device.
func (p *Port) Read(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	n := copy(out, p.buf)
	if n > 0 {
		p.buf = p.buf[:copy(p.buf, p.buf[n:])]
	}

	return n, nil
}

// Write implements Stream, passing p through to the device.
func (p *Port) Write(data []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return 0, ErrClosed
	}

	return p.dev.Write(data)
}

// Err returns the pump's terminal error, if any. io.EOF means the device
// went away cleanly.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close stops the pump and closes the device. Safe to call multiple times.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.dev.Close()
	<-p.done
	return err
}
