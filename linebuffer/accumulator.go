// Package linebuffer extracts carriage-return-terminated text lines out of an
// arbitrary byte stream. It is used by the bridge to report complete lines
// seen on the serial side without altering the raw passthrough.
package linebuffer

// DefaultCapacity is the line buffer capacity used when none is specified.
// Lines longer than capacity-1 bytes are silently truncated.
const DefaultCapacity = 80

// Accumulator assembles bytes into lines terminated by '\r'. Newline bytes
// ('\n') are dropped, and bytes beyond the buffer capacity are discarded
// until the next carriage return. Partial content survives across Feed calls,
// so a line may be assembled from any number of chunks.
//
// One Accumulator serves one byte stream; it is not safe for concurrent use.
type Accumulator struct {
	buf []byte
	pos int
}

// New creates an Accumulator with the given buffer capacity. A capacity
// below 2 is raised to DefaultCapacity.
//
// Parameters:
//   - capacity: Maximum line buffer size; completed lines hold at most
//     capacity-1 bytes
//
// Returns:
//   - A new Accumulator instance
func New(capacity int) *Accumulator {
	if capacity < 2 {
		capacity = DefaultCapacity
	}

	return &Accumulator{buf: make([]byte, capacity)}
}

// Feed processes p one byte at a time and reports whether a line completed.
// A '\r' completes the current line and resets the accumulator; Feed returns
// immediately at that point, abandoning any bytes remaining in p for this
// call. Callers that need those bytes examined must feed them again in a
// later call; the bridge deliberately does not, matching one-line-per-read
// semantics.
//
// Parameters:
//   - p: Bytes to scan; may be nil or empty (no-op)
//
// Returns:
//   - The completed line (excluding the terminator) and true, or "" and
//     false if no '\r' was seen
func (a *Accumulator) Feed(p []byte) (string, bool) {
	for _, c := range p {
		switch c {
		case '\n': // Ignore new-lines
		case '\r':
			line := string(a.buf[:a.pos])
			a.pos = 0
			return line, true
		default:
			if a.pos < len(a.buf)-1 {
				a.buf[a.pos] = c
				a.pos++
			}
		}
	}

	return "", false
}

// Len returns the number of bytes currently buffered for the next line.
func (a *Accumulator) Len() int {
	return a.pos
}

// Reset discards any buffered partial line.
func (a *Accumulator) Reset() {
	a.pos = 0
}
