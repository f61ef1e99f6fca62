// Package sink delivers lines assembled from the serial stream to reporting
// destinations: the structured log, a Redis channel, an in-memory history,
// and live websocket feeds. Sinks never propagate errors back to the bridge;
// reporting must not disturb the byte passthrough.
package sink

import "github.com/cyberinferno/streambridge/logger"

// Sink receives each completed line seen on the serial stream.
type Sink interface {
	// Publish delivers one completed line. Implementations absorb their
	// own failures.
	Publish(line string)
}

// MultiSink fans each line out to several sinks in order. Nil members are
// skipped, so optional sinks can be wired unconditionally.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(line string) {
	for _, s := range m {
		if s != nil {
			s.Publish(line)
		}
	}
}

// LogSink reports each line through the structured log at info level.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink writing through log.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Publish implements Sink.
func (s *LogSink) Publish(line string) {
	s.log.Info("serial line", logger.Field{Key: "line", Value: line})
}
