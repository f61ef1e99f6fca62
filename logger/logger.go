// Package logger provides a structured logging interface backed by zerolog.
// The bridge daemon logs to stdout by default; an additional log file can be
// attached for long-running installations.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field represents a key-value pair for structured log output.
// Use Fields with Logger methods to attach contextual data to log entries.
type Field struct {
	Key   string
	Value any
}

// Logger is an interface for structured logging. Implementations write log
// entries at different levels (Debug, Info, Warn, Error) and support
// attaching structured fields. Loggers may be derived with With for
// component-scoped fields.
type Logger interface {
	// Debug logs a message at debug level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Debug(msg string, fields ...Field)

	// Info logs a message at info level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Info(msg string, fields ...Field)

	// Warn logs a message at warn level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Warn(msg string, fields ...Field)

	// Error logs a message at error level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Error(msg string, fields ...Field)

	// With returns a new Logger that includes the given fields in all
	// subsequent log entries. The original Logger is unchanged.
	//
	// Parameters:
	//   - fields: Key-value pairs to attach to the derived logger
	//
	// Returns:
	//   - A new Logger with the specified fields
	With(fields ...Field) Logger

	// Close releases resources held by the logger (e.g. file handles).
	// It is safe to call multiple times.
	//
	// Returns:
	//   - An error if closing resources fails
	Close() error
}

// zerologLogger is the zerolog-based implementation of Logger.
type zerologLogger struct {
	logger   zerolog.Logger
	file     *os.File
	ownsFile bool
}

// New builds a Logger writing to stdout, tagged with the given component
// name and filtered by level.
//
// Parameters:
//   - component: Name added as a field to every log entry
//   - level: Minimum level to log (e.g. zerolog.InfoLevel)
//
// Returns:
//   - A Logger writing to stdout
func New(component string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger: zerolog.New(os.Stdout).With().Str("component", component).Timestamp().Logger().Level(level),
	}
}

// NewWithWriter builds a Logger that wraps the given writer, adding a
// component name and timestamp to all entries and filtering by level.
// Useful for tests and custom outputs.
//
// Parameters:
//   - w: Destination for log output
//   - component: Name added as a field to every log entry
//   - level: Minimum level to log
//
// Returns:
//   - A Logger writing through w
func NewWithWriter(w io.Writer, component string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger: zerolog.New(w).With().Str("component", component).Timestamp().Logger().Level(level),
	}
}

// NewFileLogger creates a Logger that writes to both stdout and the given
// log file (created or appended to).
//
// Parameters:
//   - component: Name added as a field to every log entry
//   - path: Log file path
//   - level: Minimum level to log
//
// Returns:
//   - A Logger writing to stdout and the file, or an error if the file
//     could not be opened
func NewFileLogger(component string, path string, level zerolog.Level) (Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	multi := io.MultiWriter(os.Stdout, file)
	return &zerologLogger{
		logger:   zerolog.New(multi).With().Str("component", component).Timestamp().Logger().Level(level),
		file:     file,
		ownsFile: true,
	}, nil
}

// Debug implements Logger.
func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug().Fields(toMap(fields)).Msg(msg)
}

// Info implements Logger.
func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.logger.Info().Fields(toMap(fields)).Msg(msg)
}

// Warn implements Logger.
func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn().Fields(toMap(fields)).Msg(msg)
}

// Error implements Logger.
func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.logger.Error().Fields(toMap(fields)).Msg(msg)
}

// With implements Logger.
func (z *zerologLogger) With(fields ...Field) Logger {
	return &zerologLogger{
		logger:   z.logger.With().Fields(toMap(fields)).Logger(),
		file:     z.file,
		ownsFile: false,
	}
}

// Close implements Logger.
func (z *zerologLogger) Close() error {
	if z.file != nil && z.ownsFile {
		err := z.file.Close()
		z.file = nil
		return err
	}

	return nil
}

// toMap converts a slice of Field into a map for zerolog.
func toMap(fields []Field) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	return m
}

// Nop returns a Logger that discards all output. Useful as a default in
// tests and optional components.
func Nop() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}
