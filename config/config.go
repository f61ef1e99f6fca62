// Package config loads the bridge daemon's configuration from an optional
// yaml file with environment-variable overrides (STREAMBRIDGE_ prefix,
// dots replaced by underscores).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon settings.
type Config struct {
	// ListenPort is the TCP port the bridge accepts clients on.
	ListenPort int
	// SerialDevice is the serial port path, e.g. /dev/ttyUSB0.
	SerialDevice string
	// BaudRate is the serial line speed.
	BaudRate int
	// BufSize is the serial chunk buffer size per read iteration.
	BufSize int
	// LineSize is the line accumulator capacity.
	LineSize int
	// TickInterval is the bridge loop period.
	TickInterval time.Duration
	// IdleTimeout disconnects TCP clients idle for this long; 0 disables.
	IdleTimeout time.Duration
	// RedisAddr enables the redis line sink when non-empty.
	RedisAddr string
	// RedisChannel is the pub/sub channel for published lines.
	RedisChannel string
	// HistoryTTL is how long recent lines stay queryable.
	HistoryTTL time.Duration
	// HTTPAddr enables the websocket line feed when non-empty.
	HTTPAddr string
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string
	// LogFile adds a log file next to stdout when non-empty.
	LogFile string
}

const envPrefix = "STREAMBRIDGE"

// Load reads configuration from the yaml file at path (when non-empty) and
// the environment. Environment values win over the file; defaults fill the
// rest. Passing an empty path skips the file entirely.
//
// Parameters:
//   - path: Config file path, or "" for defaults + environment only
//
// Returns:
//   - The validated Config, or an error if the file is unreadable or a
//     value is out of range
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 6638)
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("bridge.bufsize", 256)
	v.SetDefault("bridge.linesize", 80)
	v.SetDefault("bridge.tick", 10*time.Millisecond)
	v.SetDefault("server.idletimeout", time.Duration(0))
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "streambridge:lines")
	v.SetDefault("history.ttl", 5*time.Minute)
	v.SetDefault("http.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ListenPort:   v.GetInt("server.port"),
		SerialDevice: v.GetString("serial.device"),
		BaudRate:     v.GetInt("serial.baud"),
		BufSize:      v.GetInt("bridge.bufsize"),
		LineSize:     v.GetInt("bridge.linesize"),
		TickInterval: v.GetDuration("bridge.tick"),
		IdleTimeout:  v.GetDuration("server.idletimeout"),
		RedisAddr:    v.GetString("redis.addr"),
		RedisChannel: v.GetString("redis.channel"),
		HistoryTTL:   v.GetDuration("history.ttl"),
		HTTPAddr:     v.GetString("http.addr"),
		LogLevel:     v.GetString("log.level"),
		LogFile:      v.GetString("log.file"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("server.port %d out of range", c.ListenPort)
	}
	if c.SerialDevice == "" {
		return fmt.Errorf("serial.device must not be empty")
	}
	if c.BaudRate < 1 {
		return fmt.Errorf("serial.baud %d out of range", c.BaudRate)
	}
	if c.BufSize < 1 {
		return fmt.Errorf("bridge.bufsize %d out of range", c.BufSize)
	}
	if c.LineSize < 2 {
		return fmt.Errorf("bridge.linesize %d out of range", c.LineSize)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("bridge.tick must be positive")
	}

	return nil
}

// ListenAddr returns the TCP listen address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.ListenPort)
}
