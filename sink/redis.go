package sink

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/streambridge/logger"
)

const redisPublishTimeout = 2 * time.Second

// RedisSink publishes each completed line to a Redis pub/sub channel so
// other services can observe the serial stream without a TCP connection to
// the bridge. Publish failures are logged and swallowed.
type RedisSink struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

// NewRedisSink creates a RedisSink publishing to the given channel.
//
// Parameters:
//   - client: Connected Redis client; the sink does not close it
//   - channel: Pub/sub channel name
//   - log: Logger for publish failures
//
// Returns:
//   - A new RedisSink instance
func NewRedisSink(client *redis.Client, channel string, log logger.Logger) *RedisSink {
	return &RedisSink{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// Publish implements Sink.
func (s *RedisSink) Publish(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()

	if err := s.client.Publish(ctx, s.channel, line).Err(); err != nil {
		s.log.Warn("redis publish failed",
			logger.Field{Key: "channel", Value: s.channel},
			logger.Field{Key: "error", Value: err})
	}
}
