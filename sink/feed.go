package sink

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cyberinferno/streambridge/logger"
)

const subscriberBuffer = 64

// FeedSink fans completed lines out to live subscribers. Each subscriber
// gets a buffered channel; a subscriber that falls behind has lines dropped
// rather than stalling the bridge. ServeWS exposes the feed over a
// websocket for browser consoles.
type FeedSink struct {
	log      logger.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// subscriber holds the buffered channel for one feed consumer.
type subscriber struct {
	ch chan string
}

// NewFeedSink creates a FeedSink with no subscribers.
func NewFeedSink(log logger.Logger) *FeedSink {
	return &FeedSink{
		log:  log,
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Publish implements Sink. Slow consumers (full buffer) are skipped.
func (f *FeedSink) Publish(line string) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for s := range f.subs {
		select {
		case s.ch <- line:
		default:
			// Slow consumer; drop silently.
		}
	}
}

// Subscribe registers a feed consumer. The returned cancel function must be
// called when the consumer goes away; it closes the channel.
//
// Returns:
//   - A receive channel of lines and the unsubscribe function
func (f *FeedSink) Subscribe() (<-chan string, func()) {
	s := &subscriber{ch: make(chan string, subscriberBuffer)}

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	unsub := func() {
		f.mu.Lock()
		_, present := f.subs[s]
		delete(f.subs, s)
		f.mu.Unlock()

		if present {
			close(s.ch)
		}
	}

	return s.ch, unsub
}

// SubscriberCount returns the current number of subscribers.
func (f *FeedSink) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// ServeWS upgrades the request to a websocket and streams lines to the peer
// until either side goes away. Each line is one text message.
func (f *FeedSink) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("websocket upgrade failed", logger.Field{Key: "error", Value: err})
		return
	}
	defer ws.Close()

	lines, unsub := f.Subscribe()
	defer unsub()

	f.log.Debug("feed subscriber connected", logger.Field{Key: "remote", Value: ws.RemoteAddr().String()})

	// Drain peer frames so close handshakes are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}

			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}
