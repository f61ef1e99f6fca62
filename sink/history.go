package sink

import (
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// HistorySink retains recently seen lines with a TTL for diagnostics and
// feed catch-up. Lines expire on their own; nothing is persisted.
type HistorySink struct {
	cache *cache.Cache
	seq   atomic.Uint64
}

// NewHistorySink creates a HistorySink whose entries expire after ttl.
//
// Parameters:
//   - ttl: How long each line stays retrievable
//
// Returns:
//   - A new HistorySink instance
func NewHistorySink(ttl time.Duration) *HistorySink {
	return &HistorySink{
		cache: cache.New(ttl, ttl),
	}
}

// Publish implements Sink. Each line is stored under a monotonically
// increasing sequence number so Recent can reconstruct arrival order.
func (s *HistorySink) Publish(line string) {
	key := strconv.FormatUint(s.seq.Add(1), 10)
	s.cache.Set(key, line, cache.DefaultExpiration)
}

// Recent returns the unexpired lines in arrival order.
func (s *HistorySink) Recent() []string {
	items := s.cache.Items()
	if len(items) == 0 {
		return nil
	}

	type entry struct {
		seq  uint64
		line string
	}

	entries := make([]entry, 0, len(items))
	for key, item := range items {
		seq, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}

		line, ok := item.Object.(string)
		if !ok {
			continue
		}

		entries = append(entries, entry{seq: seq, line: line})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.line
	}

	return lines
}

// Len returns the number of unexpired lines.
func (s *HistorySink) Len() int {
	return s.cache.ItemCount()
}
