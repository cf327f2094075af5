package posts

import (
	"sync"
	"time"
)

type viewKey struct {
	visitorID int64
	postID    int64
}

// ViewCache deduplicates view counting: one (visitor, post) pair counts at
// most once per window. The cache is in-process and size-capped; on overflow
// expired entries go first, then arbitrary ones. Restarting the process
// forgets the history, which only means an extra count, never a lost post.
type ViewCache struct {
	mu         sync.Mutex
	seen       map[viewKey]time.Time
	window     time.Duration
	maxEntries int
}

func NewViewCache(window time.Duration, maxEntries int) *ViewCache {
	return &ViewCache{
		seen:       make(map[viewKey]time.Time),
		window:     window,
		maxEntries: maxEntries,
	}
}

// Seen reports whether the pair was already counted inside the window and
// records it otherwise.
func (c *ViewCache) Seen(visitorID, postID int64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := viewKey{visitorID: visitorID, postID: postID}
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.window {
		return true
	}

	if len(c.seen) >= c.maxEntries {
		c.evict(now)
	}

	c.seen[key] = now
	return false
}

func (c *ViewCache) evict(now time.Time) {
	for k, at := range c.seen {
		if now.Sub(at) >= c.window {
			delete(c.seen, k)
		}
	}
	for k := range c.seen {
		if len(c.seen) < c.maxEntries {
			break
		}
		delete(c.seen, k)
	}
}
