package service

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key      uint64
	decision Decision
	prev     *lruEntry
	next     *lruEntry
}

// decisionCache provides bounded LRU caching for window-arithmetic decisions.
// Only the pure judgment of a restriction against an attempt is cached; the
// cache key includes the restriction's UpdatedAt so a policy edit invalidates
// its entries, and resolution itself always hits the store.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type decisionCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// newDecisionCache creates a new LRU cache with the given max size.
func newDecisionCache(maxSize int) *decisionCache {
	return &decisionCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached decision, promoting the entry on hit.
func (c *decisionCache) Get(key uint64) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.decision, true
	}
	return Decision{}, false
}

// Put stores a decision, evicting the least recently used entry at capacity.
func (c *decisionCache) Put(key uint64, decision Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.decision = decision
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, decision: decision}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Size returns current cache size.
func (c *decisionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *decisionCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *decisionCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *decisionCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *decisionCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// decisionCacheKey hashes everything the judgment depends on: the restriction
// identity and revision, the attempting user (the restriction's condition may
// reference user_id), the action, and the attempt's position in the week.
func decisionCacheKey(r *policy.ClockRestriction, userID uuid.UUID, action policy.ClockAction, day time.Weekday, secondOfDay int, eventCount int) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(r.ID.String())
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(r.UpdatedAt.UTC().Format(time.RFC3339Nano))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(userID.String())
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(action))
	_, _ = h.Write([]byte{0})

	var buf [4]byte
	buf[0] = byte(day)
	buf[1] = byte(secondOfDay >> 16)
	buf[2] = byte(secondOfDay >> 8)
	buf[3] = byte(secondOfDay)
	_, _ = h.Write(buf[:])

	buf[0] = byte(eventCount >> 24)
	buf[1] = byte(eventCount >> 16)
	buf[2] = byte(eventCount >> 8)
	buf[3] = byte(eventCount)
	_, _ = h.Write(buf[:])

	return h.Sum64()
}
