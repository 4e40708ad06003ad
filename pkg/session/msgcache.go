// Copyright 2025 Certen Protocol
//
// msgCache is the per-session bounded set of seen msg_id strings that
// backs idempotent delivery (spec.md §4.4, §8): replaying a msg_id
// already in the set is a no-op, not an error.

package session

import (
	"container/list"
	"sync"
)

const defaultMsgCacheCapacity = 4096

// msgCache is a fixed-capacity set with FIFO eviction, so a
// long-lived session's idempotency cache cannot grow without bound.
type msgCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newMsgCache(capacity int) *msgCache {
	if capacity <= 0 {
		capacity = defaultMsgCacheCapacity
	}
	return &msgCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// seenOrRecord reports whether msgID was already present, recording it
// if not. It is the single atomic check-and-set idempotency uses.
func (c *msgCache) seenOrRecord(msgID string) (alreadySeen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[msgID]; ok {
		return true
	}

	elem := c.order.PushBack(msgID)
	c.index[msgID] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(string))
	}
	return false
}
