// internal/engine/idempotency.go
package engine

import (
	"container/list"
)

// IdempotencyChecker implements two-tier command deduplication: an
// in-memory LRU for the hot path and an optional Postgres lookup for keys
// that have aged out of the cache.
type IdempotencyChecker struct {
	lru       *idempotencyLRU
	dbChecker DBIdempotencyChecker
}

// DBIdempotencyChecker is the interface for the Postgres dedup lookup.
type DBIdempotencyChecker interface {
	IsDuplicate(commandType string, idempotencyKey string) (bool, error)
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       newIdempotencyLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate checks if a command has already been processed. Keys are
// UUID-derived and globally unique, so the LRU keys on the bare
// idempotency key; this lets restart warming rebuild it straight from the
// event log, which records keys but not command types.
func (ic *IdempotencyChecker) IsDuplicate(commandType string, idempotencyKey string) bool {
	if ic.lru.contains(idempotencyKey) {
		return true
	}

	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(commandType, idempotencyKey)
		if err != nil {
			// Conservative on DB trouble: assume not duplicate rather than
			// blocking command processing.
			return false
		}
		if isDup {
			ic.lru.add(idempotencyKey)
			return true
		}
	}

	return false
}

// MarkProcessed adds the key to the LRU after successful processing.
func (ic *IdempotencyChecker) MarkProcessed(commandType string, idempotencyKey string) {
	ic.lru.add(idempotencyKey)
}

// WarmFromKeys loads recent keys on restart so recently processed
// commands dedup without hitting the DB.
func (ic *IdempotencyChecker) WarmFromKeys(keys []string) {
	for _, key := range keys {
		ic.lru.add(key)
	}
}

// idempotencyLRU is not thread-safe; it is only touched from the
// single-threaded engine loop.
type idempotencyLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

type lruEntry struct {
	key string
}

func newIdempotencyLRU(capacity int) *idempotencyLRU {
	return &idempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

func (lru *idempotencyLRU) contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

func (lru *idempotencyLRU) add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(&lruEntry{key: key})
	lru.cache[key] = elem

	if lru.lruList.Len() > lru.capacity {
		oldest := lru.lruList.Back()
		if oldest != nil {
			lru.lruList.Remove(oldest)
			delete(lru.cache, oldest.Value.(*lruEntry).key)
		}
	}
}
