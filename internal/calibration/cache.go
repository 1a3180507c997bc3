// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package calibration implements the scout-bot calibration workflow that
// learns breakout room identifier-to-name bindings.
package calibration

import (
	"sort"
	"sync"
	"time"
)

// CacheEntry is one room binding held by a RoomCache.
type CacheEntry struct {
	RoomID   string    `json:"room_id"`
	RoomName string    `json:"room_name"`
	Index    int       `json:"index"`
	CachedAt time.Time `json:"cached_at"`
}

// RoomCache is an in-process store of room identifier to name bindings for a
// single meeting. It is unbounded: room counts per meeting are small, and
// entries live until Clear. Callers construct one cache per meeting; the
// orchestrator never shares a process-wide instance, so concurrent runs for
// different meetings cannot see each other's bindings.
//
// Entries are lost on restart. Persisted mappings are reloaded into the cache
// at startup by the service layer.
type RoomCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewRoomCache creates an empty room cache.
func NewRoomCache() *RoomCache {
	return &RoomCache{
		entries: make(map[string]CacheEntry),
	}
}

// Get returns the cached name for a room identifier.
func (c *RoomCache) Get(roomID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[roomID]
	return entry.RoomName, ok
}

// Put binds a name to a room identifier, overwriting any prior binding.
func (c *RoomCache) Put(roomID, roomName string, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[roomID] = CacheEntry{
		RoomID:   roomID,
		RoomName: roomName,
		Index:    index,
		CachedAt: time.Now().UTC(),
	}
}

// All returns every cached binding, ordered by discovery index.
func (c *RoomCache) All() []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Index != entries[j].Index {
			return entries[i].Index < entries[j].Index
		}
		return entries[i].RoomID < entries[j].RoomID
	})
	return entries
}

// Len returns the number of cached bindings.
func (c *RoomCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Clear removes every binding. This is the only way entries are removed.
func (c *RoomCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]CacheEntry)
}
