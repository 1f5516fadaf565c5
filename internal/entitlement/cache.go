// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package entitlement

import (
	"context"
	"sync"
	"time"
)

// Key identifies a pending entitlement. Flags are per user so a shared browser
// never leaks a purchase from one account to another.
type Key struct {
	UserID   string
	CourseID string
}

// PendingCache stores provisional grants written after a successful checkout.
//
// Entries are never authoritative. They bridge the window between payment
// verification and the server purchase list catching up, and they expire on
// their own after the TTL given to Set.
type PendingCache interface {
	// Set records a pending grant for key that lives for ttl.
	Set(ctx context.Context, key Key, ttl time.Duration) error

	// Has reports whether a live pending grant exists for key.
	Has(ctx context.Context, key Key) (bool, error)

	// Delete drops the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...Key) error
}

// # In-Memory Cache

type memoryEntry struct {
	grantedAt time.Time
	expiresAt time.Time
}

// MemoryCache is a process-local [PendingCache] with an injectable clock.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty [MemoryCache]. A nil now uses time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[Key]memoryEntry), now: now}
}

// Set implements [PendingCache].
func (cache *MemoryCache) Set(_ context.Context, key Key, ttl time.Duration) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	now := cache.now()
	cache.entries[key] = memoryEntry{grantedAt: now, expiresAt: now.Add(ttl)}
	return nil
}

// Has implements [PendingCache]. Expired entries are removed on read.
func (cache *MemoryCache) Has(_ context.Context, key Key) (bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	entry, found := cache.entries[key]
	if !found {
		return false, nil
	}

	if !cache.now().Before(entry.expiresAt) {
		delete(cache.entries, key)
		return false, nil
	}

	return true, nil
}

// Delete implements [PendingCache].
func (cache *MemoryCache) Delete(_ context.Context, keys ...Key) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	for _, key := range keys {
		delete(cache.entries, key)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (cache *MemoryCache) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	return len(cache.entries)
}
