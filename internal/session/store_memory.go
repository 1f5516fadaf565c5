// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"sync"
)

// errIncompleteSession rejects writes that would persist half a session.
var errIncompleteSession = errors.New("session: token and user must be saved together")

// MemoryStore is an in-process [TokenStore]. It does not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	session Session
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements [TokenStore].
func (store *MemoryStore) Save(_ context.Context, token string, user *UserProfile) error {
	if token == "" || user == nil {
		return errIncompleteSession
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.session = Session{AccessToken: token, User: user.Clone()}
	return nil
}

// Load implements [TokenStore].
func (store *MemoryStore) Load(_ context.Context) Session {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.session.Clone()
}

// Clear implements [TokenStore].
func (store *MemoryStore) Clear(_ context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.session = Session{}
	return nil
}

// MemoryStores is a [StoreFactory] over [MemoryStore] values.
type MemoryStores struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryStores creates an empty factory.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{stores: make(map[string]*MemoryStore)}
}

// For implements [StoreFactory].
func (factory *MemoryStores) For(browserSessionID string) TokenStore {
	factory.mu.Lock()
	defer factory.mu.Unlock()

	store, found := factory.stores[browserSessionID]
	if !found {
		store = NewMemoryStore()
		factory.stores[browserSessionID] = store
	}
	return store
}
