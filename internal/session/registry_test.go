// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/ctxutil"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	return clock.now
}

func (clock *testClock) Advance(step time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	clock.now = clock.now.Add(step)
}

func newTestRegistry(backend Backend, clock *testClock) (*Registry, *MemoryStores) {
	stores := NewMemoryStores()
	registry := NewRegistry(RegistryDependencies{
		Stores:  stores,
		Backend: backend,
		IdleTTL: 10 * time.Minute,
		Now:     clock.Now,
	})

	return registry, stores
}

/*
TestRegistry_Get verifies one loader per browser session.
*/
func TestRegistry_Get(t *testing.T) {
	registry, _ := newTestRegistry(&fakeBackend{}, &testClock{now: time.Now()})

	first := registry.Get("a")
	assert.Same(t, first, registry.Get("a"))
	assert.NotSame(t, first, registry.Get("b"))
	assert.Equal(t, 2, registry.Len())

	registry.Remove("a")
	assert.Equal(t, 1, registry.Len())
}

/*
TestRegistry_Sweep verifies idle loaders are evicted and active ones kept.
*/
func TestRegistry_Sweep(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	registry, _ := newTestRegistry(&fakeBackend{}, clock)

	registry.Get("idle")
	clock.Advance(9 * time.Minute)
	registry.Get("fresh")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, registry.Sweep())
	assert.Equal(t, 1, registry.Len())

	clock.Advance(time.Hour)
	assert.Equal(t, 1, registry.Sweep())
	assert.Zero(t, registry.Len())
}

/*
TestRegistry_EvictedLoaderRecovers verifies a rebuilt loader revalidates the
persisted session.
*/
func TestRegistry_EvictedLoaderRecovers(t *testing.T) {
	ctx := ctxutil.WithBrowserSession(context.Background(), "sid-1")
	clock := &testClock{now: time.Now()}
	backend := &fakeBackend{}
	registry, _ := newTestRegistry(backend, clock)

	_, err := registry.Get("sid-1").Establish(ctx, Session{AccessToken: "tok-1", User: testUser("Ada")})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	require.Equal(t, 1, registry.Sweep())

	loader := registry.Resolve(ctx)
	require.NotNil(t, loader)
	assert.Equal(t, StateAuthenticated, loader.Snapshot().State)
	assert.Equal(t, 1, backend.calls())
}

/*
TestRegistry_RequireUser covers anonymous, unknown and authenticated browsers.
*/
func TestRegistry_RequireUser(t *testing.T) {
	registry, _ := newTestRegistry(&fakeBackend{}, &testClock{now: time.Now()})

	t.Run("NoCookie", func(t *testing.T) {
		loader, _, err := registry.RequireUser(context.Background())
		assert.Nil(t, loader)
		assert.True(t, apperr.Is(err, apperr.KindAuth))
	})

	t.Run("UnknownSession", func(t *testing.T) {
		ctx := ctxutil.WithBrowserSession(context.Background(), "unknown")

		loader, snapshot, err := registry.RequireUser(ctx)
		assert.NotNil(t, loader)
		assert.Equal(t, StateAnonymous, snapshot.State)
		assert.True(t, apperr.Is(err, apperr.KindAuth))
		assert.Zero(t, registry.Len())
	})

	t.Run("Authenticated", func(t *testing.T) {
		ctx := ctxutil.WithBrowserSession(context.Background(), "known")
		_, err := registry.Get("known").Establish(ctx, Session{AccessToken: "tok-1", User: testUser("Ada")})
		require.NoError(t, err)

		_, snapshot, err := registry.RequireUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-1", snapshot.User().ID)
	})
}

/*
TestRegistry_Resolve_ForgetsAnonymous verifies unauthenticated traffic leaves
no loaders behind, while stored sessions stay resolved.
*/
func TestRegistry_Resolve_ForgetsAnonymous(t *testing.T) {
	registry, stores := newTestRegistry(&fakeBackend{}, &testClock{now: time.Now()})

	for i := range 50 {
		ctx := ctxutil.WithBrowserSession(context.Background(), fmt.Sprintf("stray-%d", i))
		loader := registry.Resolve(ctx)
		require.NotNil(t, loader)
		assert.Equal(t, StateAnonymous, loader.Snapshot().State)
	}
	assert.Zero(t, registry.Len())

	require.NoError(t, stores.For("stored").Save(context.Background(), "tok-1", testUser("Ada")))
	loader := registry.Resolve(ctxutil.WithBrowserSession(context.Background(), "stored"))
	assert.Equal(t, StateAuthenticated, loader.Snapshot().State)
	assert.Equal(t, 1, registry.Len())
}

/*
TestNewBrowserSessionID verifies ids are unique and fit the cookie bound.
*/
func TestNewBrowserSessionID(t *testing.T) {
	first, err := NewBrowserSessionID()
	require.NoError(t, err)
	second, err := NewBrowserSessionID()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.LessOrEqual(t, len(first), 128)
}
