// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/constants"
	"github.com/taibuivan/coursehub/internal/platform/ctxutil"
	"github.com/taibuivan/coursehub/internal/platform/sec"
)

// browserSessionIDLength is the number of random bytes in a browser session id.
const browserSessionIDLength = 32

// RegistryDependencies holds what the [Registry] needs to build loaders.
type RegistryDependencies struct {
	Stores     StoreFactory
	Backend    Backend
	Reconciler Reconciler
	Logger     *slog.Logger
	IdleTTL    time.Duration
	Now        func() time.Time
}

// Registry maps browser session ids to their [Loader].
//
// Loaders idle for longer than IdleTTL are evicted from memory. Their token
// store is durable, so the next request rebuilds the loader and re-validates
// the persisted session with the server.
type Registry struct {
	mu      sync.Mutex
	loaders map[string]*Loader
	deps    RegistryDependencies
}

// NewRegistry creates an empty [Registry].
func NewRegistry(deps RegistryDependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Registry{
		loaders: make(map[string]*Loader),
		deps:    deps,
	}
}

// NewBrowserSessionID returns a fresh unguessable browser session id.
func NewBrowserSessionID() (string, error) {
	return sec.GenerateSecureToken(browserSessionIDLength)
}

// Get returns the loader for browserSessionID, creating an Idle one if needed.
func (registry *Registry) Get(browserSessionID string) *Loader {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	loader, found := registry.loaders[browserSessionID]
	if !found {
		loader = NewLoader(Dependencies{
			Store:      registry.deps.Stores.For(browserSessionID),
			Backend:    registry.deps.Backend,
			Reconciler: registry.deps.Reconciler,
			Logger:     registry.deps.Logger,
			Now:        registry.deps.Now,
		})
		registry.loaders[browserSessionID] = loader
	}

	return loader
}

// Remove forgets the in-memory loader. The token store is left untouched.
func (registry *Registry) Remove(browserSessionID string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.loaders, browserSessionID)
}

// Len returns the number of live loaders.
func (registry *Registry) Len() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	return len(registry.loaders)
}

// Sweep evicts loaders idle for longer than IdleTTL and returns how many were removed.
// Loaders with a reload in flight are kept.
func (registry *Registry) Sweep() int {
	cutoff := registry.deps.Now().Add(-registry.deps.IdleTTL)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	evicted := 0
	for browserSessionID, loader := range registry.loaders {
		if loader.Snapshot().State == StateLoading {
			continue
		}
		if loader.LastActive().Before(cutoff) {
			delete(registry.loaders, browserSessionID)
			evicted++
		}
	}

	return evicted
}

// Run sweeps periodically until ctx is cancelled.
func (registry *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.RegistrySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := registry.Sweep(); evicted > 0 {
				registry.deps.Logger.Debug("session_registry_swept", slog.Int("evicted", evicted))
			}
		case <-ctx.Done():
			return
		}
	}
}

// # Request Resolution

// Resolve returns the started loader for the browser session carried by ctx,
// or nil for a browser without a session cookie.
//
// Anonymous loaders are not kept, so cookies that never carried a session do
// not accumulate in memory.
func (registry *Registry) Resolve(ctx context.Context) *Loader {
	browserSessionID := ctxutil.GetBrowserSession(ctx)
	if browserSessionID == "" {
		return nil
	}

	loader := registry.Get(browserSessionID)

	// Start is a no-op after the first call; its failures leave an Error snapshot.
	if snapshot, _ := loader.Start(ctx); snapshot.State == StateAnonymous {
		registry.forgetAnonymous(browserSessionID, loader)
	}
	return loader
}

// forgetAnonymous removes loader unless it was replaced or signed in meanwhile.
func (registry *Registry) forgetAnonymous(browserSessionID string, loader *Loader) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.loaders[browserSessionID] != loader {
		return
	}
	if loader.Snapshot().State != StateAnonymous {
		return
	}
	delete(registry.loaders, browserSessionID)
}

// RequireUser resolves the loader and insists on an authenticated session.
func (registry *Registry) RequireUser(ctx context.Context) (*Loader, Snapshot, error) {
	loader := registry.Resolve(ctx)
	if loader == nil {
		return nil, Snapshot{State: StateAnonymous}, apperr.Unauthorized("Authentication required")
	}

	snapshot := loader.Snapshot()
	if !snapshot.Authenticated() {
		return loader, snapshot, apperr.Unauthorized("Authentication required")
	}

	return loader, snapshot, nil
}
