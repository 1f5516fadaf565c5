// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
)

/*
TestLoader_Start verifies start-up with and without a persisted token.
*/
func TestLoader_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("NoToken_Anonymous", func(t *testing.T) {
		backend := &fakeBackend{}
		loader, _, _ := newTestLoader(backend)

		snapshot, err := loader.Start(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snapshot.State)
		assert.Zero(t, backend.calls())
	})

	t.Run("Token_Authenticated", func(t *testing.T) {
		backend := &fakeBackend{}
		loader, store, reconciler := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Stale")))

		snapshot, err := loader.Start(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, snapshot.State)
		assert.Equal(t, "Ada", snapshot.User().Name)
		assert.Equal(t, "Ada", store.Load(ctx).User.Name)
		assert.Equal(t, 1, reconciler.count())
	})

	t.Run("SecondStart_NoOp", func(t *testing.T) {
		backend := &fakeBackend{}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada")))

		_, err := loader.Start(ctx)
		require.NoError(t, err)
		_, err = loader.Start(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, backend.calls())
	})

	t.Run("ConcurrentStart_SingleCall", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			close(entered)
			<-release
			return &MeResult{User: testUser("Ada")}, nil
		}}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Stale")))

		done := make(chan Snapshot, 1)
		go func() {
			snapshot, _ := loader.Start(ctx)
			done <- snapshot
		}()
		<-entered

		snapshot, err := loader.Start(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateLoading, snapshot.State)
		assert.Equal(t, "Stale", snapshot.User().Name)

		close(release)
		assert.Equal(t, StateAuthenticated, (<-done).State)
		assert.Equal(t, 1, backend.calls())
	})
}

/*
TestLoader_Reload_Outcomes covers the three settled states.
*/
func TestLoader_Reload_Outcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("Unauthorized_ClearsStore", func(t *testing.T) {
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			return nil, apperr.Unauthorized("expired")
		}}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada")))

		snapshot, err := loader.Start(ctx)
		assert.True(t, apperr.Is(err, apperr.KindAuth))
		assert.Equal(t, StateAnonymous, snapshot.State)
		assert.True(t, snapshot.Session.IsZero())
		assert.True(t, store.Load(ctx).IsZero())
	})

	t.Run("ServerError_PreservesSession", func(t *testing.T) {
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			return nil, apperr.Server(503, "")
		}}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada", "C1")))

		snapshot, err := loader.Start(ctx)
		assert.True(t, apperr.Is(err, apperr.KindServer))
		assert.Equal(t, StateError, snapshot.State)
		assert.True(t, snapshot.Authenticated())
		assert.True(t, snapshot.User().HasPurchased("C1"))
		assert.Equal(t, "tok-1", store.Load(ctx).AccessToken)
	})

	t.Run("Timeout_PreservesSession", func(t *testing.T) {
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			return nil, apperr.Timeout(context.DeadlineExceeded)
		}}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada")))

		snapshot, _ := loader.Start(ctx)
		assert.Equal(t, StateError, snapshot.State)
		assert.False(t, store.Load(ctx).IsZero())
	})

	t.Run("IncompleteProfile_IsServerError", func(t *testing.T) {
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			return &MeResult{User: &UserProfile{Name: "no id"}}, nil
		}}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada")))

		snapshot, err := loader.Start(ctx)
		assert.True(t, apperr.Is(err, apperr.KindServer))
		assert.Equal(t, "Ada", snapshot.User().Name)
	})

	t.Run("RotatedToken_Stored", func(t *testing.T) {
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			return &MeResult{User: testUser("Ada"), AccessToken: "tok-2"}, nil
		}}
		loader, store, _ := newTestLoader(backend)
		require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada")))

		snapshot, err := loader.Start(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", snapshot.Session.AccessToken)
		assert.Equal(t, "tok-2", store.Load(ctx).AccessToken)
	})
}

/*
TestLoader_Reload_Idempotent verifies two reloads against unchanged server
state end where one would.
*/
func TestLoader_Reload_Idempotent(t *testing.T) {
	ctx := context.Background()

	once, onceStore, _ := newTestLoader(&fakeBackend{})
	twice, twiceStore, _ := newTestLoader(&fakeBackend{})
	require.NoError(t, onceStore.Save(ctx, "tok-1", testUser("Stale")))
	require.NoError(t, twiceStore.Save(ctx, "tok-1", testUser("Stale")))

	_, err := once.Start(ctx)
	require.NoError(t, err)

	_, err = twice.Start(ctx)
	require.NoError(t, err)
	_, err = twice.Reload(ctx)
	require.NoError(t, err)

	assert.Equal(t, once.Snapshot().Session, twice.Snapshot().Session)
	assert.Equal(t, onceStore.Load(ctx), twiceStore.Load(ctx))
}

/*
TestLoader_Reload_LatestIssuedWins verifies that when the first reload answers
after the second, the second one's result is kept.
*/
func TestLoader_Reload_LatestIssuedWins(t *testing.T) {
	ctx := context.Background()

	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})

	backend := &fakeBackend{me: func(_ context.Context, call int, _ string) (*MeResult, error) {
		if call == 1 {
			close(firstEntered)
			<-releaseFirst
			return &MeResult{User: testUser("First")}, nil
		}
		return &MeResult{User: testUser("Second")}, nil
	}}

	loader, store, _ := newTestLoader(backend)
	mustEstablish(t, loader)

	var wg sync.WaitGroup
	var firstSnapshot Snapshot
	var firstErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstSnapshot, firstErr = loader.Reload(ctx)
	}()

	<-firstEntered
	second, err := loader.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Second", second.User().Name)

	close(releaseFirst)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, "Second", firstSnapshot.User().Name)
	assert.Equal(t, "Second", loader.Snapshot().User().Name)
	assert.Equal(t, "Second", store.Load(ctx).User.Name)
}

/*
TestLoader_Invalidate_DuringReload verifies an in-flight reload cannot
repopulate a session cleared after it started.
*/
func TestLoader_Invalidate_DuringReload(t *testing.T) {
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})

	backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
		close(entered)
		<-release
		return &MeResult{User: testUser("Ada")}, nil
	}}

	loader, store, _ := newTestLoader(backend)
	require.NoError(t, store.Save(ctx, "tok-1", testUser("Ada")))

	done := make(chan Snapshot, 1)
	go func() {
		snapshot, _ := loader.Start(ctx)
		done <- snapshot
	}()

	<-entered
	loader.Invalidate(ctx, "logout")
	close(release)

	select {
	case snapshot := <-done:
		assert.Equal(t, StateAnonymous, snapshot.State)
	case <-time.After(2 * time.Second):
		t.Fatal("reload did not return")
	}

	assert.Equal(t, StateAnonymous, loader.Snapshot().State)
	assert.True(t, store.Load(ctx).IsZero())
}

/*
TestLoader_Logout verifies the local session is cleared whatever the server says.
*/
func TestLoader_Logout(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		serverErr error
	}{
		{"ServerOK", nil},
		{"Server500", apperr.Server(500, "")},
		{"Unreachable", apperr.Network(context.Canceled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{logoutErr: tt.serverErr}
			loader, store, _ := newTestLoader(backend)
			mustEstablish(t, loader)

			err := loader.Logout(ctx)
			assert.Equal(t, tt.serverErr, err)

			snapshot := loader.Snapshot()
			assert.Equal(t, StateAnonymous, snapshot.State)
			assert.True(t, snapshot.Session.IsZero())
			assert.True(t, store.Load(ctx).IsZero())
			assert.Equal(t, 1, backend.logoutCalls)
		})
	}
}

/*
TestLoader_ObserveError verifies only auth failures clear the session.
*/
func TestLoader_ObserveError(t *testing.T) {
	ctx := context.Background()
	loader, _, _ := newTestLoader(&fakeBackend{})
	mustEstablish(t, loader)

	loader.ObserveError(ctx, apperr.Server(500, ""))
	assert.Equal(t, StateAuthenticated, loader.Snapshot().State)

	loader.ObserveError(ctx, apperr.Unauthorized("expired"))
	assert.Equal(t, StateAnonymous, loader.Snapshot().State)
}

/*
TestLoader_ExpiredJWT verifies a visibly expired token settles without a network call.
*/
func TestLoader_ExpiredJWT(t *testing.T) {
	ctx := context.Background()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	backend := &fakeBackend{}
	loader, store, _ := newTestLoader(backend)
	require.NoError(t, store.Save(ctx, token, testUser("Ada")))

	snapshot, err := loader.Start(ctx)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, StateAnonymous, snapshot.State)
	assert.Zero(t, backend.calls())
	assert.True(t, store.Load(ctx).IsZero())
}

/*
TestLoader_Establish verifies new sessions are installed and incomplete ones refused.
*/
func TestLoader_Establish(t *testing.T) {
	ctx := context.Background()

	t.Run("Complete", func(t *testing.T) {
		loader, store, reconciler := newTestLoader(&fakeBackend{})

		snapshot, err := loader.Establish(ctx, Session{AccessToken: "tok-1", User: testUser("Ada")})
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, snapshot.State)
		assert.Equal(t, "tok-1", store.Load(ctx).AccessToken)
		assert.Equal(t, 1, reconciler.count())
	})

	t.Run("Incomplete", func(t *testing.T) {
		loader, store, _ := newTestLoader(&fakeBackend{})

		_, err := loader.Establish(ctx, Session{AccessToken: "tok-1"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.True(t, store.Load(ctx).IsZero())
	})
}

/*
TestLoader_ApplyProfileEdit covers the optimistic merge and its rollback.
*/
func TestLoader_ApplyProfileEdit(t *testing.T) {
	ctx := context.Background()
	name := "  Grace  "

	t.Run("Success_ReloadsServerTruth", func(t *testing.T) {
		backend := &fakeBackend{me: func(context.Context, int, string) (*MeResult, error) {
			return &MeResult{User: testUser("Grace")}, nil
		}}
		loader, _, _ := newTestLoader(backend)
		mustEstablish(t, loader)

		snapshot, err := loader.ApplyProfileEdit(ctx, ProfileEdit{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Grace", snapshot.User().Name)

		require.Len(t, backend.edits, 1)
		assert.Equal(t, "Grace", *backend.edits[0].Name)
	})

	t.Run("Rejected_RollsBack", func(t *testing.T) {
		backend := &fakeBackend{updateErr: apperr.ValidationError("Name is taken")}
		loader, store, _ := newTestLoader(backend)
		mustEstablish(t, loader)

		snapshot, err := loader.ApplyProfileEdit(ctx, ProfileEdit{Name: &name})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "Ada", snapshot.User().Name)
		assert.Equal(t, "Ada", store.Load(ctx).User.Name)
	})

	t.Run("Unauthorized_Clears", func(t *testing.T) {
		backend := &fakeBackend{updateErr: apperr.Unauthorized("expired")}
		loader, store, _ := newTestLoader(backend)
		mustEstablish(t, loader)

		snapshot, err := loader.ApplyProfileEdit(ctx, ProfileEdit{Name: &name})
		assert.True(t, apperr.Is(err, apperr.KindAuth))
		assert.Equal(t, StateAnonymous, snapshot.State)
		assert.True(t, store.Load(ctx).IsZero())
	})

	t.Run("Anonymous_Refused", func(t *testing.T) {
		loader, _, _ := newTestLoader(&fakeBackend{})

		_, err := loader.ApplyProfileEdit(ctx, ProfileEdit{Name: &name})
		assert.True(t, apperr.Is(err, apperr.KindAuth))
	})
}
