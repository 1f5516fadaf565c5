// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/sec"
	"github.com/taibuivan/coursehub/internal/session"
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

// brokenCache fails every read and write.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Set(context.Context, Key, time.Duration) error { return errCacheDown }
func (brokenCache) Has(context.Context, Key) (bool, error)        { return false, errCacheDown }
func (brokenCache) Delete(context.Context, ...Key) error          { return errCacheDown }

func testUser(purchased ...string) *session.UserProfile {
	return &session.UserProfile{
		ID:                 "user-1",
		Name:               "Ada",
		Email:              "ada@example.com",
		Role:               sec.RoleUser,
		PurchasedCourseIDs: purchased,
	}
}

func newTestChecker() (*Checker, *MemoryCache, *testClock) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(clock.Now)
	return NewChecker(cache, 5*time.Minute, nil), cache, clock
}

/*
TestChecker_Check covers every rule of the decision order.
*/
func TestChecker_Check(t *testing.T) {
	ctx := context.Background()
	checker, _, _ := newTestChecker()
	require.NoError(t, checker.GrantPending(ctx, "user-1", "C2"))

	tests := []struct {
		name       string
		user       *session.UserProfile
		courseID   string
		wantAccess bool
		wantSource Source
	}{
		{"Anonymous", nil, "C1", false, SourceNone},
		{"UserWithoutID", &session.UserProfile{Name: "ghost"}, "C1", false, SourceNone},
		{"EmptyCourse", testUser("C1"), "", false, SourceNone},
		{"Purchased", testUser("C1"), "C1", true, SourceServer},
		{"PurchasedAndPending", testUser("C2"), "C2", true, SourceServer},
		{"PendingOnly", testUser(), "C2", true, SourcePending},
		{"NeitherPurchasedNorPending", testUser("C1"), "C3", false, SourceNone},
		{"PendingBelongsToAnotherUser", &session.UserProfile{ID: "user-2"}, "C2", false, SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := checker.Check(ctx, tt.user, tt.courseID)

			assert.Equal(t, tt.wantAccess, decision.Entitled)
			assert.Equal(t, tt.wantSource, decision.Source)
			assert.Equal(t, tt.wantAccess, checker.IsEntitled(ctx, tt.user, tt.courseID))
		})
	}
}

/*
TestChecker_PendingExpires verifies the grant lapses after its TTL.
*/
func TestChecker_PendingExpires(t *testing.T) {
	ctx := context.Background()
	checker, cache, clock := newTestChecker()

	require.NoError(t, checker.GrantPending(ctx, "user-1", "C1"))
	assert.True(t, checker.IsEntitled(ctx, testUser(), "C1"))

	clock.Advance(5 * time.Minute)
	assert.False(t, checker.IsEntitled(ctx, testUser(), "C1"))
	assert.Zero(t, cache.Len())
}

/*
TestChecker_GrantPending_RequiresIDs verifies half-keyed grants are refused.
*/
func TestChecker_GrantPending_RequiresIDs(t *testing.T) {
	checker, cache, _ := newTestChecker()

	err := checker.GrantPending(context.Background(), "", "C1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = checker.GrantPending(context.Background(), "user-1", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Zero(t, cache.Len())
}

/*
TestChecker_Reconcile verifies server-confirmed purchases retire their pending grants.
*/
func TestChecker_Reconcile(t *testing.T) {
	ctx := context.Background()
	checker, cache, _ := newTestChecker()

	require.NoError(t, checker.GrantPending(ctx, "user-1", "C1"))
	require.NoError(t, checker.GrantPending(ctx, "user-1", "C2"))

	checker.Reconcile(ctx, testUser("C1"))

	assert.Equal(t, 1, cache.Len())
	assert.True(t, checker.IsEntitled(ctx, testUser("C1"), "C1"))
	assert.True(t, checker.IsEntitled(ctx, testUser(), "C2"))

	checker.Reconcile(ctx, nil)
	assert.Equal(t, 1, cache.Len())
}

/*
TestChecker_CacheFailure verifies an unreadable cache denies pending access
and never overrides a server purchase.
*/
func TestChecker_CacheFailure(t *testing.T) {
	ctx := context.Background()
	checker := NewChecker(brokenCache{}, time.Minute, nil)

	assert.False(t, checker.IsEntitled(ctx, testUser(), "C1"))
	assert.True(t, checker.IsEntitled(ctx, testUser("C1"), "C1"))
	assert.ErrorIs(t, checker.GrantPending(ctx, "user-1", "C1"), errCacheDown)
}
