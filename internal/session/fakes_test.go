// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/coursehub/internal/platform/sec"
)

// fakeBackend is a scriptable marketplace.
type fakeBackend struct {
	mu sync.Mutex

	me        func(ctx context.Context, call int, token string) (*MeResult, error)
	logoutErr error
	updateErr error

	meCalls     int
	logoutCalls int
	edits       []ProfileEdit
}

func (backend *fakeBackend) Me(ctx context.Context, token string) (*MeResult, error) {
	backend.mu.Lock()
	backend.meCalls++
	call := backend.meCalls
	me := backend.me
	backend.mu.Unlock()

	if me == nil {
		return &MeResult{User: testUser("Ada")}, nil
	}
	return me(ctx, call, token)
}

func (backend *fakeBackend) Logout(context.Context, string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	backend.logoutCalls++
	return backend.logoutErr
}

func (backend *fakeBackend) UpdateProfile(_ context.Context, _ string, edit ProfileEdit) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	backend.edits = append(backend.edits, edit)
	return backend.updateErr
}

func (backend *fakeBackend) calls() int {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	return backend.meCalls
}

// recordingReconciler captures every reconciled profile.
type recordingReconciler struct {
	mu    sync.Mutex
	users []*UserProfile
}

func (reconciler *recordingReconciler) Reconcile(_ context.Context, user *UserProfile) {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()

	reconciler.users = append(reconciler.users, user.Clone())
}

func (reconciler *recordingReconciler) count() int {
	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()

	return len(reconciler.users)
}

// fakeAuthenticator issues a fixed session or error.
type fakeAuthenticator struct {
	session Session
	err     error
}

func (auth *fakeAuthenticator) Login(context.Context, LoginInput) (Session, error) {
	return auth.session, auth.err
}

func (auth *fakeAuthenticator) Register(context.Context, RegisterInput) (Session, error) {
	return auth.session, auth.err
}

func (auth *fakeAuthenticator) Activate(context.Context, ActivateInput) (Session, error) {
	return auth.session, auth.err
}

func (auth *fakeAuthenticator) SocialAuth(context.Context, SocialInput) (Session, error) {
	return auth.session, auth.err
}

func testUser(name string, purchased ...string) *UserProfile {
	return &UserProfile{
		ID:                 "user-1",
		Name:               name,
		Email:              "ada@example.com",
		Role:               sec.RoleUser,
		IsVerified:         true,
		PurchasedCourseIDs: purchased,
	}
}

func newTestLoader(backend Backend) (*Loader, *MemoryStore, *recordingReconciler) {
	store := NewMemoryStore()
	reconciler := &recordingReconciler{}

	loader := NewLoader(Dependencies{
		Store:      store,
		Backend:    backend,
		Reconciler: reconciler,
	})

	return loader, store, reconciler
}

func mustEstablish(t *testing.T, loader *Loader) Snapshot {
	t.Helper()

	snapshot, err := loader.Establish(context.Background(), Session{AccessToken: "tok-1", User: testUser("Ada")})
	require.NoError(t, err)
	return snapshot
}
